package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/linepulse-lab/linepulse/internal/retention"
)

// Config is the top-level application config: file defaults overridden by a
// YAML file, overridden by LINEPULSE_* env vars.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Line      LineConfig      `koanf:"line"`
	Retention RetentionConfig `koanf:"retention"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// LineConfig points at the directory of YAML files describing the stations
// and the scheduled break windows.
type LineConfig struct {
	ConfigDir string `koanf:"config_dir"`
}

// RetentionConfig holds the scheduler interval and per-table horizon
// overrides. Durations accept Go syntax plus "Xd" for days.
type RetentionConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Interval string `koanf:"interval"`

	CycleTimes       TableRetention `koanf:"cycle_times"`
	Availability     TableRetention `koanf:"availability"`
	ConnectionEvents TableRetention `koanf:"connection_events"`
}

type TableRetention struct {
	CompressAfter string `koanf:"compress_after"`
	DeleteAfter   string `koanf:"delete_after"`
}

// Policy resolves a table's retention schedule, falling back to the 7d/90d
// defaults for unset fields.
func (t TableRetention) Policy(table string) (retention.Policy, error) {
	p := retention.DefaultPolicy(table)

	if t.CompressAfter != "" {
		d, err := parseDuration(t.CompressAfter)
		if err != nil {
			return retention.Policy{}, fmt.Errorf("retention.%s.compress_after: %w", table, err)
		}
		p.CompressAfter = d
	}
	if t.DeleteAfter != "" {
		d, err := parseDuration(t.DeleteAfter)
		if err != nil {
			return retention.Policy{}, fmt.Errorf("retention.%s.delete_after: %w", table, err)
		}
		p.DeleteAfter = d
	}

	if err := p.Validate(); err != nil {
		return retention.Policy{}, err
	}
	return p, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}
	if c.Database.Type != "" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}

	if strings.TrimSpace(c.Line.ConfigDir) == "" {
		return fmt.Errorf("line.config_dir is required")
	}
	if _, err := os.Stat(c.Line.ConfigDir); err != nil {
		return fmt.Errorf("line.config_dir %q is not accessible: %w", c.Line.ConfigDir, err)
	}

	interval, err := parseDuration(c.Retention.Interval)
	if err != nil {
		return fmt.Errorf("invalid retention.interval %q: %w", c.Retention.Interval, err)
	}
	if interval <= 0 {
		return fmt.Errorf("retention.interval must be > 0")
	}

	// Horizon pairs are validated in RetentionPolicies; here we only make
	// sure the raw strings parse so bad config fails at startup.
	for table, t := range map[string]TableRetention{
		"cycle_times":       c.Retention.CycleTimes,
		"availability":      c.Retention.Availability,
		"connection_events": c.Retention.ConnectionEvents,
	} {
		if _, err := t.Policy(table); err != nil {
			return err
		}
	}

	return nil
}

// RetentionInterval returns the parsed scheduler interval.
func (c *Config) RetentionInterval() time.Duration {
	d, _ := parseDuration(c.Retention.Interval)
	return d
}

// RetentionPolicies resolves the full policy set for the managed tables.
func (c *Config) RetentionPolicies() ([]retention.Policy, error) {
	var out []retention.Policy
	for table, t := range map[string]TableRetention{
		"cycle_times":       c.Retention.CycleTimes,
		"availability":      c.Retention.Availability,
		"connection_events": c.Retention.ConnectionEvents,
	} {
		p, err := t.Policy(table)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Load parses config from file + env and validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":             8080,
		"server.host":             "0.0.0.0",
		"server.max_body_size_mb": 1,
		"server.mode":             "release",
		"database.type":           "postgres",
		"database.dsn":            "",
		"database.max_open_conns": 25,
		"database.max_idle_conns": 25,
		"database.auto_migrate":   true,
		"line.config_dir":         "./config/line",
		"retention.enabled":       true,
		"retention.interval":      "1h",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("LINEPULSE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "LINEPULSE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// parseDuration accepts Go duration syntax plus "Xd" for days, matching the
// retention admin API.
func parseDuration(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		if days <= 0 {
			return 0, fmt.Errorf("duration must be positive, got %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
