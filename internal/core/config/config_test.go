package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linepulse-lab/linepulse/internal/retention"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfigFile(t *testing.T, lineDir string) string {
	t.Helper()
	return writeFile(t, t.TempDir(), "config.yaml", `
server:
  port: 9090
  mode: debug
database:
  dsn: "postgres://localhost:5432/linepulse?sslmode=disable"
line:
  config_dir: "`+lineDir+`"
retention:
  interval: 30m
  cycle_times:
    compress_after: 3d
    delete_after: 30d
`)
}

func TestLoad(t *testing.T) {
	lineDir := t.TempDir()

	cfg, err := Load(testConfigFile(t, lineDir))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.Mode)
	require.Equal(t, "0.0.0.0", cfg.Server.Host) // default survives partial file
	require.True(t, cfg.Database.AutoMigrate)
	require.Equal(t, 30*time.Minute, cfg.RetentionInterval())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	lineDir := t.TempDir()
	t.Setenv("LINEPULSE_SERVER__PORT", "7777")

	cfg, err := Load(testConfigFile(t, lineDir))
	require.NoError(t, err)
	require.Equal(t, 7777, cfg.Server.Port)
}

func TestLoad_ValidationFailures(t *testing.T) {
	lineDir := t.TempDir()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			"missing dsn",
			"line:\n  config_dir: \"" + lineDir + "\"\n",
			"database.dsn is required",
		},
		{
			"bad mode",
			"server:\n  mode: verbose\ndatabase:\n  dsn: x\nline:\n  config_dir: \"" + lineDir + "\"\n",
			"server.mode",
		},
		{
			"missing line dir",
			"database:\n  dsn: x\nline:\n  config_dir: /does/not/exist\n",
			"line.config_dir",
		},
		{
			"inverted retention horizons",
			"database:\n  dsn: x\nline:\n  config_dir: \"" + lineDir + "\"\nretention:\n  cycle_times:\n    compress_after: 90d\n    delete_after: 7d\n",
			"delete_after",
		},
		{
			"bad retention interval",
			"database:\n  dsn: x\nline:\n  config_dir: \"" + lineDir + "\"\nretention:\n  interval: soon\n",
			"retention.interval",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", tc.yaml)
			_, err := Load(path)
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestRetentionPolicies(t *testing.T) {
	lineDir := t.TempDir()

	cfg, err := Load(testConfigFile(t, lineDir))
	require.NoError(t, err)

	policies, err := cfg.RetentionPolicies()
	require.NoError(t, err)
	require.Len(t, policies, 3)

	byTable := make(map[string]retention.Policy)
	for _, p := range policies {
		byTable[p.Table] = p
	}

	require.Equal(t, 3*24*time.Hour, byTable["cycle_times"].CompressAfter)
	require.Equal(t, 30*24*time.Hour, byTable["cycle_times"].DeleteAfter)

	// Tables without overrides fall back to the defaults.
	require.Equal(t, retention.DefaultCompressAfter, byTable["availability"].CompressAfter)
	require.Equal(t, retention.DefaultDeleteAfter, byTable["connection_events"].DeleteAfter)
}
