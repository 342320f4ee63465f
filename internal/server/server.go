package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linepulse-lab/linepulse/internal/core/line"
)

const (
	healthCheckTimeout = 2 * time.Second
	shutdownTimeout    = 5 * time.Second
)

// Server owns the gin engine and the HTTP lifecycle. Route registration is
// left to the ingestion and projection handlers.
type Server struct {
	Engine *gin.Engine

	addr string
	db   *sql.DB
	line *line.Holder
}

func New(addr string, db *sql.DB, lineCfg *line.Holder, mode string) *Server {
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		Engine: gin.Default(),
		addr:   addr,
		db:     db,
		line:   lineCfg,
	}

	s.Engine.GET("/health", s.handleHealth)

	return s
}

// handleHealth reports readiness: the database must answer a ping and the
// line configuration must be loaded, since every query joins against it.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			slog.Error("[Server] Health check failed: database unreachable", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
		"stations": len(s.line.Current().Stations()),
	})
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Engine,
	}

	slog.Info("[Server] Starting HTTP server...", "address", s.addr)

	go func() {
		<-ctx.Done()
		slog.Info("[Server] Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("[Server] HTTP server forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
