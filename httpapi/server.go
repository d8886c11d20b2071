// Package httpapi exposes the webhook endpoint and the message query API on
// a gin router.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-inbox/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	ModeRelease = "release"
	ModeDebug   = "debug"
	ModeTest    = "test"

	DefaultReadHeaderTimeout = 10 * time.Second
)

type Server struct {
	server *http.Server
	logger core.Logger
}

// NewServer wraps handler in an http.Server bound to address.
func NewServer(address string, handler http.Handler, logger core.Logger) *Server {
	if strings.TrimSpace(address) == "" {
		address = ":8080"
	}
	return &Server{
		server: &http.Server{
			Addr:              address,
			Handler:           handler,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
		},
		logger: glog.Ensure(logger),
	}
}

func (s *Server) Addr() string {
	return s.server.Addr
}

// ListenAndServe blocks until the server stops. A graceful shutdown returns
// nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting http server", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping http server")
	return s.server.Shutdown(ctx)
}

// SetMode maps a config mode onto gin's global mode.
func SetMode(mode string) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeDebug:
		gin.SetMode(gin.DebugMode)
	case ModeTest:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
}

func requestLogger(logger core.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		core.LogFields(c.Request.Context(), logger, "debug", "http request", map[string]any{
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		})
	}
}
