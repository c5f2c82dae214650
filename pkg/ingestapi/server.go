// Package ingestapi implements the HTTP-push source adapter's inbound
// surface: POST /events (§4.2 "Push adapter", §6 "HTTP push").
package ingestapi

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/eventgateway/gateway/pkg/source"
)

// maxEventBodySize bounds a single push body, well above any realistic
// event payload while still rejecting multi-MB/GB bodies at the HTTP
// read level.
const maxEventBodySize = 1 * 1024 * 1024

// Server is the push-adapter ingest HTTP server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	adapter    *source.PushAdapter
}

// NewServer creates a push-ingest server backed by adapter. authToken, if
// non-empty, is the shared secret POST /events callers must present as a
// bearer token (the source config's auth_token_env, §4.2 "HTTP push"); an
// empty authToken disables the check, for sources that authenticate some
// other way (e.g. network-level isolation in development).
func NewServer(adapter *source.PushAdapter, authToken string) *Server {
	e := echo.New()
	e.Use(middleware.BodyLimit(maxEventBodySize))
	if authToken != "" {
		e.Use(bearerAuth(authToken))
	}

	s := &Server{echo: e, adapter: adapter}
	e.GET("/health", s.healthHandler)
	e.POST("/events", s.submitEventHandler)
	return s
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
