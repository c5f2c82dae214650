// Package adminapi implements the minimal admin/stats surface named in §6
// "Admin-facing contracts": list/get/create over Integrations, listing of
// ScheduledIntegrations, read-only + bulk retry/delete over ExecutionLogs,
// DLQ entry listing, and aggregate stats. Integrations cannot be updated
// or deleted here, and scheduled integrations are list-only. This is not the out-of-scope
// admin/UI HTTP API (auth, org CRUD, lookup tables); only the minimal
// surface this gateway itself must expose.
package adminapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eventgateway/gateway/pkg/live"
	"github.com/eventgateway/gateway/pkg/store"
)

// Server is the admin/stats HTTP server.
type Server struct {
	router *gin.Engine
	store  *store.Store
	live   *live.Manager
}

// NewServer creates an admin API server backed by s. live may be nil, in
// which case the /live feed endpoint is not registered.
func NewServer(s *store.Store, liveMgr *live.Manager) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	srv := &Server{router: router, store: s, live: liveMgr}
	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "healthy"}) })

	s.router.GET("/integrations", s.listIntegrationsHandler)
	s.router.GET("/integrations/:id", s.getIntegrationHandler)
	s.router.POST("/integrations", s.createIntegrationHandler)

	s.router.GET("/scheduled-integrations", s.listScheduledHandler)

	s.router.GET("/execution-logs", s.listExecutionLogsHandler)
	s.router.POST("/execution-logs/retry", s.retryExecutionLogsHandler)
	s.router.DELETE("/execution-logs", s.deleteExecutionLogsHandler)

	s.router.GET("/dlq-entries", s.listDLQEntriesHandler)

	s.router.GET("/stats", s.statsHandler)

	if s.live != nil {
		s.router.GET("/live", func(c *gin.Context) { s.live.Handler(c.Writer, c.Request) })
	}
}

// Handler exposes the underlying gin engine, e.g. for http.Server wiring or
// httptest.
func (s *Server) Handler() http.Handler { return s.router }
