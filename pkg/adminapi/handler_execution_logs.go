package adminapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eventgateway/gateway/ent/executionlog"
)

func (s *Server) listExecutionLogsHandler(c *gin.Context) {
	orgID := c.Query("orgId")
	limit := queryInt(c, "limit", 100)
	offset := queryInt(c, "offset", 0)

	var status *executionlog.Status
	if raw := c.Query("status"); raw != "" {
		st := executionlog.Status(raw)
		status = &st
	}

	rows, err := s.store.ListExecutionLogs(c.Request.Context(), orgID, status, limit, offset)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) retryExecutionLogsHandler(c *gin.Context) {
	var req BulkLogIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := s.store.RetryExecutionLogs(c.Request.Context(), req.IDs)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, BulkResultResponse{Affected: n})
}

func (s *Server) deleteExecutionLogsHandler(c *gin.Context) {
	var req BulkLogIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := s.store.DeleteExecutionLogs(c.Request.Context(), req.IDs)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, BulkResultResponse{Affected: n})
}
