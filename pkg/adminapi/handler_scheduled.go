package adminapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) listScheduledHandler(c *gin.Context) {
	orgID := c.Query("orgId")
	limit := queryInt(c, "limit", 100)
	offset := queryInt(c, "offset", 0)

	rows, err := s.store.ListScheduledIntegrations(c.Request.Context(), orgID, limit, offset)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
