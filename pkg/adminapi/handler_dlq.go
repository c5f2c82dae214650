package adminapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) listDLQEntriesHandler(c *gin.Context) {
	orgID := c.Query("orgId")
	limit := queryInt(c, "limit", 100)
	offset := queryInt(c, "offset", 0)

	rows, err := s.store.ListDLQEntries(c.Request.Context(), orgID, limit, offset)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}
