package adminapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eventgateway/gateway/ent/integration"
)

func (s *Server) listIntegrationsHandler(c *gin.Context) {
	orgID := c.Query("orgId")
	eventType := c.Query("eventType")
	rows, err := s.store.ListIntegrations(c.Request.Context(), orgID, eventType)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) getIntegrationHandler(c *gin.Context) {
	orgID := c.Query("orgId")
	row, err := s.store.GetIntegration(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) createIntegrationHandler(c *gin.Context) {
	var req CreateIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	create := s.store.Client().Integration.Create().
		SetID(req.ID).
		SetOrgID(req.OrgID).
		SetEventType(req.EventType).
		SetTargetURL(req.TargetURL)

	if req.HTTPMethod != "" {
		create = create.SetHTTPMethod(req.HTTPMethod)
	}
	if req.TimeoutMs > 0 {
		create = create.SetTimeoutMs(req.TimeoutMs)
	}
	if req.RetryCount > 0 {
		create = create.SetRetryCount(req.RetryCount)
	}
	if req.TransformMode != "" {
		create = create.SetTransformMode(integration.TransformMode(req.TransformMode))
	}
	if req.TransformDescriptor != nil {
		create = create.SetTransformDescriptor(req.TransformDescriptor)
	}
	if req.SigningEnabled {
		create = create.SetSigningEnabled(true).SetSigningSecret(req.SigningSecret)
	}
	if req.Scope != "" {
		create = create.SetScope(integration.Scope(req.Scope))
	}
	if len(req.ExcludedEntityIDs) > 0 {
		create = create.SetExcludedEntityIds(req.ExcludedEntityIDs)
	}

	row, err := create.Save(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, row)
}
