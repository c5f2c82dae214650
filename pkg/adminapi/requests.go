package adminapi

// CreateIntegrationRequest is the request body for POST /integrations.
type CreateIntegrationRequest struct {
	ID                  string                 `json:"id" binding:"required"`
	OrgID               string                 `json:"orgId" binding:"required"`
	EventType           string                 `json:"eventType" binding:"required"`
	TargetURL           string                 `json:"targetUrl" binding:"required"`
	HTTPMethod          string                 `json:"httpMethod"`
	TimeoutMs           int                    `json:"timeoutMs"`
	RetryCount          int                    `json:"retryCount"`
	TransformMode       string                 `json:"transformMode"`
	TransformDescriptor map[string]interface{} `json:"transformDescriptor"`
	SigningEnabled      bool                   `json:"signingEnabled"`
	SigningSecret       string                 `json:"signingSecret"`
	Scope               string                 `json:"scope"`
	ExcludedEntityIDs   []string               `json:"excludedEntityIds"`
}

// BulkLogIDsRequest names execution log ids for a bulk retry/delete
// operation (§6 "ExecutionLogs (read-only + bulk retry/delete)").
type BulkLogIDsRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// BulkResultResponse reports how many rows a bulk operation affected.
type BulkResultResponse struct {
	Affected int `json:"affected"`
}
