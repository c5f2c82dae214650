package ingestapi

// SubmitEventRequest is the HTTP request body for POST /events.
type SubmitEventRequest struct {
	OrgID     string                 `json:"orgId"`
	EventType string                 `json:"eventType"`
	Payload   map[string]interface{} `json:"payload"`
	Source    string                 `json:"source"`
}

// SubmitEventResponse is returned on successful enqueue.
type SubmitEventResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
