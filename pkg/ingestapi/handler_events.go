package ingestapi

import (
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// submitEventHandler handles POST /events, enqueuing the body into the
// push adapter's claimable work queue (§4.2 "Push adapter").
func (s *Server) submitEventHandler(c *echo.Context) error {
	var req SubmitEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if req.OrgID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "orgId is required")
	}
	if req.EventType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "eventType is required")
	}
	if req.Source == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source is required")
	}

	id, err := s.adapter.Enqueue(c.Request().Context(), req.OrgID, req.EventType, req.Source, req.Payload)
	if err != nil {
		slog.Error("enqueue push event failed", "error", err, "org_id", req.OrgID)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event store unavailable")
	}

	return c.JSON(http.StatusAccepted, &SubmitEventResponse{ID: id, Status: "queued"})
}
