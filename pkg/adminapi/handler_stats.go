package adminapi

import (
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventgateway/gateway/ent/executionlog"
)

// CheckpointStatus summarizes a source checkpoint's progress for the stats
// endpoint: how far behind it last advanced, and how many unresolved gaps
// it has recorded (§4.10).
type CheckpointStatus struct {
	ID               string `json:"id"`
	SourceKind       string `json:"sourceKind"`
	SourceIdentifier string `json:"sourceIdentifier"`
	OrgID            string `json:"orgId"`
	LastProcessedID  int64  `json:"lastProcessedId"`
	LagSeconds       *int64 `json:"lagSeconds,omitempty"`
	GapCount         int    `json:"gapCount"`
}

// StatsResponse is the aggregate admin stats payload (§6 stats endpoint).
type StatsResponse struct {
	CountsByStatus map[executionlog.Status]int `json:"countsByStatus"`
	DurationP50Ms  int64                        `json:"durationP50Ms"`
	DurationP95Ms  int64                        `json:"durationP95Ms"`
	DurationP99Ms  int64                        `json:"durationP99Ms"`
	Checkpoints    []CheckpointStatus           `json:"checkpoints"`
}

func (s *Server) statsHandler(c *gin.Context) {
	ctx := c.Request.Context()

	counts, err := s.store.CountExecutionLogsByStatus(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	durations, err := s.store.RecentDurations(ctx, 1000)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	p50, p95, p99 := percentiles(durations)

	checkpoints, err := s.store.ListCheckpoints(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	now := time.Now()
	statuses := make([]CheckpointStatus, len(checkpoints))
	for i, cp := range checkpoints {
		cs := CheckpointStatus{
			ID:               cp.ID,
			SourceKind:       cp.SourceKind,
			SourceIdentifier: cp.SourceIdentifier,
			OrgID:            cp.OrgID,
			LastProcessedID:  cp.LastProcessedID,
			GapCount:         len(cp.Gaps),
		}
		if cp.LastProcessedAt != nil {
			lag := int64(now.Sub(*cp.LastProcessedAt).Seconds())
			cs.LagSeconds = &lag
		}
		statuses[i] = cs
	}

	c.JSON(http.StatusOK, StatsResponse{
		CountsByStatus: counts,
		DurationP50Ms:  p50,
		DurationP95Ms:  p95,
		DurationP99Ms:  p99,
		Checkpoints:    statuses,
	})
}

// percentiles computes p50/p95/p99 over samples using the nearest-rank
// method. samples need not be pre-sorted.
func percentiles(samples []int64) (p50, p95, p99 int64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	sorted := append([]int64(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return rank(sorted, 0.50), rank(sorted, 0.95), rank(sorted, 0.99)
}

func rank(sorted []int64, p float64) int64 {
	n := len(sorted)
	idx := int(math.Ceil(p*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
