package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/eventgateway/gateway/pkg/audit"
	"github.com/eventgateway/gateway/pkg/config"
	"github.com/eventgateway/gateway/pkg/store"
)

// checkpointOrgID is the sentinel org id used to key the checkpoint of a
// source that spans multiple tenants on one monotonic cursor: the
// sequential-relational and streaming-broker variants checkpoint the feed
// itself, not any one tenant (§4.2, §3 SourceCheckpoint).
const checkpointOrgID = "_global"

// RelationalAdapter polls an external table by monotonic id without ever
// writing to it (§4.2 "Sequential-Relational", the primary variant).
type RelationalAdapter struct {
	id    string
	db    *sql.DB
	store *store.Store
	cp    *audit.Checkpointer
	cfg   *config.IngestConfig

	mu          sync.Mutex
	allowlist   []string
	allowlistAt time.Time
}

// NewRelationalAdapter creates a RelationalAdapter polling db's
// notification_queue table. db is a connection to the external source
// database, distinct from the gateway's own store connection.
func NewRelationalAdapter(id string, db *sql.DB, s *store.Store, cfg *config.IngestConfig) *RelationalAdapter {
	return &RelationalAdapter{id: id, db: db, store: s, cp: audit.NewCheckpointer(s), cfg: cfg}
}

// ID implements Adapter.
func (a *RelationalAdapter) ID() string { return a.id }

// tenantAllowlist returns the cached set of org ids with active
// integrations, refreshed every TenantAllowlistTTL (§4.2). A nil slice
// means "no restriction" (RestrictToActiveIntegrationTenants is off).
func (a *RelationalAdapter) tenantAllowlist(ctx context.Context) ([]string, error) {
	if !a.cfg.RestrictToActiveIntegrationTenants {
		return nil, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.allowlist != nil && time.Since(a.allowlistAt) < a.cfg.TenantAllowlistTTL {
		return a.allowlist, nil
	}

	orgIDs, err := a.store.ListActiveIntegrationOrgIDs(ctx)
	if err != nil {
		return nil, err
	}
	if orgIDs == nil {
		orgIDs = []string{}
	}
	a.allowlist = orgIDs
	a.allowlistAt = time.Now()
	return orgIDs, nil
}

// Poll issues the windowed query id > checkpoint AND [age cutoff] AND
// entity_parent_rid IN (allowlist) ORDER BY id LIMIT N (§4.2, §6).
func (a *RelationalAdapter) Poll(ctx context.Context, limit int) ([]Event, string, error) {
	checkpointRow, err := a.cp.Get(ctx, "relational", a.id, checkpointOrgID)
	if err != nil {
		return nil, "", fmt.Errorf("load checkpoint: %w", err)
	}
	var checkpoint int64
	if checkpointRow != nil {
		checkpoint = checkpointRow.LastProcessedID
	} else if a.cfg.BootstrapCheckpoint {
		bootstrapped, err := a.bootstrapCheckpoint(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap checkpoint: %w", err)
		}
		checkpoint = bootstrapped
		if err := a.cp.Advance(ctx, "relational", a.id, checkpointOrgID, checkpoint); err != nil {
			return nil, strconv.FormatInt(checkpoint, 10), fmt.Errorf("persist bootstrap checkpoint: %w", err)
		}
		return nil, strconv.FormatInt(checkpoint, 10), nil
	}

	allowlist, err := a.tenantAllowlist(ctx)
	if err != nil {
		return nil, strconv.FormatInt(checkpoint, 10), fmt.Errorf("tenant allowlist: %w", err)
	}

	var cutoff *time.Time
	if a.cfg.MaxEventAgeDays > 0 {
		t := time.Now().AddDate(0, 0, -a.cfg.MaxEventAgeDays)
		cutoff = &t
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, entity_rid, entity_parent_rid, transaction_type, message, created_at
		FROM notification_queue
		WHERE id > $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::text[] IS NULL OR entity_parent_rid = ANY($3))
		ORDER BY id
		LIMIT $4`,
		checkpoint, cutoff, allowlistParam(allowlist), limit)
	if err != nil {
		return nil, strconv.FormatInt(checkpoint, 10), fmt.Errorf("poll notification_queue: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	lastID := checkpoint
	for rows.Next() {
		var (
			id                                         int64
			entityRID, entityParentRID, transactionType string
			message                                     json.RawMessage
			createdAt                                   time.Time
		)
		if err := rows.Scan(&id, &entityRID, &entityParentRID, &transactionType, &message, &createdAt); err != nil {
			return nil, strconv.FormatInt(lastID, 10), fmt.Errorf("scan notification row: %w", err)
		}

		var payload map[string]interface{}
		if err := json.Unmarshal(message, &payload); err != nil {
			return nil, strconv.FormatInt(lastID, 10), fmt.Errorf("decode message for id %d: %w", id, err)
		}

		events = append(events, Event{
			OrgID:      entityParentRID,
			EventType:  transactionType,
			Source:     a.id,
			SourceID:   strconv.FormatInt(id, 10),
			Payload:    payload,
			ReceivedAt: createdAt,
		})
		lastID = id
	}
	if err := rows.Err(); err != nil {
		return nil, strconv.FormatInt(lastID, 10), fmt.Errorf("iterate notification_queue rows: %w", err)
	}

	return events, strconv.FormatInt(lastID, 10), nil
}

// Commit advances the checkpoint to upTo, appending a gap record if the
// jump skipped ids (§4.10).
func (a *RelationalAdapter) Commit(ctx context.Context, upTo string) error {
	id, err := strconv.ParseInt(upTo, 10, 64)
	if err != nil {
		return fmt.Errorf("parse cursor %q: %w", upTo, err)
	}
	return a.cp.Advance(ctx, "relational", a.id, checkpointOrgID, id)
}

// bootstrapCheckpoint returns the current max id in notification_queue, used
// to seed a source's first checkpoint at the live edge instead of replaying
// its entire backlog (§6 "bootstrap_checkpoint").
func (a *RelationalAdapter) bootstrapCheckpoint(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	if err := a.db.QueryRowContext(ctx, `SELECT MAX(id) FROM notification_queue`).Scan(&max); err != nil {
		return 0, fmt.Errorf("query max notification_queue id: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64, nil
}

// allowlistParam converts a nil allowlist ("no restriction") into a driver
// value that binds to NULL, so the tenant clause short-circuits. An empty
// non-nil allowlist (no tenant has an active integration) binds as an empty
// array and matches no rows.
func allowlistParam(allowlist []string) interface{} {
	if allowlist == nil {
		return nil
	}
	return allowlist
}
