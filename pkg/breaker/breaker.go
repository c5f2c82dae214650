// Package breaker implements the per-integration circuit breaker over
// consecutive infrastructure failures (§4.6). Each integration id gets its
// own gobreaker state machine; gobreaker itself is the source of truth for
// the current tick, with Integration.circuit_state/consecutive_failures
// mirrored to Postgres so it is visible to operators (§6 "breaker state on
// integrations"). The mirror is not read back: a new process starts every
// breaker CLOSED with zero counts.
package breaker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eventgateway/gateway/ent"
	"github.com/eventgateway/gateway/ent/integration"
	"github.com/eventgateway/gateway/pkg/config"
	"github.com/eventgateway/gateway/pkg/store"
	"github.com/sony/gobreaker/v2"
)

// Result describes a breaker's state for introspection only; it carries no
// admission decision (see Allow).
type Result struct {
	Open   bool
	State  string
	Reason string
}

// Breaker tracks one gobreaker two-step state machine per integration id.
// The two-step form is used specifically so HALF_OPEN's single-probe
// budget (Settings.MaxRequests) is consumed at admission time by Allow,
// rather than merely read back after the fact.
type Breaker struct {
	store *store.Store
	cfg   *config.CircuitBreakerConfig
	log   *slog.Logger

	mu        sync.Mutex
	perTenant map[string]*gobreaker.TwoStepCircuitBreaker[any]
}

// New creates a Breaker backed by s using cfg's threshold/recovery time.
func New(s *store.Store, cfg *config.CircuitBreakerConfig) *Breaker {
	return &Breaker{
		store:     s,
		cfg:       cfg,
		log:       slog.With("component", "breaker"),
		perTenant: make(map[string]*gobreaker.TwoStepCircuitBreaker[any]),
	}
}

func (b *Breaker) circuitFor(integrationID string) *gobreaker.TwoStepCircuitBreaker[any] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.perTenant[integrationID]; ok {
		return cb
	}

	threshold := uint32(b.cfg.Threshold)
	settings := gobreaker.Settings{
		Name:        integrationID,
		MaxRequests: 1, // at most one probing delivery while HALF_OPEN (§4.6)
		Timeout:     b.cfg.RecoveryTime,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.log.Info("circuit state changed", "integration_id", name, "from", from.String(), "to", to.String())
		},
	}
	cb := gobreaker.NewTwoStepCircuitBreaker[any](settings)
	b.perTenant[integrationID] = cb
	return cb
}

// Allow decides whether a delivery to integrationID may proceed right now.
// When ok is false the breaker is OPEN, or HALF_OPEN with its single probe
// slot already in flight (§4.6 "at most one probing delivery is
// permitted"); done is nil and the caller must not attempt delivery.
// When ok is true, the caller has been admitted (consuming that slot if
// HALF_OPEN) and MUST call done exactly once with the outcome — success
// for a 2xx response or a non-retryable client rejection (the endpoint
// answered, so it's reachable), false for a transport error, 429, or 5xx —
// so the state machine and its Postgres mirror both advance.
func (b *Breaker) Allow(ctx context.Context, integrationID string) (ok bool, done func(success bool)) {
	cb := b.circuitFor(integrationID)
	stateBefore := cb.State()

	step, err := cb.Allow()
	if err != nil {
		return false, nil
	}

	return true, func(success bool) {
		step(success)
		b.persist(ctx, integrationID, cb, stateBefore, success)
	}
}

// State reports integrationID's current breaker state for introspection
// (tests, admin surfaces). It never consumes the HALF_OPEN probe slot;
// admission must go through Allow.
func (b *Breaker) State(integrationID string) Result {
	cb := b.circuitFor(integrationID)
	state := cb.State()
	if state == gobreaker.StateOpen {
		return Result{Open: true, State: "OPEN", Reason: "consecutive infrastructure failures reached threshold"}
	}
	return Result{Open: false, State: state.String()}
}

func (b *Breaker) persist(ctx context.Context, integrationID string, cb *gobreaker.TwoStepCircuitBreaker[any], stateBefore gobreaker.State, success bool) {
	now := time.Now()
	stateAfter := cb.State()

	err := b.store.UpdateCircuitState(ctx, integrationID, func(u *ent.IntegrationUpdateOne) *ent.IntegrationUpdateOne {
		if success {
			return u.
				SetCircuitState(integration.CircuitStateCLOSED).
				SetConsecutiveFailures(0).
				SetLastSuccessAt(now).
				ClearCircuitOpenedAt()
		}
		// gobreaker clears its counts when it trips, so the persisted
		// counter is incremented rather than copied from cb.Counts().
		u = u.AddConsecutiveFailures(1).SetLastFailureAt(now)
		if stateAfter == gobreaker.StateOpen {
			u = u.SetCircuitState(integration.CircuitStateOPEN)
			if stateBefore != gobreaker.StateOpen {
				u = u.SetCircuitOpenedAt(now)
			}
		} else if stateAfter == gobreaker.StateHalfOpen {
			u = u.SetCircuitState(integration.CircuitStateHALF_OPEN)
		}
		return u
	})
	if err != nil {
		b.log.Error("persist breaker state failed", "integration_id", integrationID, "error", err)
	}
}
