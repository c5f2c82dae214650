// Package deliver implements the delivery pipeline (C7): signs and issues
// the outbound HTTP request, classifies the outcome, upserts the execution
// log, consults and updates the circuit breaker, and appends a DLQ entry on
// exhaustion (§4.7).
package deliver

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eventgateway/gateway/ent"
	"github.com/eventgateway/gateway/ent/executionlog"
	"github.com/eventgateway/gateway/pkg/breaker"
	"github.com/eventgateway/gateway/pkg/store"
	"github.com/eventgateway/gateway/pkg/transform"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const maxResponseBodyCapture = 4096

// TriggerType mirrors executionlog.TriggerType for callers outside the ent
// package.
type TriggerType = executionlog.TriggerType

// Outcome is the terminal classification of one delivery attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeRetry   Outcome = "retryable_failure"
	OutcomeFailed  Outcome = "terminal_failure"
	OutcomeSkipped Outcome = "skipped"
)

// Deliverer executes the per-integration delivery pipeline.
type Deliverer struct {
	store   *store.Store
	breaker *breaker.Breaker
	client  *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rateRPS  rate.Limit
	rateBurst int
}

// New creates a Deliverer. rateRPS/rateBurst bound outbound requests per
// integration id, independent of and in addition to the circuit breaker.
func New(s *store.Store, b *breaker.Breaker, rateRPS float64, rateBurst int) *Deliverer {
	if rateRPS <= 0 {
		rateRPS = 10
	}
	if rateBurst <= 0 {
		rateBurst = 10
	}
	return &Deliverer{
		store:     s,
		breaker:   b,
		client:    &http.Client{},
		limiters:  make(map[string]*rate.Limiter),
		rateRPS:   rate.Limit(rateRPS),
		rateBurst: rateBurst,
	}
}

func (d *Deliverer) limiterFor(integrationID string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[integrationID]
	if !ok {
		l = rate.NewLimiter(d.rateRPS, d.rateBurst)
		d.limiters[integrationID] = l
	}
	return l
}

// Attempt runs one delivery cycle for payload against integ under traceID.
// For SIMPLE/TEMPLATE transforms this is a single outbound request. For
// ACTION_LIST transforms, a bare traceID (one with no "#N" action suffix)
// fans out into one independent send per action, each under its own
// derived trace id and its own ExecutionLog (§4.5 "each action produces one
// ExecutionLog"); a traceID already carrying a "#N" suffix — as minted by
// the fan-out below and later replayed by the retry engine against one
// specific log — instead delivers just that one action. The returned
// Outcome is the worst across all actions attempted.
func (d *Deliverer) Attempt(ctx context.Context, integ *ent.Integration, traceID, eventID string, payload map[string]interface{}, trigger TriggerType, attemptNumber int) (Outcome, error) {
	log := slog.With("component", "deliverer", "integration_id", integ.ID, "trace_id", traceID)

	allowed, recordBreaker := d.breaker.Allow(ctx, integ.ID)
	if !allowed {
		log.Info("delivery skipped, circuit open")
		category := executionlog.ErrorCategoryCIRCUIT_OPEN
		_, err := d.store.UpsertLog(ctx, store.LogUpsert{
			TraceID: traceID, OrgID: integ.OrgID, IntegrationID: integ.ID, EventID: eventID,
			Direction: executionlog.DirectionOUTBOUND, TriggerType: trigger,
			Status: executionlog.StatusSKIPPED, AttemptCount: attemptNumber, LastAttemptAt: time.Now(),
			ErrorCategory: &category, RequestSnapshot: payload,
		})
		return OutcomeSkipped, err
	}

	requests, err := transform.Apply(integ, payload)
	if err != nil {
		// A bad transform descriptor says nothing about the endpoint's
		// reachability, so release the admitted slot without counting it
		// against the breaker.
		recordBreaker(true)
		log.Warn("transformation failed", "error", err)
		category := executionlog.ErrorCategoryTRANSFORMATION
		msg := err.Error()
		_, logErr := d.store.UpsertLog(ctx, store.LogUpsert{
			TraceID: traceID, OrgID: integ.OrgID, IntegrationID: integ.ID, EventID: eventID,
			Direction: executionlog.DirectionOUTBOUND, TriggerType: trigger,
			Status: executionlog.StatusFAILED, AttemptCount: attemptNumber, LastAttemptAt: time.Now(),
			ErrorCategory: &category, ErrorMessage: &msg, RequestSnapshot: payload,
		})
		if logErr != nil {
			return OutcomeFailed, logErr
		}
		return OutcomeFailed, nil
	}

	base, idx, isActionRetry := parseActionTraceID(traceID)
	var outcome Outcome
	var breakerOK bool
	var sendErr error
	if !isActionRetry && len(requests) > 1 {
		outcome, breakerOK, sendErr = d.attemptActionList(ctx, integ, base, eventID, requests, trigger, attemptNumber, payload)
	} else {
		if idx < 0 || idx >= len(requests) {
			idx = 0
		}
		req := requests[idx]
		if err := d.limiterFor(integ.ID).Wait(ctx); err != nil {
			// A local rate-limit wait failure (context cancelled/deadline)
			// says nothing about the endpoint either; release the slot
			// without penalizing the breaker.
			recordBreaker(true)
			return OutcomeRetry, fmt.Errorf("rate limit wait: %w", err)
		}
		outcome, breakerOK, sendErr = d.send(ctx, integ, req, traceID, eventID, trigger, attemptNumber, payload)
	}

	recordBreaker(breakerOK)
	return outcome, sendErr
}

// attemptActionList delivers each request independently under its own
// derived trace id, aggregating the worst outcome and the AND of every
// action's breaker signal (one infrastructure failure among the actions
// counts against the integration as a whole) across all actions.
func (d *Deliverer) attemptActionList(ctx context.Context, integ *ent.Integration, baseTraceID, eventID string, requests []transform.Request, trigger TriggerType, attemptNumber int, payload map[string]interface{}) (Outcome, bool, error) {
	worst := OutcomeSuccess
	breakerOK := true
	var firstErr error
	for i, req := range requests {
		actionTrace := actionTraceID(baseTraceID, i)
		if err := d.limiterFor(integ.ID).Wait(ctx); err != nil {
			worst = worseOutcome(worst, OutcomeRetry)
			if firstErr == nil {
				firstErr = fmt.Errorf("rate limit wait: %w", err)
			}
			continue
		}
		outcome, ok, err := d.send(ctx, integ, req, actionTrace, eventID, trigger, attemptNumber, payload)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		worst = worseOutcome(worst, outcome)
		breakerOK = breakerOK && ok
	}
	return worst, breakerOK, firstErr
}

// worseOutcome ranks outcomes success < skipped < retry < failed and
// returns the more severe of a and b.
func worseOutcome(a, b Outcome) Outcome {
	rank := map[Outcome]int{OutcomeSuccess: 0, OutcomeSkipped: 1, OutcomeRetry: 2, OutcomeFailed: 3}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// parseActionTraceID splits a trace id minted by actionTraceID back into
// its base and action index. ok is false for a bare trace id (no action
// ever delivered under it yet), in which case idx is always 0.
func parseActionTraceID(traceID string) (base string, idx int, ok bool) {
	i := strings.LastIndex(traceID, "#")
	if i < 0 {
		return traceID, 0, false
	}
	n, err := strconv.Atoi(traceID[i+1:])
	if err != nil {
		return traceID, 0, false
	}
	return traceID[:i], n, true
}

// actionTraceID derives the trace id for action idx of an ACTION_LIST
// delivery rooted at base. Action 0 keeps the base id so non-ACTION_LIST
// callers see no change in trace id shape.
func actionTraceID(base string, idx int) string {
	if idx == 0 {
		return base
	}
	return fmt.Sprintf("%s#%d", base, idx)
}

// send issues one HTTP request and classifies the result. The returned bool
// reports whether the endpoint answered at all (2xx or a terminal client
// rejection) — the signal the circuit breaker cares about — as distinct
// from the Outcome, which also distinguishes retryable from abandoned
// infrastructure failures.
func (d *Deliverer) send(ctx context.Context, integ *ent.Integration, req transform.Request, traceID, eventID string, trigger TriggerType, attemptNumber int, payload map[string]interface{}) (Outcome, bool, error) {
	log := slog.With("component", "deliverer", "integration_id", integ.ID, "trace_id", traceID)

	timeout := time.Duration(integ.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return OutcomeFailed, false, fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Message-Id", uuid.NewString())

	if integ.SigningEnabled && integ.SigningSecret != nil {
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		httpReq.Header.Set("X-Signature", sign(*integ.SigningSecret, req.Body))
		httpReq.Header.Set("X-Signature-Timestamp", ts)
	}

	start := time.Now()
	resp, err := d.client.Do(httpReq)
	duration := time.Since(start).Milliseconds()
	now := time.Now()

	if err != nil {
		log.Warn("outbound request failed", "error", err)
		outcome, err := d.finishRetryableOrAbandoned(ctx, integ, traceID, eventID, trigger, attemptNumber, now, duration, nil, err.Error(), payload)
		return outcome, false, err
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyCapture))
	status := resp.StatusCode

	switch {
	case status >= 200 && status < 300:
		respBody := string(bodyBytes)
		_, err := d.store.UpsertLog(ctx, store.LogUpsert{
			TraceID: traceID, OrgID: integ.OrgID, IntegrationID: integ.ID, EventID: eventID,
			Direction: executionlog.DirectionOUTBOUND, TriggerType: trigger,
			Status: executionlog.StatusSUCCESS, AttemptCount: attemptNumber, LastAttemptAt: now,
			ResponseStatus: &status, ResponseBody: &respBody, FinishedAt: &now, DurationMs: &duration,
			RequestSnapshot: payload,
		})
		if err != nil {
			return OutcomeSuccess, true, err
		}
		outcome, err := d.appendAttempt(ctx, traceID, attemptNumber, status, OutcomeSuccess, "", duration)
		return outcome, true, err

	case status == 429 || status >= 500:
		msg := fmt.Sprintf("upstream returned %d", status)
		outcome, err := d.finishRetryableOrAbandoned(ctx, integ, traceID, eventID, trigger, attemptNumber, now, duration, &status, msg, payload)
		return outcome, false, err

	default:
		// Terminal client failure: no retry. The endpoint did answer, so
		// this still counts as a successful probe for the breaker even
		// though the delivery itself is marked Failed.
		category := executionlog.ErrorCategoryCLIENT
		msg := fmt.Sprintf("upstream returned %d", status)
		_, err := d.store.UpsertLog(ctx, store.LogUpsert{
			TraceID: traceID, OrgID: integ.OrgID, IntegrationID: integ.ID, EventID: eventID,
			Direction: executionlog.DirectionOUTBOUND, TriggerType: trigger,
			Status: executionlog.StatusFAILED, AttemptCount: attemptNumber, LastAttemptAt: now,
			ResponseStatus: &status, ErrorCategory: &category, ErrorMessage: &msg,
			FinishedAt: &now, DurationMs: &duration, RequestSnapshot: payload,
		})
		if err != nil {
			return OutcomeFailed, true, err
		}
		outcome, err := d.appendAttempt(ctx, traceID, attemptNumber, status, OutcomeFailed, msg, duration)
		return outcome, true, err
	}
}

func (d *Deliverer) finishRetryableOrAbandoned(ctx context.Context, integ *ent.Integration, traceID, eventID string, trigger TriggerType, attemptNumber int, now time.Time, duration int64, status *int, errMsg string, payload map[string]interface{}) (Outcome, error) {
	category := executionlog.ErrorCategoryINFRASTRUCTURE
	willRetry := attemptNumber <= integ.RetryCount
	resultStatus := executionlog.StatusRETRYING
	outcome := OutcomeRetry
	if !willRetry {
		resultStatus = executionlog.StatusABANDONED
		outcome = OutcomeFailed
		category = executionlog.ErrorCategoryEXHAUSTED
	}

	in := store.LogUpsert{
		TraceID: traceID, OrgID: integ.OrgID, IntegrationID: integ.ID, EventID: eventID,
		Direction: executionlog.DirectionOUTBOUND, TriggerType: trigger,
		Status: resultStatus, AttemptCount: attemptNumber, LastAttemptAt: now,
		ErrorCategory: &category, ErrorMessage: &errMsg, DurationMs: &duration,
		RequestSnapshot: payload,
	}
	if status != nil {
		in.ResponseStatus = status
	}
	if !willRetry {
		in.FinishedAt = &now
	}

	if _, err := d.store.UpsertLog(ctx, in); err != nil {
		return outcome, err
	}

	if _, err := d.appendAttempt(ctx, traceID, attemptNumber, 0, outcome, errMsg, duration); err != nil {
		return outcome, err
	}

	if !willRetry {
		if err := d.appendDLQ(ctx, integ, traceID, eventID, errMsg); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

func (d *Deliverer) appendAttempt(ctx context.Context, traceID string, attemptNumber, status int, outcome Outcome, errMsg string, duration int64) (Outcome, error) {
	attempt := store.AttemptInput{
		ID:            uuid.NewString(),
		AttemptNumber: attemptNumber,
		Outcome:       string(outcome),
		DurationMs:    &duration,
	}
	if status != 0 {
		attempt.ResponseStatus = &status
	}
	if errMsg != "" {
		attempt.ErrorMessage = &errMsg
	}
	if err := d.store.AppendDeliveryAttempt(ctx, traceID, attempt); err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (d *Deliverer) appendDLQ(ctx context.Context, integ *ent.Integration, traceID, eventID, errMsg string) error {
	category := string(executionlog.ErrorCategoryEXHAUSTED)
	create := d.store.Client().DLQEntry.Create().
		SetID(uuid.NewString()).
		SetExecutionLogID(traceID).
		SetIntegrationID(integ.ID).
		SetOrgID(integ.OrgID).
		SetPayload(map[string]interface{}{"event_id": eventID}).
		SetErrorMessage(errMsg).
		SetErrorCategory(category).
		SetMaxRetries(integ.RetryCount)
	_, err := d.store.AppendDLQ(ctx, create)
	return err
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ErrNotRetryable describes a client-failure outcome that is not retried.
// No function in this module returns it.
var ErrNotRetryable = errors.New("outcome is not retryable")
