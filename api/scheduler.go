/*
scheduler.go - Periodic re-validation of stored records

PURPOSE:
  Rules are checked when a record is written, but the world moves on
  afterwards: deletes are never validated, so references can dangle, and
  date windows slide. The auditor periodically resubmits every stored
  record to its own pipeline, unchanged, and records the ones that would
  now be rejected. Nothing is modified.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Each record is checked as an idempotent resubmission (previous ==
    proposed), so only the current status's requirements apply
  - Collections without a registered pipeline are skipped
  - The most recent runs are kept in memory for the API

USAGE:
  auditor := NewAuditor(store, dispatcher, generic.SystemClock{})
  auditor.Start()
  // ... later
  auditor.Stop()

SEE ALSO:
  - handlers.go: Handler owns one Auditor
  - generic/statemachine.go: Unchanged-status semantics
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/finance-gate/generic"
)

// maxAuditRuns is how many runs are retained.
const maxAuditRuns = 20

// auditSource is the part of the store a sweep reads.
type auditSource interface {
	Collections(ctx context.Context) ([]string, error)
	List(ctx context.Context, collection string) ([]generic.Document, error)
}

// auditTarget is the dispatcher surface a sweep uses.
type auditTarget interface {
	generic.Validator
	Handles(collection string) bool
}

// Auditor re-validates stored records on a schedule.
type Auditor struct {
	Source        auditSource
	Target        auditTarget
	Clock         generic.Clock
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	runsMu sync.Mutex
	runs   []AuditRunDTO
}

// NewAuditor creates an auditor that runs hourly once started.
func NewAuditor(source auditSource, target auditTarget, clock generic.Clock) *Auditor {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Auditor{
		Source:        source,
		Target:        target,
		Clock:         clock,
		CheckInterval: time.Hour,
		Enabled:       true,
	}
}

// Start begins the periodic sweep. The first sweep runs immediately.
func (a *Auditor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.Enabled {
		slog.Info("auditor disabled, not starting")
		return
	}
	if a.ticker != nil {
		return
	}

	a.ticker = time.NewTicker(a.CheckInterval)
	a.stop = make(chan struct{})
	a.wg.Add(1)
	go a.run(a.ticker, a.stop)

	slog.Info("auditor started", "interval", a.CheckInterval)
}

// Stop halts the sweep and waits for a running one to finish.
func (a *Auditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ticker == nil {
		return
	}
	a.ticker.Stop()
	close(a.stop)
	a.wg.Wait()
	a.ticker = nil
	slog.Info("auditor stopped")
}

func (a *Auditor) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer a.wg.Done()

	a.RunNow(context.Background())
	for {
		select {
		case <-ticker.C:
			a.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow performs one sweep and records it.
func (a *Auditor) RunNow(ctx context.Context) AuditRunDTO {
	run := AuditRunDTO{
		ID:        uuid.NewString(),
		StartedAt: a.Clock.Now().UTC(),
		Findings:  []FindingDTO{},
	}

	names, err := a.Source.Collections(ctx)
	if err != nil {
		run.Error = err.Error()
	}
	for _, name := range names {
		if !a.Target.Handles(name) {
			continue
		}
		docs, err := a.Source.List(ctx, name)
		if err != nil {
			run.Error = err.Error()
			break
		}
		for _, doc := range docs {
			run.Checked++
			verr := a.Target.Validate(ctx, generic.WriteAttempt{
				Collection: doc.Collection,
				Key:        doc.Key,
				Proposed:   doc.Data,
				Previous:   doc.Data,
			})
			if verr == nil {
				continue
			}
			f := FindingDTO{Collection: doc.Collection, Key: doc.Key, Error: verr.Error()}
			if rej, ok := generic.AsRejection(verr); ok {
				f.Kind = string(rej.Kind)
			}
			run.Findings = append(run.Findings, f)
		}
	}
	run.FinishedAt = a.Clock.Now().UTC()

	slog.Info("audit run finished", "id", run.ID, "checked", run.Checked, "findings", len(run.Findings))
	a.record(run)
	return run
}

func (a *Auditor) record(run AuditRunDTO) {
	a.runsMu.Lock()
	defer a.runsMu.Unlock()
	a.runs = append(a.runs, run)
	if len(a.runs) > maxAuditRuns {
		a.runs = a.runs[len(a.runs)-maxAuditRuns:]
	}
}

// Runs returns the retained runs, most recent first.
func (a *Auditor) Runs() []AuditRunDTO {
	a.runsMu.Lock()
	defer a.runsMu.Unlock()
	out := make([]AuditRunDTO, len(a.runs))
	for i, r := range a.runs {
		out[len(a.runs)-1-i] = r
	}
	return out
}

// =============================================================================
// AUDIT ENDPOINTS
// =============================================================================

// ListAuditRuns returns recent sweeps.
// GET /api/audit/runs
func (h *Handler) ListAuditRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Auditor.Runs())
}

// TriggerAudit runs a sweep synchronously.
// POST /api/audit/run
func (h *Handler) TriggerAudit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Auditor.RunNow(r.Context()))
}
