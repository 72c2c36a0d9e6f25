// Package runs executes simulation runs asynchronously from a queue and tracks
// their status.
package runs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"carboncore/internal/blob"
	"carboncore/internal/core"
)

// Status describes the lifecycle stage of a queued run.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Record tracks a run request and its outcome.
type Record struct {
	ID           string           `json:"id"`
	Scenario     string           `json:"scenario"`
	Realizations int              `json:"realizations"`
	Status       Status           `json:"status"`
	Error        string           `json:"error,omitempty"`
	Summary      *core.RunSummary `json:"summary,omitempty"`
	// SummaryKey is the blob key of the stored summary, when a blob store is configured.
	SummaryKey  string     `json:"summary_key,omitempty"`
	RequestedBy string     `json:"requested_by"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Input is an enqueue request.
type Input struct {
	Scenario     *core.Scenario
	Realizations int
	RequestedBy  string
	Reason       string
}

// Runner executes one run under a given id. *core.Service implements it.
type Runner interface {
	RunWithID(ctx context.Context, runID string, sc *core.Scenario, n int) (core.RunSummary, error)
}

// Scheduler queues runs and exposes their status.
type Scheduler interface {
	Enqueue(ctx context.Context, input Input) (Record, error)
	Get(id string) (Record, bool)
}

// AuditLogger records run audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures one status transition.
type AuditEntry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	RunID      string         `json:"run_id"`
	Scenario   string         `json:"scenario"`
	Status     Status         `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

const auditAction = "simulation_run"

// ErrQueueFull is returned when the queue cannot accept another run.
var ErrQueueFull = errors.New("run queue full")

// Worker runs queued simulations one at a time.
type Worker struct {
	runner    Runner
	summaries blob.Store
	audit     AuditLogger

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id    string
	input Input
}

// NewWorker constructs a worker. summaries and audit may be nil.
func NewWorker(runner Runner, summaries blob.Store, audit AuditLogger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		runner:    runner,
		summaries: summaries,
		audit:     audit,
		queue:     make(chan task, 32),
		jobs:      make(map[string]*Record),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins processing queued runs.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop cancels the running simulation, halts the worker and waits for it.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue validates the request, records it as queued and schedules it.
func (w *Worker) Enqueue(ctx context.Context, input Input) (Record, error) {
	if w.runner == nil {
		return Record{}, errors.New("runner not configured")
	}
	if input.Scenario == nil {
		return Record{}, errors.New("scenario required")
	}
	if input.Realizations < 1 {
		return Record{}, core.ErrNoRealizations
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	record := Record{
		ID:           id,
		Scenario:     input.Scenario.Name,
		Realizations: input.Realizations,
		Status:       StatusQueued,
		RequestedBy:  input.RequestedBy,
		Reason:       input.Reason,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	w.mu.Lock()
	if len(w.queue) == cap(w.queue) {
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	w.jobs[id] = &record
	snapshot := record.copy()
	w.mu.Unlock()

	w.record(ctx, id, StatusQueued, nil)
	select {
	case w.queue <- task{id: id, input: input}:
	default:
		w.fail(id, &core.RunSummary{}, ErrQueueFull.Error())
		return Record{}, ErrQueueFull
	}
	return snapshot, nil
}

// Get returns a snapshot of the run record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(t task) {
	w.transition(t.id, func(r *Record) { r.Status = StatusRunning })
	w.record(w.ctx, t.id, StatusRunning, nil)

	summary, err := w.runner.RunWithID(w.ctx, t.id, t.input.Scenario, t.input.Realizations)
	if err != nil {
		w.fail(t.id, &summary, fmt.Sprintf("run failed: %v", err))
		return
	}
	key, err := w.storeSummary(summary)
	if err != nil {
		w.fail(t.id, &summary, fmt.Sprintf("store summary failed: %v", err))
		return
	}

	now := time.Now().UTC()
	w.transition(t.id, func(r *Record) {
		r.Status = StatusSucceeded
		r.Error = ""
		r.Summary = &summary
		r.SummaryKey = key
		r.CompletedAt = &now
	})
	w.record(w.ctx, t.id, StatusSucceeded, map[string]any{
		"succeeded": summary.Succeeded,
		"failed":    len(summary.Failed),
	})
}

// SummaryKey is the blob key holding a run's summary.
func SummaryKey(runID string) string { return "summaries/" + runID + ".json" }

func (w *Worker) storeSummary(summary core.RunSummary) (string, error) {
	if w.summaries == nil {
		return "", nil
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	key := SummaryKey(summary.RunID)
	_, err = w.summaries.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"scenario":  summary.Scenario,
			"succeeded": strconv.Itoa(summary.Succeeded),
		},
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (w *Worker) transition(id string, fn func(r *Record)) {
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		fn(record)
		record.UpdatedAt = time.Now().UTC()
	}
	w.mu.Unlock()
}

func (w *Worker) fail(id string, summary *core.RunSummary, reason string) {
	now := time.Now().UTC()
	w.transition(id, func(r *Record) {
		r.Status = StatusFailed
		r.Error = reason
		if summary.RunID != "" {
			r.Summary = summary
		}
		r.CompletedAt = &now
	})
	w.record(w.ctx, id, StatusFailed, map[string]any{"error": reason})
}

func (w *Worker) record(ctx context.Context, id string, status Status, metadata map[string]any) {
	if w.audit == nil {
		return
	}
	w.mu.RLock()
	record, ok := w.jobs[id]
	var entry AuditEntry
	if ok {
		entry = AuditEntry{
			Actor:    record.RequestedBy,
			Scenario: record.Scenario,
			Reason:   record.Reason,
		}
	}
	w.mu.RUnlock()
	entry.ID = uuid.NewString()
	entry.Action = auditAction
	entry.RunID = id
	entry.Status = status
	entry.Metadata = metadata
	entry.OccurredAt = time.Now().UTC()
	w.audit.Record(ctx, entry)
}

func (r Record) copy() Record {
	dup := r
	if r.Summary != nil {
		s := *r.Summary
		s.Failed = append([]core.RealizationFailure(nil), r.Summary.Failed...)
		s.Warnings = append(s.Warnings[:0:0], r.Summary.Warnings...)
		dup.Summary = &s
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		dup.CompletedAt = &t
	}
	return dup
}

// MemoryAuditLog keeps audit entries in memory.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]AuditEntry(nil), l.entries...)
}
