// Package transfer runs export jobs asynchronously, materializing portable
// case documents into the blob store so large exports never block a caller.
package transfer

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"veedcore/internal/blob"
	"veedcore/internal/core"
)

// JobStatus describes the lifecycle stage of an export job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// JobScope selects what an export job covers.
type JobScope string

const (
	// ScopeCase exports a single case document.
	ScopeCase JobScope = "case"
	// ScopeAll exports every case plus the workspace identity.
	ScopeAll JobScope = "all"
)

// Artifact describes a materialized export document in the blob store.
type Artifact struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// JobRecord tracks an export request and its resulting artifact.
type JobRecord struct {
	ID          string     `json:"id"`
	Scope       JobScope   `json:"scope"`
	CaseID      string     `json:"case_id,omitempty"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifact    *Artifact  `json:"artifact,omitempty"`
	RequestedBy string     `json:"requested_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r JobRecord) clone() JobRecord {
	out := r
	if r.Artifact != nil {
		a := *r.Artifact
		out.Artifact = &a
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// JobInput represents an enqueue request for the worker.
type JobInput struct {
	Scope       JobScope
	CaseID      string
	RequestedBy string
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures audit trail metadata for export jobs.
type AuditEntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	Scope      JobScope  `json:"scope"`
	CaseID     string    `json:"case_id,omitempty"`
	Status     JobStatus `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Worker executes export jobs asynchronously.
type Worker struct {
	service *core.Service
	store   blob.Store
	audit   AuditLogger

	queue chan jobTask
	mu    sync.RWMutex
	jobs  map[string]*JobRecord

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type jobTask struct {
	id    string
	input JobInput
}

// NewWorker constructs an export worker writing artifacts to the given store.
func NewWorker(service *core.Service, store blob.Store, audit AuditLogger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		service: service,
		store:   store,
		audit:   audit,
		queue:   make(chan jobTask, 32),
		jobs:    make(map[string]*JobRecord),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing export jobs.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
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
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// Enqueue schedules an export job and returns the queued record.
func (w *Worker) Enqueue(ctx context.Context, input JobInput) (JobRecord, error) {
	switch input.Scope {
	case ScopeCase:
		if strings.TrimSpace(input.CaseID) == "" {
			return JobRecord{}, fmt.Errorf("case id required for case scope")
		}
		if _, ok := w.service.GetCase(ctx, input.CaseID); !ok {
			return JobRecord{}, fmt.Errorf("case %q not found", input.CaseID)
		}
	case ScopeAll:
	default:
		return JobRecord{}, fmt.Errorf("unknown export scope %q", input.Scope)
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	record := JobRecord{
		ID:          id,
		Scope:       input.Scope,
		CaseID:      input.CaseID,
		Status:      JobStatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queued := record.clone()
	w.mu.Unlock()

	if w.audit != nil {
		w.audit.Record(ctx, AuditEntry{
			ID:         uuid.New().String(),
			Action:     "case_export",
			Actor:      input.RequestedBy,
			Scope:      input.Scope,
			CaseID:     input.CaseID,
			Status:     JobStatusQueued,
			OccurredAt: now,
		})
	}

	select {
	case w.queue <- jobTask{id: id, input: input}:
	default:
		return JobRecord{}, fmt.Errorf("export queue full")
	}
	return queued, nil
}

// Get returns a snapshot of the job record.
func (w *Worker) Get(id string) (JobRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return JobRecord{}, false
	}
	return record.clone(), true
}

// List returns snapshots of all job records, unordered.
func (w *Worker) List() []JobRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]JobRecord, 0, len(w.jobs))
	for _, record := range w.jobs {
		out = append(out, record.clone())
	}
	return out
}

func (w *Worker) process(task jobTask) {
	w.updateStatus(task.id, JobStatusRunning, "")

	var buf bytes.Buffer
	var err error
	switch task.input.Scope {
	case ScopeCase:
		err = w.service.WriteExportCase(w.ctx, task.input.CaseID, &buf)
	case ScopeAll:
		err = w.service.WriteExportAll(w.ctx, &buf)
	default:
		err = fmt.Errorf("unknown export scope %q", task.input.Scope)
	}
	if err != nil {
		w.fail(task.id, task.input, err.Error())
		return
	}

	key := "export/" + task.id + ".json"
	info, err := w.store.Put(w.ctx, key, bytes.NewReader(buf.Bytes()), blob.PutOptions{ContentType: "application/json"})
	if err != nil {
		w.fail(task.id, task.input, fmt.Sprintf("store artifact: %v", err))
		return
	}

	now := time.Now().UTC()
	artifact := &Artifact{
		Key:         info.Key,
		ContentType: "application/json",
		SizeBytes:   info.Size,
		URL:         info.URL,
		CreatedAt:   now,
	}
	w.mu.Lock()
	if record, ok := w.jobs[task.id]; ok {
		record.Status = JobStatusSucceeded
		record.Artifact = artifact
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()

	if w.audit != nil {
		w.audit.Record(w.ctx, AuditEntry{
			ID:         uuid.New().String(),
			Action:     "case_export",
			Actor:      task.input.RequestedBy,
			Scope:      task.input.Scope,
			CaseID:     task.input.CaseID,
			Status:     JobStatusSucceeded,
			OccurredAt: now,
		})
	}
}

func (w *Worker) updateStatus(id string, status JobStatus, errMsg string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = errMsg
		record.UpdatedAt = now
	}
	w.mu.Unlock()
}

func (w *Worker) fail(id string, input JobInput, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = JobStatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	if w.audit != nil {
		w.audit.Record(w.ctx, AuditEntry{
			ID:         uuid.New().String(),
			Action:     "case_export",
			Actor:      input.RequestedBy,
			Scope:      input.Scope,
			CaseID:     input.CaseID,
			Status:     JobStatusFailed,
			OccurredAt: now,
		})
	}
}
