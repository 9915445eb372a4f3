package transfer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"veedcore/internal/blob"
	"veedcore/internal/core"
	"veedcore/pkg/domain"
)

type captureAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *captureAudit) Record(_ context.Context, entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *captureAudit) statuses() []JobStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]JobStatus, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Status)
	}
	return out
}

func newTestWorker(t *testing.T) (*Worker, *core.Service, blob.Store, *captureAudit) {
	t.Helper()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	store := blob.NewMemory()
	audit := &captureAudit{}
	w := NewWorker(svc, store, audit)
	w.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.Stop(ctx); err != nil {
			t.Errorf("stop worker: %v", err)
		}
	})
	return w, svc, store, audit
}

func seedCase(t *testing.T, svc *core.Service) core.CaseRecord {
	t.Helper()
	c, _, err := svc.CreateCase(context.Background(), core.CaseRecord{
		Reference: domain.CaseReference{ProcessID: "2023-AB-017", Entity: "Alcaldía de Pasto"},
	})
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	return c
}

func waitForJob(t *testing.T, w *Worker, id string) JobRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		record, ok := w.Get(id)
		if !ok {
			t.Fatalf("job %s disappeared", id)
		}
		if record.Status == JobStatusSucceeded || record.Status == JobStatusFailed {
			return record
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not complete", id)
	return JobRecord{}
}

func TestCaseExportJobProducesArtifact(t *testing.T) {
	w, svc, store, audit := newTestWorker(t)
	ctx := context.Background()
	c := seedCase(t, svc)

	queued, err := w.Enqueue(ctx, JobInput{Scope: ScopeCase, CaseID: c.ID, RequestedBy: "Ana"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if queued.Status != JobStatusQueued || queued.ID == "" {
		t.Fatalf("unexpected queued record %+v", queued)
	}

	record := waitForJob(t, w, queued.ID)
	if record.Status != JobStatusSucceeded {
		t.Fatalf("job failed: %+v", record)
	}
	if record.Artifact == nil || record.Artifact.Key != "export/"+queued.ID+".json" {
		t.Fatalf("unexpected artifact %+v", record.Artifact)
	}
	if record.CompletedAt == nil {
		t.Fatalf("completed job must carry a completion time")
	}

	_, rc, err := store.Get(ctx, record.Artifact.Key)
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	defer func() { _ = rc.Close() }()
	var doc core.CaseDocument
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		t.Fatalf("artifact must be a case document: %v", err)
	}
	if doc.Format != core.FormatCaseV4 || doc.CaseMeta.ID != c.ID {
		t.Fatalf("unexpected document %q %q", doc.Format, doc.CaseMeta.ID)
	}

	statuses := audit.statuses()
	if len(statuses) != 2 || statuses[0] != JobStatusQueued || statuses[1] != JobStatusSucceeded {
		t.Fatalf("unexpected audit trail %v", statuses)
	}
}

func TestAllScopeExportsEveryCase(t *testing.T) {
	w, svc, store, _ := newTestWorker(t)
	ctx := context.Background()
	seedCase(t, svc)
	if _, _, err := svc.CreateCase(ctx, core.CaseRecord{
		Reference: domain.CaseReference{ProcessID: "2023-AB-018"},
	}); err != nil {
		t.Fatalf("second case: %v", err)
	}

	queued, err := w.Enqueue(ctx, JobInput{Scope: ScopeAll, RequestedBy: "Ana"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	record := waitForJob(t, w, queued.ID)
	if record.Status != JobStatusSucceeded {
		t.Fatalf("job failed: %+v", record)
	}

	_, rc, err := store.Get(ctx, record.Artifact.Key)
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	defer func() { _ = rc.Close() }()
	var doc core.MultiDocument
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Format != core.FormatMultiV4 || len(doc.Cases) != 2 {
		t.Fatalf("unexpected multi document %q with %d cases", doc.Format, len(doc.Cases))
	}
}

func TestEnqueueValidation(t *testing.T) {
	w, svc, _, _ := newTestWorker(t)
	ctx := context.Background()
	seedCase(t, svc)

	if _, err := w.Enqueue(ctx, JobInput{Scope: ScopeCase}); err == nil {
		t.Fatalf("case scope without case id must fail")
	}
	if _, err := w.Enqueue(ctx, JobInput{Scope: ScopeCase, CaseID: "C-missing"}); err == nil {
		t.Fatalf("unknown case must fail")
	}
	if _, err := w.Enqueue(ctx, JobInput{Scope: "weekly"}); err == nil {
		t.Fatalf("unknown scope must fail")
	}
}

func TestListReturnsSnapshots(t *testing.T) {
	w, svc, _, _ := newTestWorker(t)
	ctx := context.Background()
	c := seedCase(t, svc)

	queued, err := w.Enqueue(ctx, JobInput{Scope: ScopeCase, CaseID: c.ID})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitForJob(t, w, queued.ID)

	list := w.List()
	if len(list) != 1 || list[0].ID != queued.ID {
		t.Fatalf("unexpected listing %+v", list)
	}
	// Mutating the snapshot must not leak into the worker's record.
	list[0].Status = JobStatusFailed
	if record, _ := w.Get(queued.ID); record.Status != JobStatusSucceeded {
		t.Fatalf("listing must be a snapshot, got %+v", record)
	}
}
