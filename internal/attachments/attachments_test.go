package attachments

import (
	"context"
	"io"
	"strings"
	"testing"

	"veedcore/internal/blob"
)

func newTestStore() *Store {
	return New(blob.NewMemory())
}

func TestEvidenceKeyScheme(t *testing.T) {
	key, err := EvidenceKey("C-1", "EV-1")
	if err != nil || key != "evidence/C-1/EV-1" {
		t.Fatalf("unexpected key %q (%v)", key, err)
	}
	key, err = DocumentFileKey("C-1", "contrato", "DF-1")
	if err != nil || key != "docfile/C-1/contrato/DF-1" {
		t.Fatalf("unexpected key %q (%v)", key, err)
	}

	for _, bad := range []struct{ caseID, evID string }{
		{"", "EV-1"},
		{"C-1", ""},
		{"C/1", "EV-1"},
		{"C-1", "EV\\1"},
	} {
		if _, err := EvidenceKey(bad.caseID, bad.evID); err == nil {
			t.Fatalf("key (%q, %q) must be rejected", bad.caseID, bad.evID)
		}
	}
}

func TestEvidenceRoundTrip(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	if _, err := s.PutEvidence(ctx, "C-1", "EV-1", strings.NewReader("photo"), blob.PutOptions{ContentType: "image/jpeg"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	info, rc, err := s.GetEvidence(ctx, "C-1", "EV-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, _ := io.ReadAll(rc)
	if string(data) != "photo" || info.ContentType != "image/jpeg" {
		t.Fatalf("round trip lost data: %q %+v", data, info)
	}

	if _, _, err := s.GetEvidence(ctx, "C-1", "EV-gone"); !IsNotFound(err) {
		t.Fatalf("missing evidence must be not-found, got %v", err)
	}
}

func TestListingsAreCaseAndDocScoped(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	put := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	_, err := s.PutEvidence(ctx, "C-1", "EV-1", strings.NewReader("a"), blob.PutOptions{})
	put(err)
	_, err = s.PutEvidence(ctx, "C-2", "EV-2", strings.NewReader("b"), blob.PutOptions{})
	put(err)
	_, err = s.PutDocumentFile(ctx, "C-1", "contrato", "DF-1", strings.NewReader("c"), blob.PutOptions{})
	put(err)
	_, err = s.PutDocumentFile(ctx, "C-1", "polizas", "DF-2", strings.NewReader("d"), blob.PutOptions{})
	put(err)

	evs, err := s.ListEvidenceByCase(ctx, "C-1")
	if err != nil || len(evs) != 1 || evs[0].Key != "evidence/C-1/EV-1" {
		t.Fatalf("unexpected evidence listing: %+v (%v)", evs, err)
	}
	all, err := s.ListDocumentFilesByCase(ctx, "C-1")
	if err != nil || len(all) != 2 {
		t.Fatalf("unexpected case doc listing: %+v (%v)", all, err)
	}
	one, err := s.ListDocumentFiles(ctx, "C-1", "contrato")
	if err != nil || len(one) != 1 || one[0].Key != "docfile/C-1/contrato/DF-1" {
		t.Fatalf("unexpected doc slot listing: %+v (%v)", one, err)
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	if _, err := s.PutEvidence(ctx, "C-1", "EV-1", strings.NewReader("a"), blob.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ok, err := s.DeleteEvidence(ctx, "C-1", "EV-1"); err != nil || !ok {
		t.Fatalf("delete existing: (%v, %v)", ok, err)
	}
	if ok, err := s.DeleteEvidence(ctx, "C-1", "EV-1"); err != nil || ok {
		t.Fatalf("delete missing must be (false, nil): (%v, %v)", ok, err)
	}
}

func TestPurgeCaseRemovesOnlyThatCase(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	for _, seed := range []struct{ caseID, evID string }{
		{"C-1", "EV-1"}, {"C-1", "EV-2"}, {"C-2", "EV-3"},
	} {
		if _, err := s.PutEvidence(ctx, seed.caseID, seed.evID, strings.NewReader("x"), blob.PutOptions{}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if _, err := s.PutDocumentFile(ctx, "C-1", "contrato", "DF-1", strings.NewReader("x"), blob.PutOptions{}); err != nil {
		t.Fatalf("seed doc: %v", err)
	}

	deleted, errs := s.PurgeCase(ctx, "C-1")
	if len(errs) != 0 {
		t.Fatalf("unexpected purge errors: %v", errs)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deletions, got %d", deleted)
	}
	remaining, err := s.ListEvidenceByCase(ctx, "C-2")
	if err != nil || len(remaining) != 1 {
		t.Fatalf("other case payloads must survive: %+v (%v)", remaining, err)
	}
}
