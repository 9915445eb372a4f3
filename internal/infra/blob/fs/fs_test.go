package fs

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"veedcore/internal/blob/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := []byte("evidence bytes")
	info, err := s.Put(ctx, "evidence/C-1/EV-1", bytes.NewReader(payload), core.PutOptions{
		ContentType: "image/jpeg",
		Metadata:    map[string]string{"name": "foto1.jpg"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(payload)) || info.ContentType != "image/jpeg" || info.ETag == "" {
		t.Fatalf("unexpected put info: %+v", info)
	}

	got, rc, err := s.Get(ctx, "evidence/C-1/EV-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("payload mismatch: %q", data)
	}
	if got.Metadata["name"] != "foto1.jpg" || got.ETag != info.ETag {
		t.Fatalf("metadata lost: %+v", got)
	}
}

func TestPutReplacesExistingBlob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, "k", strings.NewReader("v1"), core.PutOptions{}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := s.Put(ctx, "k", strings.NewReader("v2-longer"), core.PutOptions{ContentType: "text/plain"}); err != nil {
		t.Fatalf("second put: %v", err)
	}

	info, rc, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, _ := io.ReadAll(rc)
	if string(data) != "v2-longer" || info.Size != 9 {
		t.Fatalf("put must upsert: %q size=%d", data, info.Size)
	}
}

func TestMissingBlobIsNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, _, err := s.Get(ctx, "absent"); !core.IsNotFound(err) {
		t.Fatalf("get must report not found, got %v", err)
	}
	if _, err := s.Head(ctx, "absent"); !core.IsNotFound(err) {
		t.Fatalf("head must report not found, got %v", err)
	}
	deleted, err := s.Delete(ctx, "absent")
	if err != nil || deleted {
		t.Fatalf("delete of a missing blob must be (false, nil), got (%v, %v)", deleted, err)
	}
}

func TestDeleteRemovesBlob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Put(ctx, "k", strings.NewReader("v"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	deleted, err := s.Delete(ctx, "k")
	if err != nil || !deleted {
		t.Fatalf("delete: (%v, %v)", deleted, err)
	}
	if _, err := s.Head(ctx, "k"); !core.IsNotFound(err) {
		t.Fatalf("blob must be gone, got %v", err)
	}
}

func TestListFiltersByPrefixSorted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, key := range []string{
		"evidence/C-1/EV-2",
		"evidence/C-1/EV-1",
		"evidence/C-2/EV-9",
		"docfile/C-1/contrato/DF-1",
	} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	infos, err := s.List(ctx, "evidence/C-1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "evidence/C-1/EV-1" || infos[1].Key != "evidence/C-1/EV-2" {
		t.Fatalf("unexpected listing: %+v", infos)
	}

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 blobs, got %d", len(all))
	}
}

func TestKeySanitization(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, key := range []string{"", "  ", "../escape", "/abs/path", "a/../../b"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("key %q must be rejected", key)
		}
	}
}

func TestPresignURLGetOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	url, err := s.PresignURL(ctx, "evidence/C-1/EV-1", core.SignedURLOptions{})
	if err != nil || !strings.Contains(url, "evidence/C-1/EV-1") {
		t.Fatalf("presign: %q %v", url, err)
	}
	if _, err := s.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); err != core.ErrUnsupported {
		t.Fatalf("non-GET presign must be unsupported, got %v", err)
	}
}
