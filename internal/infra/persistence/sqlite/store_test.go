package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"veedcore/internal/infra/persistence/sqlite"
	"veedcore/pkg/domain"
)

func TestPersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veedcore.db")
	store, err := sqlite.NewStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		c, err := tx.CreateCase(domain.CaseRecord{ID: "C-1", Name: "Caso puente"})
		if err != nil {
			return err
		}
		tx.SetActiveCase(c.ID)
		tx.SetUserName("Ana")
		return nil
	}); err != nil {
		t.Fatalf("tx: %v", err)
	}
	if err := store.DB().Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := sqlite.NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.DB().Close() }()

	c, ok := reopened.GetCase("C-1")
	if !ok || c.Name != "Caso puente" {
		t.Fatalf("case not rehydrated: %+v", c)
	}
	if reopened.ActiveCaseID() != "C-1" || reopened.UserName() != "Ana" {
		t.Fatalf("identity not rehydrated: active=%q user=%q", reopened.ActiveCaseID(), reopened.UserName())
	}
}

func TestSnapshotOverwritesPreviousRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veedcore.db")
	store, err := sqlite.NewStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.DB().Close() }()
	ctx := context.Background()

	for _, id := range []string{"C-1", "C-2"} {
		cid := id
		if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.CreateCase(domain.CaseRecord{ID: cid})
			return err
		}); err != nil {
			t.Fatalf("create %s: %v", cid, err)
		}
	}

	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("snapshot must upsert a single row, got %d", count)
	}
}
