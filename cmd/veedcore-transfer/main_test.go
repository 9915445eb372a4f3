package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"veedcore/pkg/domain"
)

func setBackendEnv(t *testing.T, dir string) {
	t.Helper()
	t.Setenv("VEEDCORE_STORAGE_DRIVER", "jsonfile")
	t.Setenv("VEEDCORE_JSONFILE_PATH", filepath.Join(dir, "veedcore.json"))
	t.Setenv("VEEDCORE_BLOB_DRIVER", "fs")
	t.Setenv("VEEDCORE_BLOB_FS_ROOT", filepath.Join(dir, "blobs"))
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "export.json")

	setBackendEnv(t, t.TempDir())
	svc, err := openService(ctx)
	if err != nil {
		t.Fatalf("open service: %v", err)
	}
	if _, _, err := svc.CreateCase(ctx, domain.CaseRecord{
		Reference: domain.CaseReference{ProcessID: "2023-AB-017", Entity: "Alcaldía de Pasto"},
	}); err != nil {
		t.Fatalf("create case: %v", err)
	}

	if code := runExport(ctx, []string{"-out", out}); code != 0 {
		t.Fatalf("export exited %d", code)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("export wrote an empty document")
	}

	// Import into a fresh backend.
	setBackendEnv(t, t.TempDir())
	if code := runImport(ctx, []string{"-in", out}); code != 0 {
		t.Fatalf("import exited %d", code)
	}
	svc, err = openService(ctx)
	if err != nil {
		t.Fatalf("reopen service: %v", err)
	}
	if _, ok := svc.FindByProcessID(ctx, "2023-AB-017"); !ok {
		t.Fatalf("imported case not found")
	}
}

func TestRunImportRequiresInput(t *testing.T) {
	if code := runImport(context.Background(), nil); code != 2 {
		t.Fatalf("expected usage exit, got %d", code)
	}
}

func TestRunExportUnknownCaseFails(t *testing.T) {
	setBackendEnv(t, t.TempDir())
	if code := runExport(context.Background(), []string{"-case", "C-missing"}); code != 1 {
		t.Fatalf("expected failure exit, got %d", code)
	}
}
