package core

import (
	"path/filepath"
	"testing"

	"veedcore/internal/infra/persistence/jsonfile"
	"veedcore/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreDefaultsToJSONFile(t *testing.T) {
	t.Setenv("VEEDCORE_STORAGE_DRIVER", "")
	t.Setenv("VEEDCORE_JSONFILE_PATH", filepath.Join(t.TempDir(), "veedcore.json"))

	store, err := OpenPersistentStore(NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*jsonfile.Store); !ok {
		t.Fatalf("expected jsonfile store, got %T", store)
	}
}

func TestOpenPersistentStoreSelectsDriver(t *testing.T) {
	t.Setenv("VEEDCORE_STORAGE_DRIVER", "memory")
	store, err := OpenPersistentStore(nil)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	t.Setenv("VEEDCORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("VEEDCORE_SQLITE_PATH", filepath.Join(t.TempDir(), "veedcore.db"))
	store, err = OpenPersistentStore(nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	_ = s.DB().Close()
}

func TestOpenPersistentStoreRejectsUnknownDriver(t *testing.T) {
	t.Setenv("VEEDCORE_STORAGE_DRIVER", "etcd")
	if _, err := OpenPersistentStore(nil); err == nil {
		t.Fatalf("unknown driver must fail")
	}
}
