package blob

import (
	"context"
	"testing"
)

func TestOpenDefaultsToFilesystem(t *testing.T) {
	t.Setenv("VEEDCORE_BLOB_DRIVER", "")
	t.Setenv("VEEDCORE_BLOB_FS_ROOT", t.TempDir())

	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("expected fs driver, got %q", store.Driver())
	}
}

func TestOpenSelectsMemoryDriver(t *testing.T) {
	t.Setenv("VEEDCORE_BLOB_DRIVER", "memory")
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("expected memory driver, got %q", store.Driver())
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Setenv("VEEDCORE_BLOB_DRIVER", "tape")
	if _, err := Open(context.Background()); err == nil {
		t.Fatalf("unknown driver must fail")
	}
}

func TestOpenS3RequiresBucket(t *testing.T) {
	t.Setenv("VEEDCORE_BLOB_DRIVER", "s3")
	t.Setenv("VEEDCORE_BLOB_S3_BUCKET", "")
	if _, err := Open(context.Background()); err == nil {
		t.Fatalf("s3 without bucket must fail")
	}
}
