package core

import (
	"fmt"
	"os"

	"veedcore/internal/infra/persistence/jsonfile"
	"veedcore/internal/infra/persistence/memory"
	"veedcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageJSONFile StorageDriver = "jsonfile" // whole-document JSON file (default)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore

	// MemoryStore is the canonical in-memory implementation durable drivers wrap.
	MemoryStore = memory.Store
)

// NewMemoryStore constructs an in-memory store backed by the provided rules engine.
func NewMemoryStore(engine *RulesEngine) *MemoryStore { return memory.NewStore(engine) }

// OpenPersistentStore selects a backend using environment variables.
// Defaults to jsonfile when unset.
//
//	VEEDCORE_STORAGE_DRIVER: memory|jsonfile|sqlite|postgres (default jsonfile)
//	VEEDCORE_JSONFILE_PATH: path to JSON document (default ./veedcore.json)
//	VEEDCORE_SQLITE_PATH: path to sqlite file (default ./veedcore.db)
//	VEEDCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	driver := os.Getenv("VEEDCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageJSONFile)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageJSONFile:
		path := os.Getenv("VEEDCORE_JSONFILE_PATH")
		return jsonfile.NewStore(path, engine)
	case StorageSQLite:
		path := os.Getenv("VEEDCORE_SQLITE_PATH")
		return NewSQLiteStore(path, engine)
	case StoragePostgres:
		dsn := os.Getenv("VEEDCORE_POSTGRES_DSN")
		return NewPostgresStore(dsn, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
