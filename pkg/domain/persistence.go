package domain

import (
	"context"
	"time"
)

// Transaction exposes the case operations a persistence implementation must
// support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateCase(CaseRecord) (CaseRecord, error)
	UpdateCase(id string, mutator func(*CaseRecord) error) (CaseRecord, error)
	DeleteCase(id string) error
	FindCase(id string) (CaseRecord, bool)
	SetActiveCase(id string)
	ActiveCaseID() string
	SetUserName(name string)
	UserName() string
	Now() time.Time
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListCases() []CaseRecord
	FindCase(id string) (CaseRecord, bool)
	ActiveCaseID() string
	UserName() string
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetCase(id string) (CaseRecord, bool)
	ListCases() []CaseRecord
	ActiveCaseID() string
	UserName() string
}
