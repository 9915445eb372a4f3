// Package memory implements the transactional in-memory case store that
// durable backends wrap with snapshot persistence.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"veedcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

type state struct {
	cases    map[string]domain.CaseRecord
	order    []string // insertion order, newest first
	activeID string
	userName string
}

func newState() state {
	return state{cases: make(map[string]domain.CaseRecord)}
}

func (s state) clone() state {
	cloned := newState()
	for k, v := range s.cases {
		cloned.cases[k] = domain.CloneCase(v)
	}
	cloned.order = append([]string(nil), s.order...)
	cloned.activeID = s.activeID
	cloned.userName = s.userName
	return cloned
}

// Store provides an in-memory transactional store for case records.
type Store struct {
	mu     sync.RWMutex
	state  state
	engine *domain.RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// RulesEngine returns the engine evaluated on every transaction.
func (s *Store) RulesEngine() *domain.RulesEngine { return s.engine }

// NowFunc returns the store clock. Tests may not override it; wrap the store
// instead.
func (s *Store) NowFunc() func() time.Time { return s.nowFn }

// SetNowFunc overrides the store clock for deterministic tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

// NewCaseID allocates a fresh case identity.
func (s *Store) NewCaseID() string {
	return "C-" + randomSuffix(s.nowFn())
}

func randomSuffix(now time.Time) string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%s-%d", hex.EncodeToString(b[:]), now.UnixMilli())
}

// Transaction represents a mutation set applied to the store state.
type Transaction struct {
	store   *Store
	state   state
	changes []domain.Change
	now     time.Time
}

var _ domain.Transaction = (*Transaction)(nil)

// view exposes a read-only snapshot of the transactional state to rules.
type view struct {
	state *state
}

var _ domain.TransactionView = view{}

// ListCases returns all cases within the snapshot, newest first.
func (v view) ListCases() []domain.CaseRecord {
	out := make([]domain.CaseRecord, 0, len(v.state.order))
	for _, id := range v.state.order {
		if c, ok := v.state.cases[id]; ok {
			out = append(out, domain.CloneCase(c))
		}
	}
	return out
}

// FindCase retrieves a case by ID from the snapshot.
func (v view) FindCase(id string) (domain.CaseRecord, bool) {
	c, ok := v.state.cases[id]
	if !ok {
		return domain.CaseRecord{}, false
	}
	return domain.CloneCase(c), true
}

// ActiveCaseID returns the snapshot's active case pointer.
func (v view) ActiveCaseID() string { return v.state.activeID }

// UserName returns the snapshot's store-level user identity.
func (v view) UserName() string { return v.state.userName }

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy becomes visible only when fn succeeds and no registered rule
// blocks the commit, so a failed mutation never leaks partial state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, view{state: &tx.state}, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(view{state: &snapshot})
}

// Snapshot exposes the transactional state to rules and service helpers.
func (tx *Transaction) Snapshot() domain.TransactionView {
	return view{state: &tx.state}
}

// Now returns the transaction timestamp; every mutation in one transaction
// shares it.
func (tx *Transaction) Now() time.Time { return tx.now }

func (tx *Transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// CreateCase stores a new case within the transaction.
func (tx *Transaction) CreateCase(c domain.CaseRecord) (domain.CaseRecord, error) {
	if c.ID == "" {
		c.ID = tx.store.NewCaseID()
	}
	if _, exists := tx.state.cases[c.ID]; exists {
		return domain.CaseRecord{}, fmt.Errorf("case %q already exists", c.ID)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = tx.now
	}
	c.UpdatedAt = tx.now
	domain.EnsureCaseDefaults(&c)
	tx.state.cases[c.ID] = domain.CloneCase(c)
	tx.state.order = append([]string{c.ID}, tx.state.order...)
	tx.recordChange(domain.Change{Entity: domain.EntityCase, Action: domain.ActionCreate, After: domain.CloneCase(c)})
	return domain.CloneCase(c), nil
}

// UpdateCase mutates a case using the provided mutator function. The mutator
// owns history appends; the transaction stamps the update time.
func (tx *Transaction) UpdateCase(id string, mutator func(*domain.CaseRecord) error) (domain.CaseRecord, error) {
	current, ok := tx.state.cases[id]
	if !ok {
		return domain.CaseRecord{}, fmt.Errorf("case %q not found", id)
	}
	before := domain.CloneCase(current)
	working := domain.CloneCase(current)
	if err := mutator(&working); err != nil {
		return domain.CaseRecord{}, err
	}
	working.ID = id
	tx.state.cases[id] = domain.CloneCase(working)
	tx.recordChange(domain.Change{Entity: domain.EntityCase, Action: domain.ActionUpdate, Before: before, After: domain.CloneCase(working)})
	return domain.CloneCase(working), nil
}

// DeleteCase removes a case from the transaction state.
func (tx *Transaction) DeleteCase(id string) error {
	current, ok := tx.state.cases[id]
	if !ok {
		return fmt.Errorf("case %q not found", id)
	}
	delete(tx.state.cases, id)
	for i, oid := range tx.state.order {
		if oid == id {
			tx.state.order = append(tx.state.order[:i], tx.state.order[i+1:]...)
			break
		}
	}
	if tx.state.activeID == id {
		tx.state.activeID = ""
		if len(tx.state.order) > 0 {
			tx.state.activeID = tx.state.order[0]
		}
	}
	tx.recordChange(domain.Change{Entity: domain.EntityCase, Action: domain.ActionDelete, Before: domain.CloneCase(current)})
	return nil
}

// FindCase retrieves a case by ID from the transactional state.
func (tx *Transaction) FindCase(id string) (domain.CaseRecord, bool) {
	c, ok := tx.state.cases[id]
	if !ok {
		return domain.CaseRecord{}, false
	}
	return domain.CloneCase(c), true
}

// SetActiveCase repoints the active case. Unknown IDs are ignored: switching
// to a missing case is a recoverable user action, not an error.
func (tx *Transaction) SetActiveCase(id string) {
	if _, ok := tx.state.cases[id]; !ok {
		return
	}
	tx.state.activeID = id
}

// ActiveCaseID returns the transactional active case pointer.
func (tx *Transaction) ActiveCaseID() string { return tx.state.activeID }

// SetUserName records the store-level user identity.
func (tx *Transaction) SetUserName(name string) { tx.state.userName = name }

// UserName returns the transactional user identity.
func (tx *Transaction) UserName() string { return tx.state.userName }

// Read helpers ---------------------------------------------------------------

// GetCase retrieves a case by ID from committed state.
func (s *Store) GetCase(id string) (domain.CaseRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.cases[id]
	if !ok {
		return domain.CaseRecord{}, false
	}
	return domain.CloneCase(c), true
}

// ListCases returns all cases from committed state, newest first.
func (s *Store) ListCases() []domain.CaseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CaseRecord, 0, len(s.state.order))
	for _, id := range s.state.order {
		if c, ok := s.state.cases[id]; ok {
			out = append(out, domain.CloneCase(c))
		}
	}
	return out
}

// ActiveCaseID returns the committed active case pointer.
func (s *Store) ActiveCaseID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.activeID
}

// UserName returns the committed store-level user identity.
func (s *Store) UserName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.userName
}
