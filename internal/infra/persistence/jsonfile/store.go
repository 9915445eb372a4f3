// Package jsonfile persists the case store as a single JSON document,
// rewritten in full after every successful transaction. This is the default
// backend and mirrors the original tool's whole-document persistence model:
// no partial-write path exists, and a failure mid-write leaves in-memory
// state ahead of the persisted document (best effort, caller may retry).
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"veedcore/internal/infra/persistence/memory"
	"veedcore/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// Store snapshots the in-memory state to one JSON file.
type Store struct {
	*memory.Store
	mu   sync.Mutex
	path string
}

// NewStore constructs a JSON-document-backed store at the provided path
// (default veedcore.json) and hydrates it from an existing document.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "veedcore.json"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	ms := memory.NewStore(engine)
	s := &Store{Store: ms, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read state document: %w", err)
	}
	var snap memory.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("decode state document: %w", err)
	}
	s.ImportState(snap)
	return nil
}

func (s *Store) persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(s.ExportState(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode state document: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".veedcore-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// RunInTransaction applies fn in memory, then rewrites the JSON document if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// Path returns the configured document path.
func (s *Store) Path() string { return s.path }
