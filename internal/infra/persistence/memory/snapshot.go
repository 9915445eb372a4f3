package memory

import "veedcore/pkg/domain"

// Snapshot captures the whole store state as one serializable document.
// Durable backends persist it in full after every successful transaction.
type Snapshot struct {
	Cases        []domain.CaseRecord `json:"cases"`
	ActiveCaseID string              `json:"activeCaseId"`
	UserName     string              `json:"userName"`
}

// ExportState returns a deep copy of the committed state, newest case first.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		ActiveCaseID: s.state.activeID,
		UserName:     s.state.userName,
	}
	for _, id := range s.state.order {
		if c, ok := s.state.cases[id]; ok {
			snap.Cases = append(snap.Cases, domain.CloneCase(c))
		}
	}
	return snap
}

// ImportState replaces the committed state with the snapshot contents.
// Structurally-missing collections are filled with safe defaults so older
// snapshots hydrate cleanly.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := newState()
	for _, c := range snap.Cases {
		cc := domain.CloneCase(c)
		domain.EnsureCaseDefaults(&cc)
		if cc.ID == "" {
			continue
		}
		if _, dup := next.cases[cc.ID]; dup {
			continue
		}
		next.cases[cc.ID] = cc
		next.order = append(next.order, cc.ID)
	}
	next.userName = snap.UserName
	if _, ok := next.cases[snap.ActiveCaseID]; ok {
		next.activeID = snap.ActiveCaseID
	} else if len(next.order) > 0 {
		next.activeID = next.order[0]
	}
	s.state = next
}
