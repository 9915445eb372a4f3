package domain

import "time"

// HistoryCap bounds the per-case audit ledger. Oldest entries are silently
// dropped on overflow; entries are never mutated or reordered once written.
const HistoryCap = 800

// HistoryDisplayLimit bounds the from/to columns of a ledger entry.
const HistoryDisplayLimit = 120

// SystemActor is the synthetic actor used for entries not triggered by a user.
const SystemActor = "Sistema"

// AppendHistory pushes an entry to the front of the record's ledger (newest
// first) and reapplies the cap. From/to values are shortened for display.
func AppendHistory(c *CaseRecord, at time.Time, actor, action, field, from, to, note string) {
	entry := HistoryEntry{
		At:     at,
		Actor:  actor,
		Action: action,
		Field:  field,
		From:   Shorten(from, HistoryDisplayLimit),
		To:     Shorten(to, HistoryDisplayLimit),
		Note:   note,
	}
	c.History = append([]HistoryEntry{entry}, c.History...)
	if len(c.History) > HistoryCap {
		c.History = c.History[:HistoryCap]
	}
}

// CapHistory reapplies the ledger cap after bulk operations such as merges.
func CapHistory(c *CaseRecord) {
	if len(c.History) > HistoryCap {
		c.History = c.History[:HistoryCap]
	}
}
