package domain

import (
	"strings"
	"testing"
	"time"
)

func TestAppendHistoryPrependsNewestFirst(t *testing.T) {
	c := CaseRecord{ID: "C-1"}
	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	AppendHistory(&c, at, "Ana", "CREAR_CASO", "", "", "", "Caso creado")
	AppendHistory(&c, at.Add(time.Minute), "Ana", "CHECKLIST", "checks.acta_inicio", "false", "true", "")

	if len(c.History) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(c.History))
	}
	if c.History[0].Action != "CHECKLIST" || c.History[1].Action != "CREAR_CASO" {
		t.Fatalf("entries must be newest first: %+v", c.History)
	}
	if c.History[0].Actor != "Ana" || !c.History[0].At.Equal(at.Add(time.Minute)) {
		t.Fatalf("entry metadata lost: %+v", c.History[0])
	}
}

func TestAppendHistoryEnforcesCap(t *testing.T) {
	c := CaseRecord{ID: "C-1"}
	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < HistoryCap+25; i++ {
		AppendHistory(&c, at.Add(time.Duration(i)*time.Second), SystemActor, "CHECKLIST", "", "", "", "")
	}
	if len(c.History) != HistoryCap {
		t.Fatalf("ledger must stay at %d entries, got %d", HistoryCap, len(c.History))
	}
	// The newest entry must always survive the cap.
	want := at.Add(time.Duration(HistoryCap+24) * time.Second)
	if !c.History[0].At.Equal(want) {
		t.Fatalf("newest entry dropped: got %v want %v", c.History[0].At, want)
	}
}

func TestAppendHistoryShortensDisplayColumnsOnly(t *testing.T) {
	long := strings.Repeat("x", HistoryDisplayLimit+40)
	c := CaseRecord{ID: "C-1"}
	AppendHistory(&c, time.Now(), "Ana", "ACTUALIZAR_CASO", "caso.entidad", long, long, "")

	got := c.History[0]
	if len([]rune(got.From)) != HistoryDisplayLimit || len([]rune(got.To)) != HistoryDisplayLimit {
		t.Fatalf("from/to must be shortened to %d runes, got %d/%d",
			HistoryDisplayLimit, len([]rune(got.From)), len([]rune(got.To)))
	}
	if !strings.HasSuffix(got.From, "…") {
		t.Fatalf("shortened value must end with ellipsis: %q", got.From)
	}
}

func TestCapHistoryTrimsTail(t *testing.T) {
	c := CaseRecord{ID: "C-1"}
	for i := 0; i < HistoryCap+10; i++ {
		c.History = append(c.History, HistoryEntry{Note: "n"})
	}
	CapHistory(&c)
	if len(c.History) != HistoryCap {
		t.Fatalf("expected %d entries, got %d", HistoryCap, len(c.History))
	}
}
