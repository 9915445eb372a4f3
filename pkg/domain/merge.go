package domain

import (
	"fmt"
	"time"
)

// MergeChange records one field-level difference applied during a merge, in
// the shape expected by the history ledger.
type MergeChange struct {
	Action string
	Field  string
	From   string
	To     string
	Note   string
}

// MergeOutcome carries the reconciled record plus the ledger-ready change
// list and summary counters.
type MergeOutcome struct {
	Merged  CaseRecord
	Changes []MergeChange

	FindingsAdded   int
	FindingsSkipped int
	LogsAdded       int
	LogsSkipped     int
	EvidenceAdded   int
	DocFilesAdded   int
}

// MergeCases reconciles incoming into target, producing a superset-preferring
// union. Target data is never destroyed: scalar fields fill forward only,
// checklist booleans OR, document statuses take the higher rank, and list
// entries deduplicate by normalized content. The operation is idempotent
// (re-merging the same incoming record changes nothing) and deliberately not
// commutative: when both sides hold different non-empty scalar values the
// target's value wins.
//
// Only metadata is reconciled here. The caller owns making sure binaries
// referenced by surviving evidence metadata exist in the blob store under
// the target case.
func MergeCases(target, incoming CaseRecord, now time.Time) MergeOutcome {
	out := MergeOutcome{Merged: CloneCase(target)}
	m := &out.Merged
	EnsureCaseDefaults(m)

	renameable := NameIsDerivable(target)

	mergeScalars(m, incoming, &out)
	mergeEmails(m, incoming, &out)
	mergeChecks(m, incoming, &out)
	mergeDocs(m, incoming, &out)
	mergeLogs(m, incoming, &out)
	mergeFindings(m, incoming, &out)
	mergeEvidence(m, incoming, &out)
	mergeDocFiles(m, incoming, &out)

	// Incoming history rides behind the target's, then the cap reapplies.
	m.History = append(m.History, incoming.History...)
	CapHistory(m)

	if renameable {
		if derived := DeriveCaseName(*m); derived != m.Name {
			out.Changes = append(out.Changes, MergeChange{
				Action: "ACTUALIZAR_CASO", Field: "case.nombre",
				From: m.Name, To: derived, Note: "Nombre derivado tras fusión",
			})
			m.Name = derived
		}
	}

	if len(out.Changes) > 0 || out.FindingsAdded > 0 || out.LogsAdded > 0 ||
		out.EvidenceAdded > 0 || out.DocFilesAdded > 0 {
		m.UpdatedAt = now
	}
	return out
}

type scalarField struct {
	name string
	get  func(*CaseReference) *string
}

var scalarFields = []scalarField{
	{"caso.secopUrl", func(r *CaseReference) *string { return &r.SecopURL }},
	{"caso.entidad", func(r *CaseReference) *string { return &r.Entity }},
	{"caso.procesoId", func(r *CaseReference) *string { return &r.ProcessID }},
	{"caso.ubicacion", func(r *CaseReference) *string { return &r.Location }},
	{"caso.tipoInfra", func(r *CaseReference) *string { return &r.InfraType }},
	{"caso.contratoNombre", func(r *CaseReference) *string { return &r.ContractName }},
}

func mergeScalars(m *CaseRecord, inc CaseRecord, out *MergeOutcome) {
	for _, f := range scalarFields {
		dst := f.get(&m.Reference)
		src := *f.get(&inc.Reference)
		if *dst == "" && src != "" {
			out.Changes = append(out.Changes, MergeChange{
				Action: "ACTUALIZAR_CASO", Field: f.name, From: "", To: src, Note: "Fusión",
			})
			*dst = src
		}
	}
}

func mergeEmails(m *CaseRecord, inc CaseRecord, out *MergeOutcome) {
	pairs := []struct {
		name string
		dst  *[]string
		src  []string
	}{
		{"caso.emails.entidad", &m.Reference.Emails.Entidad, inc.Reference.Emails.Entidad},
		{"caso.emails.personeria", &m.Reference.Emails.Personeria, inc.Reference.Emails.Personeria},
		{"caso.emails.contraloria", &m.Reference.Emails.Contraloria, inc.Reference.Emails.Contraloria},
		{"caso.emails.procuraduria", &m.Reference.Emails.Procuraduria, inc.Reference.Emails.Procuraduria},
	}
	for _, p := range pairs {
		before := joinEmails(*p.dst)
		merged := NormalizeEmails(append(append([]string{}, *p.dst...), p.src...))
		after := joinEmails(merged)
		if before != after {
			out.Changes = append(out.Changes, MergeChange{
				Action: "ACTUALIZAR_CASO", Field: p.name, From: before, To: after, Note: "Fusión",
			})
			*p.dst = merged
		}
	}
}

func joinEmails(list []string) string {
	s := ""
	for i, e := range list {
		if i > 0 {
			s += ", "
		}
		s += e
	}
	return s
}

func mergeChecks(m *CaseRecord, inc CaseRecord, out *MergeOutcome) {
	for key, done := range inc.Checks {
		if !done || m.Checks[key] {
			continue
		}
		m.Checks[key] = true
		out.Changes = append(out.Changes, MergeChange{
			Action: "CHECKLIST", Field: "checks." + key, From: "false", To: "true", Note: "Fusión",
		})
	}
}

func mergeDocs(m *CaseRecord, inc CaseRecord, out *MergeOutcome) {
	for docID, incStatus := range inc.Docs {
		cur, ok := m.Docs[docID]
		next := cur
		if !ok {
			next = DocumentStatus{State: DocStatePending}
		}
		if DocumentStateRank(incStatus.State) > DocumentStateRank(next.State) {
			out.Changes = append(out.Changes, MergeChange{
				Action: "ACTUALIZAR_DOCUMENTO",
				Field:  fmt.Sprintf("docs.%s.estado", docID),
				From:   string(next.State), To: string(incStatus.State), Note: "Fusión",
			})
			next.State = incStatus.State
		}
		if next.Evidence == "" && incStatus.Evidence != "" {
			out.Changes = append(out.Changes, MergeChange{
				Action: "ACTUALIZAR_DOCUMENTO",
				Field:  fmt.Sprintf("docs.%s.evidencia", docID),
				From:   "", To: incStatus.Evidence, Note: "Fusión",
			})
			next.Evidence = incStatus.Evidence
		}
		if !ok && next == (DocumentStatus{State: DocStatePending}) {
			// Incoming carried nothing beyond the default; skip the insert.
			continue
		}
		m.Docs[docID] = next
	}
}

func mergeLogs(m *CaseRecord, inc CaseRecord, out *MergeOutcome) {
	seen := make(map[string]struct{}, len(m.Logs))
	for _, l := range m.Logs {
		seen[NormalizeText(l.Text)] = struct{}{}
	}
	for _, l := range inc.Logs {
		key := NormalizeText(l.Text)
		if _, dup := seen[key]; dup {
			out.LogsSkipped++
			continue
		}
		seen[key] = struct{}{}
		m.Logs = append([]LogEntry{l}, m.Logs...)
		out.LogsAdded++
	}
}

func mergeFindings(m *CaseRecord, inc CaseRecord, out *MergeOutcome) {
	signatures := make(map[string]struct{}, len(m.Findings))
	ids := make(map[string]struct{}, len(m.Findings))
	for _, h := range m.Findings {
		signatures[FindingSignature(h)] = struct{}{}
		ids[h.ID] = struct{}{}
	}
	for _, h := range inc.Findings {
		sig := FindingSignature(h)
		if _, dup := signatures[sig]; dup {
			out.FindingsSkipped++
			continue
		}
		if _, clash := ids[h.ID]; clash {
			h.ID = NextFindingID(*m)
		}
		signatures[sig] = struct{}{}
		ids[h.ID] = struct{}{}
		m.Findings = append([]Finding{h}, m.Findings...)
		out.FindingsAdded++
		out.Changes = append(out.Changes, MergeChange{
			Action: "AGREGAR_HALLAZGO", Field: "hallazgos",
			From: "", To: fmt.Sprintf("%s (%s)", h.ID, h.Severity),
			Note: "Fusión · Fase: " + h.Phase,
		})
	}
}

func mergeEvidence(m *CaseRecord, inc CaseRecord, out *MergeOutcome) {
	seen := make(map[string]struct{}, len(m.Evidences))
	for _, ev := range m.Evidences {
		seen[evidenceKey(ev.Name, ev.Size, ev.At)] = struct{}{}
	}
	for _, ev := range inc.Evidences {
		key := evidenceKey(ev.Name, ev.Size, ev.At)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		ev.CaseID = m.ID
		ev.Links = append([]EvidenceLink(nil), ev.Links...)
		m.Evidences = append([]EvidenceMeta{ev}, m.Evidences...)
		out.EvidenceAdded++
	}
}

func mergeDocFiles(m *CaseRecord, inc CaseRecord, out *MergeOutcome) {
	seen := make(map[string]struct{}, len(m.DocFiles))
	for _, df := range m.DocFiles {
		seen[evidenceKey(df.Name, df.Size, df.At)] = struct{}{}
	}
	for _, df := range inc.DocFiles {
		key := evidenceKey(df.Name, df.Size, df.At)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		df.CaseID = m.ID
		m.DocFiles = append([]DocumentFileMeta{df}, m.DocFiles...)
		out.DocFilesAdded++
	}
}

func evidenceKey(name string, size int64, at time.Time) string {
	return fmt.Sprintf("%s|%d|%d", NormalizeText(name), size, at.UnixMilli())
}
