// Package domain defines the persistent case-record entities, value types,
// merge semantics and rule evaluation primitives used by veedcore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityCase identifies a case record.
	EntityCase EntityType = "case"
	// EntityEvidence identifies a photographic evidence blob record.
	EntityEvidence EntityType = "evidence"
	// EntityDocumentFile identifies a document attachment blob record.
	EntityDocumentFile EntityType = "document_file"
)

// FindingSeverity grades a finding from plain observation to critical alert.
type FindingSeverity string

// Canonical finding severities, ordered by rank (see SeverityRank).
const (
	SeverityObservation   FindingSeverity = "Observación"
	SeverityAlert         FindingSeverity = "Alerta"
	SeverityCriticalAlert FindingSeverity = "Alerta crítica"
)

// SeverityRank orders severities for reporting. Unknown severities rank lowest.
func SeverityRank(s FindingSeverity) int {
	switch s {
	case SeverityCriticalAlert:
		return 3
	case SeverityAlert:
		return 2
	case SeverityObservation:
		return 1
	default:
		return 0
	}
}

// DocumentState enumerates the completeness states of a required document.
type DocumentState string

// Canonical document states. The rank table intentionally places no_aplica
// below no_disponible; observed source behavior, flagged in DESIGN.md.
const (
	DocStateNotApplicable DocumentState = "no_aplica"
	DocStateUnavailable   DocumentState = "no_disponible"
	DocStatePending       DocumentState = "pendiente"
	DocStateRequested     DocumentState = "solicitado"
	DocStateAvailable     DocumentState = "disponible"
)

// DocumentStateRank returns the completeness rank of a state. Unknown states
// rank below every canonical state so a merge never downgrades known data.
func DocumentStateRank(s DocumentState) int {
	switch s {
	case DocStateAvailable:
		return 5
	case DocStateRequested:
		return 4
	case DocStatePending:
		return 3
	case DocStateUnavailable:
		return 2
	case DocStateNotApplicable:
		return 1
	default:
		return 0
	}
}

// LinkKind identifies what an evidence entry is evidence for.
type LinkKind string

// Evidence link kinds.
const (
	LinkFinding  LinkKind = "hallazgo"
	LinkDocument LinkKind = "doc"
	LinkLogNote  LinkKind = "log"
	LinkGeneral  LinkKind = "general"
)

// EvidenceLink ties an evidence entry to the record it supports.
type EvidenceLink struct {
	Kind     LinkKind `json:"type"`
	TargetID string   `json:"id,omitempty"`
}

// EmailDirectory holds the per-destination notification lists of a case.
type EmailDirectory struct {
	Entidad      []string `json:"entidad"`
	Personeria   []string `json:"personeria"`
	Contraloria  []string `json:"contraloria"`
	Procuraduria []string `json:"procuraduria"`
}

// CaseReference groups the free-text reference fields of a case. Empty string
// means absent.
type CaseReference struct {
	SecopURL     string         `json:"secopUrl"`
	Entity       string         `json:"entidad"`
	ProcessID    string         `json:"procesoId"`
	Location     string         `json:"ubicacion"`
	InfraType    string         `json:"tipoInfra"`
	ContractName string         `json:"contratoNombre"`
	Emails       EmailDirectory `json:"emails"`
}

// DocumentStatus tracks the state of one required document plus a free-text
// evidence note.
type DocumentStatus struct {
	State    DocumentState `json:"estado"`
	Evidence string        `json:"evidencia"`
}

// Finding is a discrete observed fact (hallazgo) with severity and requested
// remediation. IDs follow the human-readable H-NNN sequence, unique within a
// case.
type Finding struct {
	ID       string          `json:"id"`
	At       time.Time       `json:"ts"`
	Phase    string          `json:"fase"`
	Severity FindingSeverity `json:"severidad"`
	Fact     string          `json:"hecho"`
	Evidence string          `json:"evidencia"`
	Impact   string          `json:"impacto"`
	Request  string          `json:"solicitud"`
}

// LogEntry is a timestamped free-text note (bitácora), newest first.
type LogEntry struct {
	At   time.Time `json:"ts"`
	Text string    `json:"text"`
}

// EvidenceMeta describes a photographic evidence attachment. The binary
// payload lives in the blob store under the same ID.
type EvidenceMeta struct {
	ID     string         `json:"id"`
	CaseID string         `json:"caseId"`
	At     time.Time      `json:"ts"`
	Name   string         `json:"name"`
	MIME   string         `json:"mime"`
	Size   int64          `json:"size"`
	Note   string         `json:"note,omitempty"`
	Links  []EvidenceLink `json:"links"`
}

// DocumentFileMeta describes a non-photo attachment (PDF/Word/Excel) linked
// to a required-document entry. The binary lives in the blob store.
type DocumentFileMeta struct {
	ID     string    `json:"id"`
	CaseID string    `json:"caseId"`
	DocID  string    `json:"docId"`
	At     time.Time `json:"ts"`
	Name   string    `json:"name"`
	MIME   string    `json:"mime"`
	Size   int64     `json:"size"`
}

// HistoryEntry is one immutable line of the per-case audit ledger.
type HistoryEntry struct {
	At     time.Time `json:"ts"`
	Actor  string    `json:"user"`
	Action string    `json:"action"`
	Field  string    `json:"field"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Note   string    `json:"note"`
}

// CaseRecord is the unit of work for one investigated public contract.
type CaseRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"nombre"`
	CreatedAt time.Time `json:"creado_en"`
	UpdatedAt time.Time `json:"actualizado_en"`

	Reference CaseReference             `json:"caso"`
	Checks    map[string]bool           `json:"checks"`
	Docs      map[string]DocumentStatus `json:"docs"`
	Logs      []LogEntry                `json:"logs"`
	Findings  []Finding                 `json:"hallazgos"`
	Evidences []EvidenceMeta            `json:"evidences"`
	DocFiles  []DocumentFileMeta        `json:"doc_files"`
	History   []HistoryEntry            `json:"history"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured for rule evaluation.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity RuleSeverity
	Message  string
	Entity   EntityType
	EntityID string
}

// RuleSeverity captures rule outcomes.
type RuleSeverity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// RuleSeverityBlock blocks transaction commit.
	RuleSeverityBlock RuleSeverity = "block"
	// RuleSeverityWarn logs a warning but allows commit.
	RuleSeverityWarn RuleSeverity = "warn"
	RuleSeverityLog  RuleSeverity = "log"
)

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == RuleSeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
