package core

import "veedcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	FindingSeverity    = domain.FindingSeverity
	DocumentState      = domain.DocumentState
	CaseRecord         = domain.CaseRecord
	CaseReference      = domain.CaseReference
	DocumentStatus     = domain.DocumentStatus
	Finding            = domain.Finding
	LogEntry           = domain.LogEntry
	EvidenceMeta       = domain.EvidenceMeta
	DocumentFileMeta   = domain.DocumentFileMeta
	HistoryEntry       = domain.HistoryEntry
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	RulesEngine        = domain.RulesEngine
	Rule               = domain.Rule
)

const (
	EntityCase         = domain.EntityCase
	EntityEvidence     = domain.EntityEvidence
	EntityDocumentFile = domain.EntityDocumentFile
)

const (
	SeverityObservation   = domain.SeverityObservation
	SeverityAlert         = domain.SeverityAlert
	SeverityCriticalAlert = domain.SeverityCriticalAlert
)

const (
	DocStateNotApplicable = domain.DocStateNotApplicable
	DocStateUnavailable   = domain.DocStateUnavailable
	DocStatePending       = domain.DocStatePending
	DocStateRequested     = domain.DocStateRequested
	DocStateAvailable     = domain.DocStateAvailable
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

const (
	SeverityBlock = domain.RuleSeverityBlock
	SeverityWarn  = domain.RuleSeverityWarn
	SeverityLog   = domain.RuleSeverityLog
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewLastCaseGuardRule())
	engine.Register(NewFindingContentRule())
	return engine
}
