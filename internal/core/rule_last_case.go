package core

import (
	"context"

	"veedcore/pkg/domain"
)

// NewLastCaseGuardRule returns the in-transaction rule that blocks deleting
// the only remaining case. The workspace always keeps at least one case so
// the active pointer stays valid.
func NewLastCaseGuardRule() domain.Rule {
	return lastCaseGuardRule{}
}

type lastCaseGuardRule struct{}

func (lastCaseGuardRule) Name() string { return "last_case_guard" }

func (lastCaseGuardRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	if len(view.ListCases()) > 0 {
		return res, nil
	}
	for _, change := range changes {
		if change.Entity != domain.EntityCase || change.Action != domain.ActionDelete {
			continue
		}
		id := ""
		if before, ok := change.Before.(domain.CaseRecord); ok {
			id = before.ID
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "last_case_guard",
			Severity: domain.RuleSeverityBlock,
			Message:  "cannot delete the only remaining case",
			Entity:   domain.EntityCase,
			EntityID: id,
		})
	}
	return res, nil
}
