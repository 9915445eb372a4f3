package core

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"veedcore/pkg/domain"
)

// minFactLength is the minimum length of a finding's fact text, in runes.
const minFactLength = 15

// NewFindingContentRule returns the in-transaction rule validating finding
// content: phase, fact, evidence and request are required and the fact must
// carry enough substance to be actionable.
func NewFindingContentRule() domain.Rule {
	return findingContentRule{}
}

type findingContentRule struct{}

func (findingContentRule) Name() string { return "finding_content" }

func (findingContentRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityCase {
			continue
		}
		after, ok := change.After.(domain.CaseRecord)
		if !ok {
			continue
		}
		existing := make(map[string]struct{})
		if before, ok := change.Before.(domain.CaseRecord); ok {
			for _, h := range before.Findings {
				existing[h.ID] = struct{}{}
			}
		}
		for _, h := range after.Findings {
			if _, seen := existing[h.ID]; seen {
				continue
			}
			for _, v := range validateFinding(h) {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "finding_content",
					Severity: domain.RuleSeverityBlock,
					Message:  fmt.Sprintf("finding %s: %s", h.ID, v),
					Entity:   domain.EntityCase,
					EntityID: after.ID,
				})
			}
		}
	}
	return res, nil
}

func validateFinding(h domain.Finding) []string {
	var problems []string
	if strings.TrimSpace(h.Phase) == "" {
		problems = append(problems, "fase requerida")
	}
	fact := strings.TrimSpace(h.Fact)
	if fact == "" {
		problems = append(problems, "hecho requerido")
	} else if utf8.RuneCountInString(fact) < minFactLength {
		problems = append(problems, fmt.Sprintf("hecho demasiado corto (mínimo %d caracteres)", minFactLength))
	}
	if strings.TrimSpace(h.Evidence) == "" {
		problems = append(problems, "evidencia requerida")
	}
	if strings.TrimSpace(h.Request) == "" {
		problems = append(problems, "solicitud requerida")
	}
	return problems
}
