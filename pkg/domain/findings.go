package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// NextFindingID returns the next H-NNN sequence value for the case: max
// existing numeric suffix plus one.
func NextFindingID(c CaseRecord) string {
	max := 0
	for _, h := range c.Findings {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, h.ID)
		if digits == "" {
			continue
		}
		if n, err := strconv.Atoi(digits); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("H-%03d", max+1)
}

// FindingSignature is the composite dedup key used when reconciling findings
// from two copies of the same case. Timestamps and IDs are deliberately
// excluded: the same observation recorded twice must collapse to one.
func FindingSignature(h Finding) string {
	return strings.Join([]string{
		NormalizeText(h.Phase),
		string(h.Severity),
		NormalizeText(h.Fact),
		NormalizeText(h.Evidence),
		NormalizeText(h.Request),
	}, "|")
}
