package domain

import "strings"

// NormalizeText lowers, trims and collapses internal whitespace. It is the
// canonical form used for log dedup and finding signatures during merges.
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NormalizeProcessID produces the reconciliation key for a case. Two records
// whose normalized process IDs are equal and non-empty describe the same
// real-world case.
func NormalizeProcessID(s string) string {
	return NormalizeText(s)
}

// SameCase reports whether two records share a non-empty normalized process ID.
func SameCase(a, b CaseRecord) bool {
	ka := NormalizeProcessID(a.Reference.ProcessID)
	kb := NormalizeProcessID(b.Reference.ProcessID)
	return ka != "" && ka == kb
}

// Shorten truncates s for display inside history entries. Stored raw values
// are never truncated; only the ledger's from/to columns are.
func Shorten(s string, max int) string {
	if max <= 0 || len([]rune(s)) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}

// NormalizeEmails trims entries, drops empties and deduplicates while
// preserving first-seen order.
func NormalizeEmails(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		key := strings.ToLower(e)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}
