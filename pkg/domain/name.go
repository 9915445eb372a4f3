package domain

import "strings"

// nameSeparator joins the derived display-name pieces.
const nameSeparator = " · "

// DeriveCaseName builds a display name from the reference fields, first
// non-empty of process ID, entity, contract name and infrastructure type,
// joined in that order. Falls back to the current name when nothing is set.
func DeriveCaseName(c CaseRecord) string {
	pieces := make([]string, 0, 4)
	for _, p := range []string{
		strings.TrimSpace(c.Reference.ProcessID),
		strings.TrimSpace(c.Reference.Entity),
		strings.TrimSpace(c.Reference.ContractName),
		strings.TrimSpace(c.Reference.InfraType),
	} {
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	if len(pieces) == 0 {
		return c.Name
	}
	return strings.Join(pieces, nameSeparator)
}

// NameIsDerivable reports whether the record's current name may be replaced
// by auto-derivation. A name is still derivable while it is the placeholder
// ("Caso", "Caso 3", ...) or exactly matches what derivation would produce;
// once a user sets an explicit name outside that pattern the derivation must
// not overwrite it.
func NameIsDerivable(c CaseRecord) bool {
	name := strings.TrimSpace(c.Name)
	if name == "" || name == "Caso" || strings.HasPrefix(name, "Caso ") {
		return true
	}
	return name == DeriveCaseName(c)
}
