package domain

// CloneCase deep-copies a case record so callers can never mutate committed
// state through a returned value.
func CloneCase(c CaseRecord) CaseRecord {
	cp := c
	cp.Reference.Emails = cloneEmails(c.Reference.Emails)
	if c.Checks != nil {
		cp.Checks = make(map[string]bool, len(c.Checks))
		for k, v := range c.Checks {
			cp.Checks[k] = v
		}
	}
	if c.Docs != nil {
		cp.Docs = make(map[string]DocumentStatus, len(c.Docs))
		for k, v := range c.Docs {
			cp.Docs[k] = v
		}
	}
	cp.Logs = append([]LogEntry(nil), c.Logs...)
	cp.Findings = append([]Finding(nil), c.Findings...)
	cp.DocFiles = append([]DocumentFileMeta(nil), c.DocFiles...)
	cp.History = append([]HistoryEntry(nil), c.History...)
	cp.Evidences = make([]EvidenceMeta, len(c.Evidences))
	for i, ev := range c.Evidences {
		cp.Evidences[i] = ev
		cp.Evidences[i].Links = append([]EvidenceLink(nil), ev.Links...)
	}
	return cp
}

func cloneEmails(e EmailDirectory) EmailDirectory {
	return EmailDirectory{
		Entidad:      append([]string(nil), e.Entidad...),
		Personeria:   append([]string(nil), e.Personeria...),
		Contraloria:  append([]string(nil), e.Contraloria...),
		Procuraduria: append([]string(nil), e.Procuraduria...),
	}
}

// EnsureCaseDefaults fills structurally-missing collections with safe empty
// values. Used when hydrating records from older export documents or partial
// snapshots.
func EnsureCaseDefaults(c *CaseRecord) {
	if c.Checks == nil {
		c.Checks = map[string]bool{}
	}
	if c.Docs == nil {
		c.Docs = map[string]DocumentStatus{}
	}
	if c.Logs == nil {
		c.Logs = []LogEntry{}
	}
	if c.Findings == nil {
		c.Findings = []Finding{}
	}
	if c.Evidences == nil {
		c.Evidences = []EvidenceMeta{}
	}
	if c.DocFiles == nil {
		c.DocFiles = []DocumentFileMeta{}
	}
	if c.History == nil {
		c.History = []HistoryEntry{}
	}
	if c.Reference.Emails.Entidad == nil {
		c.Reference.Emails.Entidad = []string{}
	}
	if c.Reference.Emails.Personeria == nil {
		c.Reference.Emails.Personeria = []string{}
	}
	if c.Reference.Emails.Contraloria == nil {
		c.Reference.Emails.Contraloria = []string{}
	}
	if c.Reference.Emails.Procuraduria == nil {
		c.Reference.Emails.Procuraduria = []string{}
	}
}
