package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"veedcore/internal/blob"
	"veedcore/pkg/domain"
)

// ErrUnknownFormat rejects documents whose discriminator is not a supported
// export format. Nothing is written to the store when it is returned.
var ErrUnknownFormat = errors.New("unknown export document format")

// ImportSummary reports the outcome of an import sweep.
type ImportSummary struct {
	CasesCreated int
	CasesMerged  int
	BlobsWritten int
	BlobsSkipped int
}

// ImportDocument parses an export document and folds its cases into the
// store. Identities are regenerated: an imported case that matches an
// existing record by normalized process ID is merged into it, anything else
// becomes a new case under a fresh ID. Embedded blobs land under the
// reconciled identity; individual blob failures are logged and skipped.
func (s *Service) ImportDocument(ctx context.Context, data []byte) (ImportSummary, error) {
	ctx, finish := s.begin(ctx, "import_document")
	summary, err := s.importDocument(ctx, data)
	finish("", err)
	return summary, err
}

func (s *Service) importDocument(ctx context.Context, data []byte) (ImportSummary, error) {
	var probe struct {
		Format string `json:"formato"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ImportSummary{}, fmt.Errorf("parse export document: %w", err)
	}

	var (
		cases    []CaseDocument
		userName string
	)
	switch probe.Format {
	case FormatCaseV4, FormatCaseV3:
		var doc CaseDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return ImportSummary{}, fmt.Errorf("parse case document: %w", err)
		}
		cases = []CaseDocument{doc}
	case FormatMultiV4, FormatMultiV3:
		var doc MultiDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return ImportSummary{}, fmt.Errorf("parse multi-case document: %w", err)
		}
		cases = doc.Cases
		userName = strings.TrimSpace(doc.UserName)
	default:
		return ImportSummary{}, fmt.Errorf("%w: %q", ErrUnknownFormat, probe.Format)
	}

	var summary ImportSummary
	for _, doc := range cases {
		if err := s.importCase(ctx, doc, &summary); err != nil {
			return summary, err
		}
	}

	if userName != "" {
		if _, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			tx.SetUserName(userName)
			return nil
		}); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (s *Service) importCase(ctx context.Context, doc CaseDocument, summary *ImportSummary) error {
	rec := recordFromDocument(doc)

	existing, merge := s.FindByProcessID(ctx, rec.Reference.ProcessID)
	targetID := existing.ID
	if !merge {
		targetID = newCaseID(s.clock.Now())
	}
	rec.ID = targetID

	// Regenerate attachment identities and land the embedded binaries under
	// the reconciled case before the metadata becomes visible.
	evidenceByOld := indexPayloads(doc.EvidenceData)
	for i := range rec.Evidences {
		old := rec.Evidences[i].ID
		rec.Evidences[i].ID = newAttachmentID("EV", s.clock.Now())
		rec.Evidences[i].CaseID = targetID
		payload, ok := evidenceByOld[old]
		if !ok {
			continue
		}
		if s.writeImportedBlob(ctx, func(data []byte) error {
			_, err := s.files.PutEvidence(ctx, targetID, rec.Evidences[i].ID, bytes.NewReader(data), blob.PutOptions{ContentType: payload.MIME})
			return err
		}, payload, targetID) {
			summary.BlobsWritten++
		} else {
			summary.BlobsSkipped++
		}
	}
	docFileByOld := indexPayloads(doc.DocFileData)
	for i := range rec.DocFiles {
		old := rec.DocFiles[i].ID
		rec.DocFiles[i].ID = newAttachmentID("DF", s.clock.Now())
		rec.DocFiles[i].CaseID = targetID
		payload, ok := docFileByOld[old]
		if !ok {
			continue
		}
		docID := rec.DocFiles[i].DocID
		fileID := rec.DocFiles[i].ID
		if s.writeImportedBlob(ctx, func(data []byte) error {
			_, err := s.files.PutDocumentFile(ctx, targetID, docID, fileID, bytes.NewReader(data), blob.PutOptions{ContentType: payload.MIME})
			return err
		}, payload, targetID) {
			summary.BlobsWritten++
		} else {
			summary.BlobsSkipped++
		}
	}

	if merge {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			_, err := mergeIntoCase(tx, targetID, rec)
			return err
		})
		if err != nil {
			return err
		}
		summary.CasesMerged++
		s.logger.Info("imported case merged", "case_id", targetID, "process_id", rec.Reference.ProcessID)
		return nil
	}

	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateCase(rec)
		return err
	})
	if err != nil {
		return err
	}
	summary.CasesCreated++
	s.logger.Info("imported case created", "case_id", targetID)
	return nil
}

// recordFromDocument rebuilds a CaseRecord from a document payload, filling
// structurally-missing fields with safe defaults so older schema versions
// import cleanly.
func recordFromDocument(doc CaseDocument) CaseRecord {
	rec := CaseRecord{
		Name:      doc.CaseMeta.Name,
		CreatedAt: doc.CaseMeta.CreatedAt,
		UpdatedAt: doc.CaseMeta.UpdatedAt,
		Reference: doc.Reference,
		Checks:    doc.Checks,
		Docs:      doc.Docs,
		Logs:      doc.Logs,
		Findings:  doc.Findings,
		Evidences: doc.EvidencesMeta,
		DocFiles:  doc.DocFilesMeta,
		History:   doc.History,
	}
	domain.EnsureCaseDefaults(&rec)
	return rec
}

func indexPayloads(payloads []BlobPayload) map[string]BlobPayload {
	out := make(map[string]BlobPayload, len(payloads))
	for _, p := range payloads {
		out[p.ID] = p
	}
	return out
}

// writeImportedBlob decodes and stores one embedded payload. Failures are
// logged and skipped so one bad payload never aborts the import sweep.
func (s *Service) writeImportedBlob(_ context.Context, put func([]byte) error, payload BlobPayload, caseID string) bool {
	data, err := base64.StdEncoding.DecodeString(payload.Base64)
	if err != nil {
		s.logger.Warn("imported blob payload invalid, skipping", "case_id", caseID, "blob_id", payload.ID, "error", err)
		return false
	}
	if err := put(data); err != nil {
		s.logger.Warn("imported blob write failed, skipping", "case_id", caseID, "blob_id", payload.ID, "error", err)
		return false
	}
	return true
}

func newCaseID(now time.Time) string {
	return newAttachmentID("C", now)
}
