package core

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"veedcore/internal/blob"
	"veedcore/pkg/domain"
)

// Export document format discriminators. v3 documents predate document
// attachments and are accepted on import with those collections absent.
const (
	FormatCaseV4  = "case-v4"
	FormatMultiV4 = "multi-v4"
	FormatCaseV3  = "case-v3"
	FormatMultiV3 = "multi-v3"
)

// CaseMeta carries the identity block of an exported case.
type CaseMeta struct {
	ID        string    `json:"id"`
	Name      string    `json:"nombre"`
	CreatedAt time.Time `json:"creado_en"`
	UpdatedAt time.Time `json:"actualizado_en"`
}

// BlobPayload embeds one binary as a self-describing base64 envelope.
type BlobPayload struct {
	ID     string    `json:"id"`
	CaseID string    `json:"caseId"`
	DocID  string    `json:"docId,omitempty"`
	Name   string    `json:"name"`
	MIME   string    `json:"mime"`
	Size   int64     `json:"size"`
	At     time.Time `json:"ts"`
	Base64 string    `json:"base64"`
}

// CaseDocument is the portable single-case export schema.
type CaseDocument struct {
	Format     string    `json:"formato"`
	ExportedAt time.Time `json:"exportado_en"`
	DocID      string    `json:"doc_id,omitempty"`

	CaseMeta  CaseMeta                  `json:"case_meta"`
	Reference CaseReference             `json:"caso"`
	Checks    map[string]bool           `json:"checks"`
	Logs      []LogEntry                `json:"logs"`
	Docs      map[string]DocumentStatus `json:"docs"`
	Findings  []Finding                 `json:"hallazgos"`
	History   []HistoryEntry            `json:"history"`

	EvidencesMeta []EvidenceMeta     `json:"evidences_meta"`
	EvidenceData  []BlobPayload      `json:"evidence_data"`
	DocFilesMeta  []DocumentFileMeta `json:"doc_files_meta,omitempty"`
	DocFileData   []BlobPayload      `json:"doc_file_data,omitempty"`
}

// MultiDocument wraps every case in the store plus the workspace identity.
type MultiDocument struct {
	Format     string         `json:"formato"`
	ExportedAt time.Time      `json:"exportado_en"`
	DocID      string         `json:"doc_id,omitempty"`
	UserName   string         `json:"userName"`
	Cases      []CaseDocument `json:"cases"`
}

// ExportCase snapshots one case with its binaries embedded. Missing blobs are
// skipped: metadata can legitimately reference binaries captured on another
// device.
func (s *Service) ExportCase(ctx context.Context, id string) (CaseDocument, error) {
	c, ok := s.store.GetCase(id)
	if !ok {
		return CaseDocument{}, fmt.Errorf("case %q not found", id)
	}
	doc := s.caseToDocument(ctx, c)
	doc.Format = FormatCaseV4
	doc.ExportedAt = s.clock.Now()
	doc.DocID = uuid.New().String()
	return doc, nil
}

// ExportAll snapshots every case plus the workspace identity.
func (s *Service) ExportAll(ctx context.Context) (MultiDocument, error) {
	out := MultiDocument{
		Format:     FormatMultiV4,
		ExportedAt: s.clock.Now(),
		DocID:      uuid.New().String(),
		UserName:   s.store.UserName(),
	}
	for _, c := range s.store.ListCases() {
		out.Cases = append(out.Cases, s.caseToDocument(ctx, c))
	}
	return out, nil
}

// WriteExportCase streams a single-case document as indented JSON.
func (s *Service) WriteExportCase(ctx context.Context, id string, w io.Writer) error {
	doc, err := s.ExportCase(ctx, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteExportAll streams the multi-case document as indented JSON.
func (s *Service) WriteExportAll(ctx context.Context, w io.Writer) error {
	doc, err := s.ExportAll(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func (s *Service) caseToDocument(ctx context.Context, c CaseRecord) CaseDocument {
	c = domain.CloneCase(c)
	doc := CaseDocument{
		CaseMeta:      CaseMeta{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt},
		Reference:     c.Reference,
		Checks:        c.Checks,
		Logs:          c.Logs,
		Docs:          c.Docs,
		Findings:      c.Findings,
		History:       c.History,
		EvidencesMeta: c.Evidences,
		DocFilesMeta:  c.DocFiles,
	}
	for _, ev := range c.Evidences {
		payload, ok := s.fetchBlob(ctx, func() (blob.Info, io.ReadCloser, error) {
			return s.files.GetEvidence(ctx, c.ID, ev.ID)
		}, c.ID, ev.ID)
		if !ok {
			continue
		}
		doc.EvidenceData = append(doc.EvidenceData, BlobPayload{
			ID: ev.ID, CaseID: c.ID, Name: ev.Name, MIME: ev.MIME,
			Size: ev.Size, At: ev.At, Base64: payload,
		})
	}
	for _, df := range c.DocFiles {
		payload, ok := s.fetchBlob(ctx, func() (blob.Info, io.ReadCloser, error) {
			return s.files.GetDocumentFile(ctx, c.ID, df.DocID, df.ID)
		}, c.ID, df.ID)
		if !ok {
			continue
		}
		doc.DocFileData = append(doc.DocFileData, BlobPayload{
			ID: df.ID, CaseID: c.ID, DocID: df.DocID, Name: df.Name, MIME: df.MIME,
			Size: df.Size, At: df.At, Base64: payload,
		})
	}
	return doc
}

// fetchBlob reads one payload as base64 for embedding. Absent or failing blobs
// are skipped so a single bad object never aborts an export sweep.
func (s *Service) fetchBlob(_ context.Context, get func() (blob.Info, io.ReadCloser, error), caseID, id string) (string, bool) {
	_, rc, err := get()
	if err != nil {
		if blob.IsNotFound(err) {
			s.logger.Debug("blob absent, skipping export", "case_id", caseID, "blob_id", id)
		} else {
			s.logger.Warn("blob read failed, skipping export", "case_id", caseID, "blob_id", id, "error", err)
		}
		return "", false
	}
	data, err := readAll(rc)
	if err != nil {
		s.logger.Warn("blob read failed, skipping export", "case_id", caseID, "blob_id", id, "error", err)
		return "", false
	}
	return base64.StdEncoding.EncodeToString(data), true
}
