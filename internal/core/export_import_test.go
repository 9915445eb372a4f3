package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func seedExportableCase(t *testing.T, s *Service) CaseRecord {
	t.Helper()
	ctx := context.Background()
	c := mustCreate(t, s, CaseReference{ProcessID: "2023-AB-017", Entity: "Alcaldía de Pasto"})
	if _, _, err := s.AddLogEntry(ctx, c.ID, "Visita de obra realizada"); err != nil {
		t.Fatalf("seed log: %v", err)
	}
	if _, _, err := s.AttachEvidence(ctx, c.ID, "foto1.jpg", "image/jpeg", strings.NewReader("jpegbytes"), "", nil); err != nil {
		t.Fatalf("seed evidence: %v", err)
	}
	if _, _, err := s.AttachDocumentFile(ctx, c.ID, "contrato", "contrato.pdf", "application/pdf", strings.NewReader("%PDF-1.4")); err != nil {
		t.Fatalf("seed doc file: %v", err)
	}
	got, _ := s.GetCase(ctx, c.ID)
	return got
}

func TestExportCaseEmbedsBlobs(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	c := seedExportableCase(t, s)

	doc, err := s.ExportCase(ctx, c.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if doc.Format != FormatCaseV4 || doc.DocID == "" {
		t.Fatalf("unexpected envelope: format=%q doc_id=%q", doc.Format, doc.DocID)
	}
	if len(doc.EvidenceData) != 1 || len(doc.DocFileData) != 1 {
		t.Fatalf("expected embedded payloads: ev=%d df=%d", len(doc.EvidenceData), len(doc.DocFileData))
	}
	if doc.EvidenceData[0].Base64 == "" || doc.DocFileData[0].DocID != "contrato" {
		t.Fatalf("payload envelope incomplete: %+v", doc.DocFileData[0])
	}

	if _, err := s.ExportCase(ctx, "C-missing"); err == nil {
		t.Fatalf("unknown case must fail export")
	}
}

func TestExportSkipsMissingBlobs(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	c := seedExportableCase(t, s)
	ev := c.Evidences[0]
	if _, err := s.Attachments().DeleteEvidence(ctx, c.ID, ev.ID); err != nil {
		t.Fatalf("drop blob: %v", err)
	}

	doc, err := s.ExportCase(ctx, c.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(doc.EvidencesMeta) != 1 {
		t.Fatalf("metadata must survive a missing payload")
	}
	if len(doc.EvidenceData) != 0 {
		t.Fatalf("missing payload must be skipped, got %d", len(doc.EvidenceData))
	}
}

func TestImportCreatesCaseWithFreshIdentities(t *testing.T) {
	source := newTestService()
	ctx := context.Background()
	orig := seedExportableCase(t, source)

	var buf bytes.Buffer
	if err := source.WriteExportCase(ctx, orig.ID, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	dest := newTestService()
	summary, err := dest.ImportDocument(ctx, buf.Bytes())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if summary.CasesCreated != 1 || summary.CasesMerged != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.BlobsWritten != 2 || summary.BlobsSkipped != 0 {
		t.Fatalf("expected both payloads written: %+v", summary)
	}

	imported, ok := dest.FindByProcessID(ctx, "2023-AB-017")
	if !ok {
		t.Fatalf("imported case not found")
	}
	if imported.ID == orig.ID {
		t.Fatalf("imported case must get a fresh identity")
	}
	if imported.Evidences[0].ID == orig.Evidences[0].ID {
		t.Fatalf("evidence identities must be regenerated")
	}
	if imported.Evidences[0].CaseID != imported.ID {
		t.Fatalf("evidence must point at the new case")
	}

	_, rc, err := dest.OpenEvidence(ctx, imported.ID, imported.Evidences[0].ID)
	if err != nil {
		t.Fatalf("imported payload unreadable: %v", err)
	}
	data, err := readAll(rc)
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}
	if string(data) != "jpegbytes" {
		t.Fatalf("payload corrupted: %q", data)
	}
}

func TestImportMergesByProcessID(t *testing.T) {
	source := newTestService()
	ctx := context.Background()
	orig := seedExportableCase(t, source)

	var buf bytes.Buffer
	if err := source.WriteExportCase(ctx, orig.ID, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	dest := newTestService()
	existing := mustCreate(t, dest, CaseReference{ProcessID: "2023-AB-017"})

	summary, err := dest.ImportDocument(ctx, buf.Bytes())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if summary.CasesMerged != 1 || summary.CasesCreated != 0 {
		t.Fatalf("expected a merge, got %+v", summary)
	}
	merged, _ := dest.GetCase(ctx, existing.ID)
	if merged.Reference.Entity != "Alcaldía de Pasto" {
		t.Fatalf("merge must fill scalars forward, got %q", merged.Reference.Entity)
	}
	if len(merged.Evidences) != 1 || merged.Evidences[0].CaseID != existing.ID {
		t.Fatalf("evidence must land under the existing case: %+v", merged.Evidences)
	}
	if _, _, err := dest.OpenEvidence(ctx, existing.ID, merged.Evidences[0].ID); err != nil {
		t.Fatalf("merged payload unreadable: %v", err)
	}
}

func TestImportMultiDocumentAdoptsUserName(t *testing.T) {
	source := newTestService()
	ctx := context.Background()
	seedExportableCase(t, source)
	if _, err := source.SetUserName(ctx, "Ana"); err != nil {
		t.Fatalf("set user: %v", err)
	}

	var buf bytes.Buffer
	if err := source.WriteExportAll(ctx, &buf); err != nil {
		t.Fatalf("export all: %v", err)
	}

	dest := newTestService()
	summary, err := dest.ImportDocument(ctx, buf.Bytes())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if summary.CasesCreated != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if dest.UserName(ctx) != "Ana" {
		t.Fatalf("multi import must adopt the exporter identity, got %q", dest.UserName(ctx))
	}
}

func TestImportLegacyDocumentWithoutDocFiles(t *testing.T) {
	doc := CaseDocument{
		Format:   FormatCaseV3,
		CaseMeta: CaseMeta{ID: "C-old", Name: "Caso legado"},
	}
	doc.Reference.ProcessID = "2022-LL-001"
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	dest := newTestService()
	ctx := context.Background()
	summary, importErr := dest.ImportDocument(ctx, data)
	if importErr != nil {
		t.Fatalf("import: %v", importErr)
	}
	if summary.CasesCreated != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	imported, _ := dest.FindByProcessID(ctx, "2022-LL-001")
	if imported.DocFiles == nil || len(imported.DocFiles) != 0 {
		t.Fatalf("legacy import must yield an empty doc file collection: %+v", imported.DocFiles)
	}
	if imported.Checks == nil || imported.History == nil {
		t.Fatalf("legacy import must backfill collections")
	}
}

func TestImportUnknownFormatLeavesStoreUntouched(t *testing.T) {
	dest := newTestService()
	ctx := context.Background()
	mustCreate(t, dest, CaseReference{ProcessID: "2023-AB-001"})
	before := len(dest.ListCases(ctx))

	_, err := dest.ImportDocument(ctx, []byte(`{"formato":"case-v99"}`))
	if !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
	if len(dest.ListCases(ctx)) != before {
		t.Fatalf("rejected import must not mutate the store")
	}

	if _, err := dest.ImportDocument(ctx, []byte(`not json`)); err == nil {
		t.Fatalf("malformed payload must fail")
	}
}

func TestImportSkipsCorruptBlobPayloads(t *testing.T) {
	source := newTestService()
	ctx := context.Background()
	orig := seedExportableCase(t, source)

	doc, err := source.ExportCase(ctx, orig.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	doc.EvidenceData[0].Base64 = "%%% not base64 %%%"
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	dest := newTestService()
	summary, importErr := dest.ImportDocument(ctx, data)
	if importErr != nil {
		t.Fatalf("one bad payload must not abort the import: %v", importErr)
	}
	if summary.BlobsSkipped != 1 || summary.BlobsWritten != 1 {
		t.Fatalf("unexpected blob counters %+v", summary)
	}
	if summary.CasesCreated != 1 {
		t.Fatalf("case metadata must still import: %+v", summary)
	}
}
