// Package attachments layers the two case-scoped binary collections, evidence
// photos and document attachments, on top of the generic blob store. Keys are
// structured so per-case and per-document listings reduce to prefix scans:
//
//	evidence/<caseID>/<evidenceID>
//	docfile/<caseID>/<docID>/<fileID>
package attachments

import (
	"context"
	"fmt"
	"io"
	"strings"

	"veedcore/internal/blob"
)

const (
	evidencePrefix = "evidence"
	docFilePrefix  = "docfile"
)

// Store provides evidence and document attachment access for cases.
type Store struct {
	blobs blob.Store
}

// New wraps a blob.Store with the attachment key schema.
func New(blobs blob.Store) *Store { return &Store{blobs: blobs} }

// Blobs exposes the underlying blob store.
func (s *Store) Blobs() blob.Store { return s.blobs }

// IsNotFound reports whether err denotes a missing attachment payload. Missing
// payloads are a normal condition: records can reference blobs captured on
// another device.
func IsNotFound(err error) bool { return blob.IsNotFound(err) }

func validateSegment(name, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s required", name)
	}
	if strings.ContainsAny(v, "/\\") {
		return fmt.Errorf("%s %q contains path separators", name, v)
	}
	return nil
}

// EvidenceKey builds the blob key for an evidence payload.
func EvidenceKey(caseID, evidenceID string) (string, error) {
	if err := validateSegment("case id", caseID); err != nil {
		return "", err
	}
	if err := validateSegment("evidence id", evidenceID); err != nil {
		return "", err
	}
	return evidencePrefix + "/" + caseID + "/" + evidenceID, nil
}

// DocumentFileKey builds the blob key for a document attachment payload.
func DocumentFileKey(caseID, docID, fileID string) (string, error) {
	if err := validateSegment("case id", caseID); err != nil {
		return "", err
	}
	if err := validateSegment("doc id", docID); err != nil {
		return "", err
	}
	if err := validateSegment("file id", fileID); err != nil {
		return "", err
	}
	return docFilePrefix + "/" + caseID + "/" + docID + "/" + fileID, nil
}

// PutEvidence stores (or replaces) an evidence payload.
func (s *Store) PutEvidence(ctx context.Context, caseID, evidenceID string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	key, err := EvidenceKey(caseID, evidenceID)
	if err != nil {
		return blob.Info{}, err
	}
	return s.blobs.Put(ctx, key, r, opts)
}

// GetEvidence retrieves an evidence payload. Absence surfaces as a
// blob.ErrNotFound wrapped error, check with IsNotFound.
func (s *Store) GetEvidence(ctx context.Context, caseID, evidenceID string) (blob.Info, io.ReadCloser, error) {
	key, err := EvidenceKey(caseID, evidenceID)
	if err != nil {
		return blob.Info{}, nil, err
	}
	return s.blobs.Get(ctx, key)
}

// DeleteEvidence removes an evidence payload, reporting whether it existed.
func (s *Store) DeleteEvidence(ctx context.Context, caseID, evidenceID string) (bool, error) {
	key, err := EvidenceKey(caseID, evidenceID)
	if err != nil {
		return false, err
	}
	return s.blobs.Delete(ctx, key)
}

// ListEvidenceByCase returns metadata for all evidence payloads of a case.
func (s *Store) ListEvidenceByCase(ctx context.Context, caseID string) ([]blob.Info, error) {
	if err := validateSegment("case id", caseID); err != nil {
		return nil, err
	}
	return s.blobs.List(ctx, evidencePrefix+"/"+caseID+"/")
}

// PutDocumentFile stores (or replaces) a document attachment payload.
func (s *Store) PutDocumentFile(ctx context.Context, caseID, docID, fileID string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	key, err := DocumentFileKey(caseID, docID, fileID)
	if err != nil {
		return blob.Info{}, err
	}
	return s.blobs.Put(ctx, key, r, opts)
}

// GetDocumentFile retrieves a document attachment payload.
func (s *Store) GetDocumentFile(ctx context.Context, caseID, docID, fileID string) (blob.Info, io.ReadCloser, error) {
	key, err := DocumentFileKey(caseID, docID, fileID)
	if err != nil {
		return blob.Info{}, nil, err
	}
	return s.blobs.Get(ctx, key)
}

// DeleteDocumentFile removes a document attachment payload.
func (s *Store) DeleteDocumentFile(ctx context.Context, caseID, docID, fileID string) (bool, error) {
	key, err := DocumentFileKey(caseID, docID, fileID)
	if err != nil {
		return false, err
	}
	return s.blobs.Delete(ctx, key)
}

// ListDocumentFilesByCase returns metadata for every document attachment of a case.
func (s *Store) ListDocumentFilesByCase(ctx context.Context, caseID string) ([]blob.Info, error) {
	if err := validateSegment("case id", caseID); err != nil {
		return nil, err
	}
	return s.blobs.List(ctx, docFilePrefix+"/"+caseID+"/")
}

// ListDocumentFiles returns metadata for attachments of one document slot.
func (s *Store) ListDocumentFiles(ctx context.Context, caseID, docID string) ([]blob.Info, error) {
	if err := validateSegment("case id", caseID); err != nil {
		return nil, err
	}
	if err := validateSegment("doc id", docID); err != nil {
		return nil, err
	}
	return s.blobs.List(ctx, docFilePrefix+"/"+caseID+"/"+docID+"/")
}

// PurgeCase deletes every evidence and document attachment payload of a case.
// Per-key failures are collected so a single bad object does not leave the
// rest of the case's payloads orphaned.
func (s *Store) PurgeCase(ctx context.Context, caseID string) (deleted int, errs []error) {
	if err := validateSegment("case id", caseID); err != nil {
		return 0, []error{err}
	}
	for _, prefix := range []string{evidencePrefix + "/" + caseID + "/", docFilePrefix + "/" + caseID + "/"} {
		infos, err := s.blobs.List(ctx, prefix)
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s: %w", prefix, err))
			continue
		}
		for _, info := range infos {
			ok, err := s.blobs.Delete(ctx, info.Key)
			if err != nil {
				errs = append(errs, fmt.Errorf("delete %s: %w", info.Key, err))
				continue
			}
			if ok {
				deleted++
			}
		}
	}
	return deleted, errs
}
