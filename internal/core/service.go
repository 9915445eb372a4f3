package core

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"veedcore/internal/attachments"
	"veedcore/internal/blob"
	"veedcore/pkg/domain"
)

// Service exposes the transactional case operations. Every mutation appends
// its own ledger entries before the transaction commits, so a record and its
// audit trail are always persisted together.
type Service struct {
	store   PersistentStore
	files   *attachments.Store
	logger  Logger
	clock   Clock
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		files:   attachments.New(blob.NewMemory()),
		logger:  noopLogger{},
		clock:   systemClock{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(NewMemoryStore(engine), opts...)
}

// WithBlobStore routes evidence and document attachments to the given backend.
// The default is an in-memory store; production callers wire blob.Open.
func WithBlobStore(blobs blob.Store) ServiceOption {
	return func(s *Service) {
		if blobs != nil {
			s.files = attachments.New(blobs)
		}
	}
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Attachments returns the attachment collections backing this service.
func (s *Service) Attachments() *attachments.Store { return s.files }

// DefaultActor is recorded in ledger entries when no user identity is set.
const DefaultActor = "Usuario (sin nombre)"

func actorName(tx Transaction) string {
	if name := strings.TrimSpace(tx.UserName()); name != "" {
		return name
	}
	return DefaultActor
}

func newAttachmentID(prefix string, now time.Time) string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%s-%s-%d", prefix, hex.EncodeToString(b[:]), now.UnixMilli())
}

// Case lifecycle -------------------------------------------------------------

// CreateCase persists a new case, deriving a display name from the reference
// fields when none is given, and stamps the opening ledger entry.
func (s *Service) CreateCase(ctx context.Context, c CaseRecord) (CaseRecord, Result, error) {
	ctx, finish := s.begin(ctx, "create_case")
	var created CaseRecord
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		domain.EnsureCaseDefaults(&c)
		if strings.TrimSpace(c.Name) == "" {
			c.Name = domain.DeriveCaseName(c)
		}
		if strings.TrimSpace(c.Name) == "" {
			c.Name = "Caso"
		}
		c.Reference.Emails.Entidad = domain.NormalizeEmails(c.Reference.Emails.Entidad)
		c.Reference.Emails.Personeria = domain.NormalizeEmails(c.Reference.Emails.Personeria)
		c.Reference.Emails.Contraloria = domain.NormalizeEmails(c.Reference.Emails.Contraloria)
		c.Reference.Emails.Procuraduria = domain.NormalizeEmails(c.Reference.Emails.Procuraduria)
		stored, err := tx.CreateCase(c)
		if err != nil {
			return err
		}
		actor := actorName(tx)
		stored, err = tx.UpdateCase(stored.ID, func(rec *CaseRecord) error {
			domain.AppendHistory(rec, tx.Now(), actor, "CREAR_CASO", "case", "", rec.Name, "")
			return nil
		})
		if err != nil {
			return err
		}
		tx.SetActiveCase(stored.ID)
		created = stored
		return nil
	})
	finish(created.ID, err)
	return created, res, err
}

// GetCase retrieves a case from committed state.
func (s *Service) GetCase(_ context.Context, id string) (CaseRecord, bool) {
	return s.store.GetCase(id)
}

// ListCases returns all committed cases, newest first.
func (s *Service) ListCases(_ context.Context) []CaseRecord {
	return s.store.ListCases()
}

// ActiveCase returns the committed active case, if any.
func (s *Service) ActiveCase(_ context.Context) (CaseRecord, bool) {
	id := s.store.ActiveCaseID()
	if id == "" {
		return CaseRecord{}, false
	}
	return s.store.GetCase(id)
}

// UserName returns the committed workspace user identity.
func (s *Service) UserName(_ context.Context) string { return s.store.UserName() }

// SetActiveCase repoints the workspace's active case. Unknown IDs are ignored.
func (s *Service) SetActiveCase(ctx context.Context, id string) (Result, error) {
	ctx, finish := s.begin(ctx, "set_active_case")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		tx.SetActiveCase(id)
		return nil
	})
	finish(id, err)
	return res, err
}

// SetUserName records the workspace user identity and logs the switch on the
// active case's ledger.
func (s *Service) SetUserName(ctx context.Context, name string) (Result, error) {
	ctx, finish := s.begin(ctx, "set_user_name")
	name = strings.TrimSpace(name)
	var entityID string
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		previous := tx.UserName()
		if previous == name {
			return nil
		}
		tx.SetUserName(name)
		active := tx.ActiveCaseID()
		if active == "" {
			return nil
		}
		entityID = active
		_, err := tx.UpdateCase(active, func(rec *CaseRecord) error {
			domain.AppendHistory(rec, tx.Now(), actorName(tx), "CAMBIAR_USUARIO", "userName", previous, name, "")
			return nil
		})
		return err
	})
	finish(entityID, err)
	return res, err
}

// UpdateReference overwrites the case's reference fields, recording one ledger
// entry per field that actually changed. Email lists are normalized before
// comparison. A still-derivable display name is re-derived afterwards.
func (s *Service) UpdateReference(ctx context.Context, id string, ref CaseReference) (CaseRecord, Result, error) {
	ctx, finish := s.begin(ctx, "update_case_reference")
	var updated CaseRecord
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateCase(id, func(rec *CaseRecord) error {
			now := tx.Now()
			actor := actorName(tx)
			// Derivability is decided against the pre-update name: once the
			// fields change, an auto-derived name no longer matches its own
			// derivation.
			renameable := domain.NameIsDerivable(*rec)
			changed := false

			scalars := []struct {
				field string
				dst   *string
				src   string
			}{
				{"caso.secopUrl", &rec.Reference.SecopURL, ref.SecopURL},
				{"caso.entidad", &rec.Reference.Entity, ref.Entity},
				{"caso.procesoId", &rec.Reference.ProcessID, ref.ProcessID},
				{"caso.ubicacion", &rec.Reference.Location, ref.Location},
				{"caso.tipoInfra", &rec.Reference.InfraType, ref.InfraType},
				{"caso.contratoNombre", &rec.Reference.ContractName, ref.ContractName},
			}
			for _, f := range scalars {
				src := strings.TrimSpace(f.src)
				if *f.dst == src {
					continue
				}
				domain.AppendHistory(rec, now, actor, "ACTUALIZAR_CASO", f.field, *f.dst, src, "")
				*f.dst = src
				changed = true
			}

			emails := []struct {
				field string
				dst   *[]string
				src   []string
			}{
				{"caso.emails.entidad", &rec.Reference.Emails.Entidad, ref.Emails.Entidad},
				{"caso.emails.personeria", &rec.Reference.Emails.Personeria, ref.Emails.Personeria},
				{"caso.emails.contraloria", &rec.Reference.Emails.Contraloria, ref.Emails.Contraloria},
				{"caso.emails.procuraduria", &rec.Reference.Emails.Procuraduria, ref.Emails.Procuraduria},
			}
			for _, f := range emails {
				next := domain.NormalizeEmails(f.src)
				before := strings.Join(*f.dst, ", ")
				after := strings.Join(next, ", ")
				if before == after {
					continue
				}
				domain.AppendHistory(rec, now, actor, "ACTUALIZAR_CASO", f.field, before, after, "")
				*f.dst = next
				changed = true
			}

			if !changed {
				return nil
			}
			if renameable {
				if derived := domain.DeriveCaseName(*rec); derived != rec.Name && derived != "" {
					domain.AppendHistory(rec, now, actor, "ACTUALIZAR_CASO", "case.nombre", rec.Name, derived, "Nombre derivado")
					rec.Name = derived
				}
			}
			rec.UpdatedAt = now
			return nil
		})
		return err
	})
	finish(id, err)
	return updated, res, err
}

// Rename sets an explicit display name, disabling further auto-derivation
// until the name matches the derivable pattern again.
func (s *Service) Rename(ctx context.Context, id, name string) (CaseRecord, Result, error) {
	ctx, finish := s.begin(ctx, "update_case_reference")
	var updated CaseRecord
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateCase(id, func(rec *CaseRecord) error {
			name = strings.TrimSpace(name)
			if name == "" || name == rec.Name {
				return nil
			}
			domain.AppendHistory(rec, tx.Now(), actorName(tx), "ACTUALIZAR_CASO", "case.nombre", rec.Name, name, "")
			rec.Name = name
			rec.UpdatedAt = tx.Now()
			return nil
		})
		return err
	})
	finish(id, err)
	return updated, res, err
}

// Duplicate clones a case under a fresh identity. Attachment metadata and
// blobs are not copied; the clone starts with empty collections so it never
// references binaries it does not own.
func (s *Service) Duplicate(ctx context.Context, id string) (CaseRecord, Result, error) {
	ctx, finish := s.begin(ctx, "duplicate_case")
	var created CaseRecord
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		src, ok := tx.FindCase(id)
		if !ok {
			return fmt.Errorf("case %q not found", id)
		}
		clone := domain.CloneCase(src)
		clone.ID = ""
		clone.Name = src.Name + " (copia)"
		clone.CreatedAt = tx.Now()
		clone.Evidences = nil
		clone.DocFiles = nil
		stored, err := tx.CreateCase(clone)
		if err != nil {
			return err
		}
		actor := actorName(tx)
		stored, err = tx.UpdateCase(stored.ID, func(rec *CaseRecord) error {
			domain.AppendHistory(rec, tx.Now(), actor, "DUPLICAR_CASO", "case", src.ID, rec.ID, "")
			return nil
		})
		if err != nil {
			return err
		}
		tx.SetActiveCase(stored.ID)
		created = stored
		return nil
	})
	finish(created.ID, err)
	return created, res, err
}

// Delete removes a case and then purges its attachment payloads. The record
// goes first so a rules rejection (last remaining case) leaves the blob store
// untouched; per-blob purge failures after a committed delete are logged and
// skipped.
func (s *Service) Delete(ctx context.Context, id string) (Result, error) {
	ctx, finish := s.begin(ctx, "delete_case")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteCase(id)
	})
	if err == nil {
		deleted, errs := s.files.PurgeCase(ctx, id)
		for _, purgeErr := range errs {
			s.logger.Warn("blob purge failed", "case_id", id, "error", purgeErr)
		}
		s.logger.Info("case deleted", "case_id", id, "blobs_purged", deleted)
	}
	finish(id, err)
	return res, err
}

// Checklist, documents, logs -------------------------------------------------

// SetChecklistItem flips one checklist key, logging only actual transitions.
func (s *Service) SetChecklistItem(ctx context.Context, id, key string, done bool) (CaseRecord, Result, error) {
	ctx, finish := s.begin(ctx, "set_checklist_item")
	var updated CaseRecord
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateCase(id, func(rec *CaseRecord) error {
			if rec.Checks[key] == done {
				return nil
			}
			rec.Checks[key] = done
			domain.AppendHistory(rec, tx.Now(), actorName(tx), "CHECKLIST", "checks."+key,
				fmt.Sprintf("%t", !done), fmt.Sprintf("%t", done), "")
			rec.UpdatedAt = tx.Now()
			return nil
		})
		return err
	})
	finish(id, err)
	return updated, res, err
}

// SetDocumentStatus updates the completeness state of one required document.
func (s *Service) SetDocumentStatus(ctx context.Context, id, docID string, state DocumentState) (CaseRecord, Result, error) {
	ctx, finish := s.begin(ctx, "set_document_status")
	var updated CaseRecord
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateCase(id, func(rec *CaseRecord) error {
			cur := rec.Docs[docID]
			if cur.State == state {
				return nil
			}
			domain.AppendHistory(rec, tx.Now(), actorName(tx), "ACTUALIZAR_DOCUMENTO",
				fmt.Sprintf("docs.%s.estado", docID), string(cur.State), string(state), "")
			cur.State = state
			rec.Docs[docID] = cur
			rec.UpdatedAt = tx.Now()
			return nil
		})
		return err
	})
	finish(id, err)
	return updated, res, err
}

// SetDocumentEvidence updates the free-text evidence note of a document entry.
func (s *Service) SetDocumentEvidence(ctx context.Context, id, docID, note string) (CaseRecord, Result, error) {
	ctx, finish := s.begin(ctx, "set_document_status")
	var updated CaseRecord
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateCase(id, func(rec *CaseRecord) error {
			cur := rec.Docs[docID]
			if cur.Evidence == note {
				return nil
			}
			domain.AppendHistory(rec, tx.Now(), actorName(tx), "ACTUALIZAR_DOCUMENTO",
				fmt.Sprintf("docs.%s.evidencia", docID), cur.Evidence, note, "")
			cur.Evidence = note
			if cur.State == "" {
				cur.State = DocStatePending
			}
			rec.Docs[docID] = cur
			rec.UpdatedAt = tx.Now()
			return nil
		})
		return err
	})
	finish(id, err)
	return updated, res, err
}

// AddLogEntry prepends a timestamped free-text note to the case log.
func (s *Service) AddLogEntry(ctx context.Context, id, text string) (CaseRecord, Result, error) {
	ctx, finish := s.begin(ctx, "add_log_entry")
	var updated CaseRecord
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		text = strings.TrimSpace(text)
		if text == "" {
			return fmt.Errorf("log text required")
		}
		var err error
		updated, err = tx.UpdateCase(id, func(rec *CaseRecord) error {
			rec.Logs = append([]LogEntry{{At: tx.Now(), Text: text}}, rec.Logs...)
			domain.AppendHistory(rec, tx.Now(), actorName(tx), "AGREGAR_BITACORA", "logs", "", text, "")
			rec.UpdatedAt = tx.Now()
			return nil
		})
		return err
	})
	finish(id, err)
	return updated, res, err
}

// Findings -------------------------------------------------------------------

// AddFinding assigns the next H-NNN identity and prepends the finding. The
// finding content rule blocks the commit when required fields are missing or
// the fact narrative is too short.
func (s *Service) AddFinding(ctx context.Context, id string, f Finding) (Finding, Result, error) {
	ctx, finish := s.begin(ctx, "add_finding")
	var added Finding
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateCase(id, func(rec *CaseRecord) error {
			f.ID = domain.NextFindingID(*rec)
			if f.At.IsZero() {
				f.At = tx.Now()
			}
			if f.Severity == "" {
				f.Severity = SeverityObservation
			}
			rec.Findings = append([]Finding{f}, rec.Findings...)
			domain.AppendHistory(rec, tx.Now(), actorName(tx), "AGREGAR_HALLAZGO", "hallazgos",
				"", fmt.Sprintf("%s (%s)", f.ID, f.Severity), "Fase: "+f.Phase)
			rec.UpdatedAt = tx.Now()
			added = f
			return nil
		})
		return err
	})
	finish(id, err)
	return added, res, err
}

// RemoveFinding drops a finding by ID.
func (s *Service) RemoveFinding(ctx context.Context, id, findingID string) (Result, error) {
	ctx, finish := s.begin(ctx, "remove_finding")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateCase(id, func(rec *CaseRecord) error {
			for i, h := range rec.Findings {
				if h.ID != findingID {
					continue
				}
				rec.Findings = append(rec.Findings[:i], rec.Findings[i+1:]...)
				domain.AppendHistory(rec, tx.Now(), actorName(tx), "ELIMINAR_HALLAZGO", "hallazgos",
					fmt.Sprintf("%s (%s)", h.ID, h.Severity), "", "")
				rec.UpdatedAt = tx.Now()
				return nil
			}
			return fmt.Errorf("finding %q not found", findingID)
		})
		return err
	})
	finish(id, err)
	return res, err
}

// Attachments ----------------------------------------------------------------

// AttachEvidence stores the payload in the blob store and records its metadata
// on the case. If the transaction is rejected the uploaded blob is removed.
func (s *Service) AttachEvidence(ctx context.Context, caseID, name, mime string, payload io.Reader, note string, links []domain.EvidenceLink) (EvidenceMeta, Result, error) {
	ctx, finish := s.begin(ctx, "attach_evidence")
	meta := EvidenceMeta{
		ID:     newAttachmentID("EV", s.clock.Now()),
		CaseID: caseID,
		At:     s.clock.Now(),
		Name:   name,
		MIME:   mime,
		Note:   note,
		Links:  append([]domain.EvidenceLink(nil), links...),
	}
	info, err := s.files.PutEvidence(ctx, caseID, meta.ID, payload, blob.PutOptions{ContentType: mime})
	if err != nil {
		finish(meta.ID, err)
		return EvidenceMeta{}, Result{}, err
	}
	meta.Size = info.Size
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateCase(caseID, func(rec *CaseRecord) error {
			rec.Evidences = append([]EvidenceMeta{meta}, rec.Evidences...)
			domain.AppendHistory(rec, tx.Now(), actorName(tx), "AGREGAR_EVIDENCIA", "evidences", "", meta.Name, note)
			rec.UpdatedAt = tx.Now()
			return nil
		})
		return err
	})
	if err != nil {
		if _, delErr := s.files.DeleteEvidence(ctx, caseID, meta.ID); delErr != nil {
			s.logger.Warn("orphan evidence cleanup failed", "case_id", caseID, "evidence_id", meta.ID, "error", delErr)
		}
		finish(meta.ID, err)
		return EvidenceMeta{}, res, err
	}
	finish(meta.ID, nil)
	return meta, res, nil
}

// OpenEvidence returns the payload of an evidence entry. A missing blob is a
// normal condition (captured on another device); check blob.IsNotFound.
func (s *Service) OpenEvidence(ctx context.Context, caseID, evidenceID string) (blob.Info, io.ReadCloser, error) {
	return s.files.GetEvidence(ctx, caseID, evidenceID)
}

// RemoveEvidence drops the metadata entry and then deletes the payload. Blob
// deletion failures after the committed metadata removal are logged, not fatal.
func (s *Service) RemoveEvidence(ctx context.Context, caseID, evidenceID string) (Result, error) {
	ctx, finish := s.begin(ctx, "remove_evidence")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateCase(caseID, func(rec *CaseRecord) error {
			for i, ev := range rec.Evidences {
				if ev.ID != evidenceID {
					continue
				}
				rec.Evidences = append(rec.Evidences[:i], rec.Evidences[i+1:]...)
				domain.AppendHistory(rec, tx.Now(), actorName(tx), "ELIMINAR_EVIDENCIA", "evidences", ev.Name, "", "")
				rec.UpdatedAt = tx.Now()
				return nil
			}
			return fmt.Errorf("evidence %q not found", evidenceID)
		})
		return err
	})
	if err == nil {
		if _, delErr := s.files.DeleteEvidence(ctx, caseID, evidenceID); delErr != nil {
			s.logger.Warn("evidence blob delete failed", "case_id", caseID, "evidence_id", evidenceID, "error", delErr)
		}
	}
	finish(evidenceID, err)
	return res, err
}

// AttachDocumentFile stores a document attachment payload (PDF/Word/Excel)
// under a required-document entry.
func (s *Service) AttachDocumentFile(ctx context.Context, caseID, docID, name, mime string, payload io.Reader) (DocumentFileMeta, Result, error) {
	ctx, finish := s.begin(ctx, "attach_document_file")
	meta := DocumentFileMeta{
		ID:     newAttachmentID("DF", s.clock.Now()),
		CaseID: caseID,
		DocID:  docID,
		At:     s.clock.Now(),
		Name:   name,
		MIME:   mime,
	}
	info, err := s.files.PutDocumentFile(ctx, caseID, docID, meta.ID, payload, blob.PutOptions{ContentType: mime})
	if err != nil {
		finish(meta.ID, err)
		return DocumentFileMeta{}, Result{}, err
	}
	meta.Size = info.Size
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateCase(caseID, func(rec *CaseRecord) error {
			rec.DocFiles = append([]DocumentFileMeta{meta}, rec.DocFiles...)
			domain.AppendHistory(rec, tx.Now(), actorName(tx), "ADJUNTAR_ARCHIVO_DOC", "doc_files."+docID, "", meta.Name, "")
			rec.UpdatedAt = tx.Now()
			return nil
		})
		return err
	})
	if err != nil {
		if _, delErr := s.files.DeleteDocumentFile(ctx, caseID, docID, meta.ID); delErr != nil {
			s.logger.Warn("orphan document file cleanup failed", "case_id", caseID, "file_id", meta.ID, "error", delErr)
		}
		finish(meta.ID, err)
		return DocumentFileMeta{}, res, err
	}
	finish(meta.ID, nil)
	return meta, res, nil
}

// OpenDocumentFile returns the payload of a document attachment.
func (s *Service) OpenDocumentFile(ctx context.Context, caseID, docID, fileID string) (blob.Info, io.ReadCloser, error) {
	return s.files.GetDocumentFile(ctx, caseID, docID, fileID)
}

// RemoveDocumentFile drops the metadata entry and then deletes the payload.
func (s *Service) RemoveDocumentFile(ctx context.Context, caseID, fileID string) (Result, error) {
	ctx, finish := s.begin(ctx, "remove_document_file")
	var docID string
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateCase(caseID, func(rec *CaseRecord) error {
			for i, df := range rec.DocFiles {
				if df.ID != fileID {
					continue
				}
				docID = df.DocID
				rec.DocFiles = append(rec.DocFiles[:i], rec.DocFiles[i+1:]...)
				domain.AppendHistory(rec, tx.Now(), actorName(tx), "ELIMINAR_ARCHIVO_DOC", "doc_files."+df.DocID, df.Name, "", "")
				rec.UpdatedAt = tx.Now()
				return nil
			}
			return fmt.Errorf("document file %q not found", fileID)
		})
		return err
	})
	if err == nil && docID != "" {
		if _, delErr := s.files.DeleteDocumentFile(ctx, caseID, docID, fileID); delErr != nil {
			s.logger.Warn("document blob delete failed", "case_id", caseID, "file_id", fileID, "error", delErr)
		}
	}
	finish(fileID, err)
	return res, err
}

// History --------------------------------------------------------------------

// ClearHistory wipes the ledger, leaving a single entry recording the wipe.
func (s *Service) ClearHistory(ctx context.Context, id string) (Result, error) {
	ctx, finish := s.begin(ctx, "clear_history")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateCase(id, func(rec *CaseRecord) error {
			count := len(rec.History)
			rec.History = nil
			domain.AppendHistory(rec, tx.Now(), actorName(tx), "LIMPIAR_HISTORIAL", "history",
				fmt.Sprintf("%d entradas", count), "0 entradas", "")
			rec.UpdatedAt = tx.Now()
			return nil
		})
		return err
	})
	finish(id, err)
	return res, err
}

// Merge ----------------------------------------------------------------------

// Merge reconciles an incoming record into an existing case. Field-level
// differences land as individual ledger entries, followed by the merge marker
// and a counts summary. Metadata only: the caller owns blob placement.
func (s *Service) Merge(ctx context.Context, targetID string, incoming CaseRecord) (CaseRecord, Result, error) {
	ctx, finish := s.begin(ctx, "merge_cases")
	var merged CaseRecord
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		merged, err = mergeIntoCase(tx, targetID, incoming)
		return err
	})
	finish(targetID, err)
	return merged, res, err
}

// mergeIntoCase applies the merge inside an open transaction so import can
// reuse it without nesting transactions.
func mergeIntoCase(tx Transaction, targetID string, incoming CaseRecord) (CaseRecord, error) {
	return tx.UpdateCase(targetID, func(rec *CaseRecord) error {
		now := tx.Now()
		outcome := domain.MergeCases(*rec, incoming, now)
		m := outcome.Merged

		for _, ch := range outcome.Changes {
			domain.AppendHistory(&m, now, domain.SystemActor, ch.Action, ch.Field, ch.From, ch.To, ch.Note)
		}
		sourceLabel := incoming.ID
		if incoming.Name != "" {
			sourceLabel = incoming.Name
		}
		domain.AppendHistory(&m, now, domain.SystemActor, "FUSIONAR_CASO", "case", incoming.ID, m.ID,
			"Fusión con "+sourceLabel)
		domain.AppendHistory(&m, now, domain.SystemActor, "RESUMEN_FUSION", "case", "", "",
			fmt.Sprintf("Hallazgos +%d (~%d), bitácora +%d (~%d), evidencias +%d, adjuntos +%d",
				outcome.FindingsAdded, outcome.FindingsSkipped,
				outcome.LogsAdded, outcome.LogsSkipped,
				outcome.EvidenceAdded, outcome.DocFilesAdded))

		*rec = m
		return nil
	})
}

// FindByProcessID returns the first committed case whose normalized process ID
// matches, newest first.
func (s *Service) FindByProcessID(_ context.Context, processID string) (CaseRecord, bool) {
	want := domain.NormalizeProcessID(processID)
	if want == "" {
		return CaseRecord{}, false
	}
	for _, c := range s.store.ListCases() {
		if domain.NormalizeProcessID(c.Reference.ProcessID) == want {
			return c, true
		}
	}
	return CaseRecord{}, false
}

// readAll drains a blob reader, closing it.
func readAll(rc io.ReadCloser) ([]byte, error) {
	defer func() { _ = rc.Close() }()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
