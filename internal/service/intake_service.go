package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/teg-intake-api/internal/dto"
	"github.com/noah-isme/teg-intake-api/internal/models"
	"github.com/noah-isme/teg-intake-api/internal/repository"
	appErrors "github.com/noah-isme/teg-intake-api/pkg/errors"
	"github.com/noah-isme/teg-intake-api/pkg/lock"
	"github.com/noah-isme/teg-intake-api/pkg/retry"
)

type procedureSource interface {
	AvailableProcedures(ctx context.Context) []models.Process
	Programs() []string
}

type recordSink interface {
	Destination() string
	Append(ctx context.Context, rec models.SubmissionRecord) error
}

type documentStore interface {
	Store(ctx context.Context, kind models.DocumentKind, name string, content []byte) (models.StoredDocument, error)
	Remove(ctx context.Context, doc models.StoredDocument) error
}

type dossierAssembler interface {
	Assemble(ctx context.Context, pages []DossierPage) (*Dossier, error)
}

type receiptIssuer interface {
	Generate(summary ReceiptSummary) ([]byte, error)
	Store(summary ReceiptSummary, content []byte) (*StoredReceipt, error)
}

type submissionMetrics interface {
	ObserveSubmission(procedure, outcome string)
	ObserveDossierPages(pages int)
}

// IntakeConfig tunes the submission pipeline.
type IntakeConfig struct {
	Location    *time.Location
	MaxFileSize int64
}

// IntakeService validates a submission and commits it: documents, dossier,
// record row and receipt.
type IntakeService struct {
	windows   procedureSource
	records   recordSink
	documents documentStore
	dossiers  dossierAssembler
	receipts  receiptIssuer
	locker    lock.Locker
	metrics   submissionMetrics
	logger    *zap.Logger
	cfg       IntakeConfig
	now       func() time.Time
	newID     func() string
}

// NewIntakeService wires the submission pipeline. A nil locker serializes
// appends inside this process only.
func NewIntakeService(windows procedureSource, records recordSink, documents documentStore, dossiers dossierAssembler, receipts receiptIssuer, locker lock.Locker, metrics submissionMetrics, cfg IntakeConfig, logger *zap.Logger) *IntakeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &IntakeService{
		windows:   windows,
		records:   records,
		documents: documents,
		dossiers:  dossiers,
		receipts:  receipts,
		locker:    locker,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// EnsureOpen fails with ErrEnrollmentClosed when no procedure is open today,
// so that a closed intake is refused before the request body is read.
func (s *IntakeService) EnsureOpen(ctx context.Context) error {
	if len(s.windows.AvailableProcedures(ctx)) > 0 {
		return nil
	}
	s.logger.Info("submission rejected", zap.String("reason", "enrollment closed"))
	s.observe("", OutcomeClosed)
	return appErrors.ErrEnrollmentClosed
}

// Submit runs one submission to completion. Rejections leave nothing behind;
// a failed commit removes whatever it had already stored.
func (s *IntakeService) Submit(ctx context.Context, sub IntakeSubmission) (*dto.SubmissionResponse, error) {
	id := s.newID()
	log := s.logger.With(zap.String("submission_id", id))
	procedureLabel := strings.TrimSpace(sub.Procedure)

	log.Info("submission validating", zap.String("procedure", procedureLabel))
	available := s.windows.AvailableProcedures(ctx)
	if len(available) == 0 {
		log.Info("submission rejected", zap.String("reason", "enrollment closed"))
		s.observe(procedureLabel, OutcomeClosed)
		return nil, appErrors.ErrEnrollmentClosed
	}

	valid, err := validateSubmission(sub, available, s.windows.Programs(), s.cfg.MaxFileSize)
	if err != nil {
		log.Info("submission rejected", zap.Int("violations", len(appErrors.FromError(err).Details)))
		s.observe(procedureLabel, OutcomeRejected)
		return nil, err
	}
	procedureLabel = string(valid.procedure)

	log.Info("submission assembling")
	registeredAt := s.now().In(s.cfg.Location)
	dossier, err := s.dossiers.Assemble(ctx, valid.dossierPages())
	if err != nil {
		log.Error("submission failed", zap.String("stage", "assembling"), zap.Error(err))
		s.observe(procedureLabel, OutcomeFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assemble dossier")
	}
	summary := ReceiptSummary{
		SubmissionID: id,
		RegisteredAt: registeredAt,
		Procedure:    valid.procedure,
		Modality:     valid.modality,
		Title:        valid.Title,
		Author1:      valid.Author1,
		Author2:      valid.Author2,
	}
	receipt, err := s.receipts.Generate(summary)
	if err != nil {
		log.Warn("receipt rendering failed", zap.Error(err))
		receipt = nil
	}

	log.Info("submission persisting")
	shortID := shortSubmissionID(id)
	record, err := s.persist(ctx, log, valid, dossier, shortID, registeredAt)
	if err != nil {
		s.observe(procedureLabel, OutcomeFailed)
		return nil, err
	}

	resp := &dto.SubmissionResponse{
		ID:           id,
		Procedure:    procedureLabel,
		RegisteredAt: registeredAt.Format(models.RegisteredAtLayout),
		DossierRef:   record.DossierValue(),
		DocumentRef:  record.DocumentRef,
	}
	if dossier != nil {
		resp.DossierPages = dossier.Pages
		if s.metrics != nil {
			s.metrics.ObserveDossierPages(dossier.Pages)
		}
	}

	log.Info("submission receipting")
	if receipt != nil {
		stored, err := s.receipts.Store(summary, receipt)
		if err != nil {
			log.Warn("receipt not stored", zap.Error(err))
		} else {
			expires := stored.ExpiresAt
			resp.ReceiptURL = stored.URL
			resp.ReceiptExpiresAt = &expires
		}
	}

	s.observe(procedureLabel, OutcomeAccepted)
	log.Info("submission done",
		zap.String("procedure", procedureLabel),
		zap.String("modality", string(valid.modality)),
		zap.Int("dossier_pages", resp.DossierPages),
	)
	return resp, nil
}

// persist is the staged commit: final document, dossier, then the row. Any
// failure removes the documents stored so far, unless the row may already
// point at them. Only the append runs under the destination lock.
func (s *IntakeService) persist(ctx context.Context, log *zap.Logger, valid *validSubmission, dossier *Dossier, shortID string, registeredAt time.Time) (rec models.SubmissionRecord, err error) {
	var stored []models.StoredDocument
	defer func() {
		if err == nil {
			return
		}
		if errors.Is(err, repository.ErrAppendUnconfirmed) {
			for _, doc := range stored {
				log.Error("append outcome unknown, document kept for reconciliation", zap.String("ref", doc.Ref))
			}
			return
		}
		s.compensate(log, stored)
	}()

	doc, err := s.documents.Store(ctx, models.DocumentKindWork, valid.documentName(shortID), valid.FinalDocument.Content)
	if err != nil {
		log.Error("submission failed", zap.String("stage", "store_document"), zap.Error(err))
		return rec, mapPersistError(err, "failed to store final document")
	}
	stored = append(stored, doc)

	var dossierRef string
	if dossier != nil {
		exp, storeErr := s.documents.Store(ctx, models.DocumentKindDossier, valid.dossierName(shortID), dossier.Content)
		if storeErr != nil {
			log.Error("submission failed", zap.String("stage", "store_dossier"), zap.Error(storeErr))
			return rec, mapPersistError(storeErr, "failed to store dossier")
		}
		stored = append(stored, exp)
		dossierRef = exp.Ref
	}

	rec = models.SubmissionRecord{
		RegisteredAt: registeredAt,
		Program:      valid.Program,
		Procedure:    valid.procedure,
		Modality:     valid.modality,
		Title:        valid.Title,
		ResearchLine: valid.ResearchLine,
		Author1:      valid.Author1,
		Author2:      valid.Author2,
		Tutor:        valid.Tutor,
		DossierRef:   dossierRef,
		DocumentRef:  doc.Ref,
	}
	if err = s.appendRecord(ctx, log, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func (s *IntakeService) appendRecord(ctx context.Context, log *zap.Logger, rec models.SubmissionRecord) error {
	release, err := s.locker.Acquire(ctx, s.records.Destination())
	if err != nil {
		log.Error("submission failed", zap.String("stage", "locking"), zap.Error(err))
		return appErrors.WrapAs(appErrors.ErrStorageWrite, err, "record table is busy, try again")
	}
	defer release()

	if err := s.records.Append(ctx, rec); err != nil {
		log.Error("submission failed", zap.String("stage", "append_record"), zap.Error(err))
		return mapPersistError(err, "failed to append submission record")
	}
	return nil
}

// compensate removes stored documents. It runs detached from the request
// context so a cancelled client does not leave orphans behind.
func (s *IntakeService) compensate(log *zap.Logger, stored []models.StoredDocument) {
	if len(stored) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for i := len(stored) - 1; i >= 0; i-- {
		doc := stored[i]
		if err := s.documents.Remove(ctx, doc); err != nil {
			log.Error("compensation failed, orphan document left", zap.String("ref", doc.Ref), zap.Error(err))
			continue
		}
		log.Info("compensation removed document", zap.String("kind", string(doc.Kind)), zap.String("ref", doc.Ref))
	}
}

func (s *IntakeService) observe(procedure, outcome string) {
	if s.metrics == nil {
		return
	}
	if _, ok := models.ParseProcess(procedure); !ok {
		procedure = "unknown"
	}
	s.metrics.ObserveSubmission(procedure, outcome)
}

// mapPersistError translates backend failures into the API taxonomy.
func mapPersistError(err error, message string) error {
	switch {
	case errors.Is(err, retry.ErrAuth):
		return appErrors.WrapAs(appErrors.ErrRemoteAuth, err, "")
	case errors.Is(err, repository.ErrHeaderMismatch):
		return appErrors.WrapAs(appErrors.ErrSchemaMismatch, err, "")
	default:
		return appErrors.WrapAs(appErrors.ErrStorageWrite, err, message)
	}
}

func shortSubmissionID(id string) string {
	compact := strings.ReplaceAll(id, "-", "")
	if len(compact) > 8 {
		return compact[:8]
	}
	return compact
}
