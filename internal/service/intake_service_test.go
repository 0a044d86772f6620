package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teg-intake-api/internal/models"
	"github.com/noah-isme/teg-intake-api/internal/repository"
	appErrors "github.com/noah-isme/teg-intake-api/pkg/errors"
	"github.com/noah-isme/teg-intake-api/pkg/lock"
	"github.com/noah-isme/teg-intake-api/pkg/retry"
)

type stubProcedures struct {
	open []models.Process
}

func (s stubProcedures) AvailableProcedures(context.Context) []models.Process { return s.open }
func (s stubProcedures) Programs() []string                                   { return []string{"Fisioterapia", "Terapia Ocupacional"} }

type memorySink struct {
	mu      sync.Mutex
	rows    []models.SubmissionRecord
	failErr error
}

func (m *memorySink) Destination() string { return "memory" }

func (m *memorySink) Append(_ context.Context, rec models.SubmissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.rows = append(m.rows, rec)
	return nil
}

type memoryDocs struct {
	stored  map[string]models.StoredDocument
	names   []string
	removed []string
	failOn  models.DocumentKind
	failErr error
}

func newMemoryDocs() *memoryDocs {
	return &memoryDocs{stored: map[string]models.StoredDocument{}}
}

func (m *memoryDocs) Store(_ context.Context, kind models.DocumentKind, name string, _ []byte) (models.StoredDocument, error) {
	if kind == m.failOn && m.failErr != nil {
		return models.StoredDocument{}, m.failErr
	}
	doc := models.StoredDocument{ID: name, Kind: kind, Ref: "/docs/" + name}
	m.stored[name] = doc
	m.names = append(m.names, name)
	return doc, nil
}

func (m *memoryDocs) Remove(_ context.Context, doc models.StoredDocument) error {
	delete(m.stored, doc.ID)
	m.removed = append(m.removed, doc.ID)
	return nil
}

type spyAssembler struct {
	inner *DossierService
	pages []DossierPage
	last  *Dossier
}

func (s *spyAssembler) Assemble(ctx context.Context, pages []DossierPage) (*Dossier, error) {
	s.pages = pages
	d, err := s.inner.Assemble(ctx, pages)
	s.last = d
	return d, err
}

type stubReceipts struct {
	storeErr error
	summary  ReceiptSummary
}

func (s *stubReceipts) Generate(summary ReceiptSummary) ([]byte, error) {
	s.summary = summary
	return []byte("%PDF-receipt"), nil
}

func (s *stubReceipts) Store(summary ReceiptSummary, _ []byte) (*StoredReceipt, error) {
	if s.storeErr != nil {
		return nil, s.storeErr
	}
	return &StoredReceipt{
		RelativePath: summary.SubmissionID + ".pdf",
		URL:          "/api/v1/receipts/token-" + summary.SubmissionID,
		ExpiresAt:    summary.RegisteredAt.Add(time.Hour),
	}, nil
}

type countingMetrics struct {
	outcomes []string
	pages    []int
}

func (c *countingMetrics) ObserveSubmission(procedure, outcome string) {
	c.outcomes = append(c.outcomes, procedure+":"+outcome)
}

func (c *countingMetrics) ObserveDossierPages(pages int) {
	c.pages = append(c.pages, pages)
}

type intakeFixture struct {
	svc       *IntakeService
	sink      *memorySink
	docs      *memoryDocs
	assembler *spyAssembler
	receipts  *stubReceipts
	metrics   *countingMetrics
}

func newIntakeFixture(open ...models.Process) *intakeFixture {
	f := &intakeFixture{
		sink:      &memorySink{},
		docs:      newMemoryDocs(),
		assembler: &spyAssembler{inner: NewDossierService(nil)},
		receipts:  &stubReceipts{},
		metrics:   &countingMetrics{},
	}
	f.svc = NewIntakeService(stubProcedures{open: open}, f.sink, f.docs, f.assembler, f.receipts, nil, f.metrics,
		IntakeConfig{Location: time.UTC, MaxFileSize: 1 << 20}, nil)
	f.svc.now = func() time.Time { return time.Date(2024, 3, 10, 9, 5, 0, 0, time.UTC) }
	f.svc.newID = func() string { return "0a1b2c3d-4e5f-6789-abcd-ef0123456789" }
	return f
}

func baseSubmission(t *testing.T) IntakeSubmission {
	return IntakeSubmission{
		Procedure:     "Proyecto",
		Program:       "fisioterapia",
		Modality:      "Individual",
		Title:         "  Rehabilitación temprana ",
		ResearchLine:  "Neurología",
		Author1:       models.Person{NationalID: "V-12345678", Name: "Ana Pérez", Email: "ana@example.com", Phone: "0414"},
		Author2:       models.Person{NationalID: "V-999", Name: "No Aplica"},
		Tutor:         models.Person{NationalID: "V-555", Name: "Dr. Tutor", Email: "tutor@example.com", Phone: "0212"},
		Author1Form:   pngFile(t, "planilla.png", 20, 30, false),
		Author1IDCopy: jpegFile(t, "cedula.JPG"),
		TutorLetter:   pngFile(t, "carta.png", 20, 30, false),
		Author2Form:   pngFile(t, "a2.png", 20, 30, false),
		FitnessLetter: pngFile(t, "apto.png", 20, 30, false),
		FinalDocument: &models.UploadedFile{Name: "tesis.docx", Content: []byte("docx")},
	}
}

func TestIntakeSubmitRejectsWhenClosed(t *testing.T) {
	f := newIntakeFixture()
	_, err := f.svc.Submit(context.Background(), baseSubmission(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrEnrollmentClosed))
	assert.Empty(t, f.docs.names)
	assert.Empty(t, f.sink.rows)
	assert.Nil(t, f.assembler.pages)
	assert.Equal(t, []string{"Proyecto:closed"}, f.metrics.outcomes)
}

func TestIntakeEnsureOpen(t *testing.T) {
	closed := newIntakeFixture()
	require.ErrorIs(t, closed.svc.EnsureOpen(context.Background()), appErrors.ErrEnrollmentClosed)
	assert.Equal(t, []string{"unknown:closed"}, closed.metrics.outcomes)

	open := newIntakeFixture(models.ProcessThesis)
	require.NoError(t, open.svc.EnsureOpen(context.Background()))
	assert.Empty(t, open.metrics.outcomes)
}

func TestIntakeSubmitAggregatesValidationErrors(t *testing.T) {
	f := newIntakeFixture(models.ProcessProject)
	sub := baseSubmission(t)
	sub.Title = "   "
	sub.Author1.NationalID = ""
	sub.Program = "Medicina"
	sub.FinalDocument = nil
	sub.Author1Form = &models.UploadedFile{Name: "planilla.gif", Content: []byte("GIF89a")}
	sub.Author1AcademicRecord = &models.UploadedFile{Name: "record.docx", Content: []byte("x")}

	_, err := f.svc.Submit(context.Background(), sub)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	fields := make([]string, 0, len(appErr.Details))
	for _, d := range appErr.Details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"programa", "titulo", "autor1_cedula", "documento_final", "autor1_planilla", "autor1_record_academico"}, fields)
	assert.Empty(t, f.docs.names)
	assert.Empty(t, f.sink.rows)
	assert.Nil(t, f.assembler.pages)
}

func TestIntakeSubmitRejectsUnavailableProcedure(t *testing.T) {
	f := newIntakeFixture(models.ProcessProject)
	sub := baseSubmission(t)
	sub.Procedure = "TEG"

	_, err := f.svc.Submit(context.Background(), sub)
	require.Error(t, err)
	require.Len(t, appErrors.FromError(err).Details, 1)
	assert.Equal(t, "tramite", appErrors.FromError(err).Details[0].Field)
}

func TestIntakeSubmitRejectsOversizedUpload(t *testing.T) {
	f := newIntakeFixture(models.ProcessProject)
	sub := baseSubmission(t)
	sub.FinalDocument = &models.UploadedFile{Name: "tesis.doc", Content: make([]byte, 2<<20)}

	_, err := f.svc.Submit(context.Background(), sub)
	require.Error(t, err)
	assert.Equal(t, "documento_final", appErrors.FromError(err).Details[0].Field)
}

func TestIntakeSubmitIndividualDropsSecondAuthor(t *testing.T) {
	f := newIntakeFixture(models.ProcessProject, models.ProcessThesis)

	resp, err := f.svc.Submit(context.Background(), baseSubmission(t))
	require.NoError(t, err)

	require.Len(t, f.sink.rows, 1)
	row := f.sink.rows[0]
	assert.Equal(t, models.Person{}, row.Author2)
	assert.Equal(t, "Fisioterapia", row.Program)
	assert.Equal(t, "Rehabilitación temprana", row.Title)
	assert.Equal(t, "V-555", row.Tutor.NationalID)

	// Proyecto never carries the fitness letter; Individual never carries A2.
	assert.Equal(t, []string{SlotAuthor1Form, SlotAuthor1ID, SlotTutorLetter}, f.assembler.last.Sources)
	assert.Len(t, f.assembler.pages, 6)

	assert.Equal(t, "0a1b2c3d-4e5f-6789-abcd-ef0123456789", resp.ID)
	assert.Equal(t, "2024-03-10 09:05", resp.RegisteredAt)
	assert.Equal(t, 3, resp.DossierPages)
	assert.Equal(t, "/docs/EXP_Proyecto_V-12345678_0a1b2c3d.pdf", resp.DossierRef)
	assert.Equal(t, "/docs/DOC_Proyecto_Fisioterapia_V-12345678_0a1b2c3d.docx", resp.DocumentRef)
	assert.Equal(t, "/api/v1/receipts/token-"+resp.ID, resp.ReceiptURL)
	require.NotNil(t, resp.ReceiptExpiresAt)
	assert.Equal(t, models.Person{}, f.receipts.summary.Author2)
	assert.Equal(t, []string{"Proyecto:accepted"}, f.metrics.outcomes)
	assert.Equal(t, []int{3}, f.metrics.pages)
}

func TestIntakeSubmitPairedThesisPageOrder(t *testing.T) {
	f := newIntakeFixture(models.ProcessThesis)
	sub := baseSubmission(t)
	sub.Procedure = "TEG"
	sub.Modality = "Pareja"
	sub.Author2IDCopy = jpegFile(t, "a2-cedula.jpeg")

	_, err := f.svc.Submit(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, []string{
		SlotAuthor1Form, SlotAuthor1ID, SlotTutorLetter, SlotFitnessLetter, SlotAuthor2Form, SlotAuthor2ID,
	}, f.assembler.last.Sources)
	slots := make([]string, 0, len(f.assembler.pages))
	for _, p := range f.assembler.pages {
		slots = append(slots, p.Slot)
	}
	assert.Equal(t, []string{
		SlotAuthor1Form, SlotAuthor1ID, SlotTutorLetter, SlotTutorID, SlotAuthor1Community, SlotAuthor1CommunityService,
		SlotFitnessLetter, SlotAuthor2Form, SlotAuthor2ID, SlotAuthor2Community, SlotAuthor2CommunityService,
	}, slots)
	assert.Equal(t, "V-999", f.sink.rows[0].Author2.NationalID)
}

func TestIntakeSubmitWithoutImagesUsesMarker(t *testing.T) {
	f := newIntakeFixture(models.ProcessProject)
	sub := baseSubmission(t)
	sub.Author1Form, sub.Author1IDCopy, sub.TutorLetter = nil, nil, nil

	resp, err := f.svc.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, models.NoDossierMarker, resp.DossierRef)
	assert.Equal(t, models.NoDossierMarker, f.sink.rows[0].Values()[16])
	assert.Len(t, f.docs.names, 1)
	assert.Equal(t, 0, resp.DossierPages)
}

func TestIntakeSubmitCompensatesFailedAppend(t *testing.T) {
	f := newIntakeFixture(models.ProcessProject)
	f.sink.failErr = errors.New("disk full")

	_, err := f.svc.Submit(context.Background(), baseSubmission(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStorageWrite))
	assert.Len(t, f.docs.names, 2)
	assert.Empty(t, f.docs.stored)
	assert.Equal(t, []string{f.docs.names[1], f.docs.names[0]}, f.docs.removed)
	assert.Equal(t, []string{"Proyecto:failed"}, f.metrics.outcomes)
}

func TestIntakeSubmitCompensatesDossierAuthFailure(t *testing.T) {
	f := newIntakeFixture(models.ProcessProject)
	f.docs.failOn = models.DocumentKindDossier
	f.docs.failErr = fmt.Errorf("upload: %w", errors.Join(retry.ErrAuth, errors.New("401")))

	_, err := f.svc.Submit(context.Background(), baseSubmission(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrRemoteAuth))
	assert.Empty(t, f.docs.stored)
	require.Len(t, f.docs.removed, 1)
	assert.True(t, strings.HasPrefix(f.docs.removed[0], "DOC_"))
	assert.Empty(t, f.sink.rows)
}

func TestIntakeSubmitSchemaMismatch(t *testing.T) {
	f := newIntakeFixture(models.ProcessProject)
	f.sink.failErr = fmt.Errorf("%w: sheet has [A B]", repository.ErrHeaderMismatch)

	_, err := f.svc.Submit(context.Background(), baseSubmission(t))
	assert.True(t, errors.Is(err, appErrors.ErrSchemaMismatch))
	assert.Empty(t, f.docs.stored)
}

func TestIntakeSubmitReceiptFailureKeepsCommit(t *testing.T) {
	f := newIntakeFixture(models.ProcessProject)
	f.receipts.storeErr = errors.New("read-only")

	resp, err := f.svc.Submit(context.Background(), baseSubmission(t))
	require.NoError(t, err)
	assert.Empty(t, resp.ReceiptURL)
	assert.Nil(t, resp.ReceiptExpiresAt)
	assert.Len(t, f.sink.rows, 1)
	assert.Len(t, f.docs.stored, 2)
}

func TestIntakeSubmitKeepsDocumentsWhenAppendUnconfirmed(t *testing.T) {
	f := newIntakeFixture(models.ProcessProject)
	f.sink.failErr = fmt.Errorf("%w: sheet 'Inscripciones': %w", repository.ErrAppendUnconfirmed, retry.ErrOutcomeUnknown)

	_, err := f.svc.Submit(context.Background(), baseSubmission(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStorageWrite))
	assert.Len(t, f.docs.stored, 2)
	assert.Empty(t, f.docs.removed)
	assert.Equal(t, []string{"Proyecto:failed"}, f.metrics.outcomes)
}

type spyLocker struct {
	docs       *memoryDocs
	storedSeen []int
	released   int
	err        error
}

func (l *spyLocker) Acquire(context.Context, string) (lock.Release, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.storedSeen = append(l.storedSeen, len(l.docs.names))
	return func() { l.released++ }, nil
}

func TestIntakeSubmitLocksOnlyTheAppend(t *testing.T) {
	f := newIntakeFixture(models.ProcessProject)
	spy := &spyLocker{docs: f.docs}
	f.svc.locker = spy

	_, err := f.svc.Submit(context.Background(), baseSubmission(t))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, spy.storedSeen)
	assert.Equal(t, 1, spy.released)
	assert.Len(t, f.sink.rows, 1)
}

func TestIntakeSubmitLockFailureCompensates(t *testing.T) {
	f := newIntakeFixture(models.ProcessProject)
	f.svc.locker = &spyLocker{docs: f.docs, err: lock.ErrNotAcquired}

	_, err := f.svc.Submit(context.Background(), baseSubmission(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStorageWrite))
	assert.Empty(t, f.docs.stored)
	assert.Len(t, f.docs.removed, 2)
	assert.Empty(t, f.sink.rows)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Radiologia_e_Imagenologia", sanitizeName(" Radiología e Imagenología "))
	assert.Equal(t, "V-12_345", sanitizeName("V-12.345"))
	assert.Equal(t, "sin_dato", sanitizeName("***"))
}
