package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/noah-isme/teg-intake-api/internal/models"
	appErrors "github.com/noah-isme/teg-intake-api/pkg/errors"
	"github.com/noah-isme/teg-intake-api/pkg/storage"
)

const receiptDateLayout = "02/01/2006 15:04"

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ReceiptSummary carries what the acknowledgement prints.
type ReceiptSummary struct {
	SubmissionID string
	RegisteredAt time.Time
	Procedure    models.Process
	Modality     models.Modality
	Title        string
	Author1      models.Person
	Author2      models.Person
}

// ReceiptConfig tunes receipt links and retention.
type ReceiptConfig struct {
	APIPrefix       string
	CleanupInterval time.Duration
}

// StoredReceipt is a persisted receipt with its signed download link.
type StoredReceipt struct {
	RelativePath string
	URL          string
	ExpiresAt    time.Time
}

// ReceiptDownload is an opened receipt ready to stream.
type ReceiptDownload struct {
	File      *os.File
	Filename  string
	ExpiresAt time.Time
}

// ReceiptService renders, stores and serves submission receipts.
type ReceiptService struct {
	storage fileStorage
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ReceiptConfig
}

// NewReceiptService constructs a ReceiptService.
func NewReceiptService(files fileStorage, signer *storage.SignedURLSigner, cfg ReceiptConfig, logger *zap.Logger) *ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptService{storage: files, signer: signer, logger: logger, cfg: cfg}
}

// Generate renders the one-page receipt. Output only varies with the summary.
func (s *ReceiptService) Generate(summary ReceiptSummary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetCreationDate(summary.RegisteredAt)
	pdf.SetCatalogSort(true)
	pdf.SetCompression(false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr("CONSTANCIA DE RECEPCION"), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 11)
	line := func(text string) {
		pdf.MultiCell(0, 7, tr(text), "", "L", false)
	}
	line("Fecha: " + summary.RegisteredAt.Format(receiptDateLayout))
	line("Trámite: " + string(summary.Procedure))
	line("Título: " + summary.Title)
	pdf.Ln(3)
	line("Autores:")
	line(fmt.Sprintf("- %s (%s)", summary.Author1.Name, summary.Author1.NationalID))
	if summary.Modality == models.ModalityPaired {
		line(fmt.Sprintf("- %s (%s)", summary.Author2.Name, summary.Author2.NationalID))
	}
	pdf.Ln(6)
	line("Recaudos digitales recibidos satisfactoriamente.")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

// Store persists a rendered receipt and signs a download link for it.
func (s *ReceiptService) Store(summary ReceiptSummary, content []byte) (*StoredReceipt, error) {
	filename := fmt.Sprintf("%s_%s", summary.SubmissionID, ReceiptFilename(summary.Author1.NationalID))
	relPath, err := s.storage.Save(filename, content)
	if err != nil {
		return nil, fmt.Errorf("save receipt: %w", err)
	}
	token, expiresAt, err := s.signer.Generate(summary.SubmissionID, relPath)
	if err != nil {
		_ = s.storage.Delete(relPath)
		return nil, fmt.Errorf("sign receipt: %w", err)
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &StoredReceipt{
		RelativePath: relPath,
		URL:          fmt.Sprintf("%s/receipts/%s", prefix, token),
		ExpiresAt:    expiresAt,
	}, nil
}

// ResolveDownload validates a token and opens the receipt it names.
func (s *ReceiptService) ResolveDownload(token string) (*ReceiptDownload, error) {
	submissionID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open receipt")
	}
	return &ReceiptDownload{
		File:      file,
		Filename:  strings.TrimPrefix(filepath.Base(relPath), submissionID+"_"),
		ExpiresAt: expiresAt,
	}, nil
}

// StartCleanup boots a goroutine that purges receipts past the link TTL.
func (s *ReceiptService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired()
			}
		}
	}()
}

func (s *ReceiptService) cleanupExpired() {
	deleted, err := s.storage.CleanupOlderThan(s.signer.TTL())
	if err != nil {
		s.logger.Sugar().Warnw("receipt cleanup failed", "error", err)
		return
	}
	if len(deleted) > 0 {
		s.logger.Sugar().Infow("expired receipts purged", "count", len(deleted))
	}
}

// ReceiptFilename is the name students download the receipt under.
func ReceiptFilename(nationalID string) string {
	return fmt.Sprintf("Constancia_%s.pdf", sanitizeName(nationalID))
}
