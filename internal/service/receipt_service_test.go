package service

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teg-intake-api/internal/models"
	appErrors "github.com/noah-isme/teg-intake-api/pkg/errors"
	"github.com/noah-isme/teg-intake-api/pkg/storage"
)

func sampleSummary(modality models.Modality) ReceiptSummary {
	return ReceiptSummary{
		SubmissionID: "6f1c2b9e-4a53-4d8e-9b0e-3f1d2c4b5a69",
		RegisteredAt: time.Date(2024, 3, 10, 9, 5, 0, 0, time.UTC),
		Procedure:    models.ProcessProject,
		Modality:     modality,
		Title:        "Rehabilitacion temprana",
		Author1:      models.Person{Name: "Ana Perez", NationalID: "V-12345678"},
		Author2:      models.Person{Name: "Luis Mora", NationalID: "V-87654321"},
	}
}

func newReceiptService(t *testing.T) (*ReceiptService, string) {
	t.Helper()
	dir := t.TempDir()
	files, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("receipt-secret", time.Hour)
	return NewReceiptService(files, signer, ReceiptConfig{APIPrefix: "/api/v1/"}, nil), dir
}

func TestReceiptGenerateContent(t *testing.T) {
	svc, _ := newReceiptService(t)

	individual, err := svc.Generate(sampleSummary(models.ModalityIndividual))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(individual, []byte("%PDF")))
	assert.Contains(t, string(individual), "CONSTANCIA DE RECEPCION")
	assert.Contains(t, string(individual), "10/03/2024 09:05")
	assert.Contains(t, string(individual), "Ana Perez")
	assert.NotContains(t, string(individual), "Luis Mora")
	assert.Contains(t, string(individual), "Recaudos digitales recibidos satisfactoriamente.")

	paired, err := svc.Generate(sampleSummary(models.ModalityPaired))
	require.NoError(t, err)
	assert.Contains(t, string(paired), "Luis Mora")
}

func TestReceiptGenerateIsDeterministic(t *testing.T) {
	svc, _ := newReceiptService(t)
	first, err := svc.Generate(sampleSummary(models.ModalityPaired))
	require.NoError(t, err)
	second, err := svc.Generate(sampleSummary(models.ModalityPaired))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReceiptStoreAndDownload(t *testing.T) {
	svc, dir := newReceiptService(t)
	summary := sampleSummary(models.ModalityIndividual)

	stored, err := svc.Store(summary, []byte("%PDF-receipt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.URL, "/api/v1/receipts/"))
	assert.FileExists(t, filepath.Join(dir, stored.RelativePath))

	token := strings.TrimPrefix(stored.URL, "/api/v1/receipts/")
	download, err := svc.ResolveDownload(token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "Constancia_V-12345678.pdf", download.Filename)
	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-receipt", string(body))
}

func TestReceiptDownloadRejectsBadToken(t *testing.T) {
	svc, _ := newReceiptService(t)
	_, err := svc.ResolveDownload("garbage")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReceiptDownloadMissingFile(t *testing.T) {
	svc, dir := newReceiptService(t)
	stored, err := svc.Store(sampleSummary(models.ModalityIndividual), []byte("x"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, stored.RelativePath)))

	_, err = svc.ResolveDownload(strings.TrimPrefix(stored.URL, "/api/v1/receipts/"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReceiptCleanupRemovesExpired(t *testing.T) {
	svc, dir := newReceiptService(t)
	stored, err := svc.Store(sampleSummary(models.ModalityIndividual), []byte("x"))
	require.NoError(t, err)
	path := filepath.Join(dir, stored.RelativePath)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	svc.cleanupExpired()
	assert.NoFileExists(t, path)
}
