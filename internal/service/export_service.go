package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/teg-intake-api/internal/dto"
	appErrors "github.com/noah-isme/teg-intake-api/pkg/errors"
	"github.com/noah-isme/teg-intake-api/pkg/export"
)

// Export formats of the record table.
const (
	ExportFormatXLSX = "xlsx"
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
)

const recordExportBasename = "registros_inscripcion"

type recordTable interface {
	Table(ctx context.Context) (export.Dataset, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// RecordExport is a rendered copy of the record table.
type RecordExport struct {
	Content     []byte
	Filename    string
	ContentType string
	Rows        int
}

// RecordExportService renders the record table for the admin panel.
type RecordExportService struct {
	records   recordTable
	validator *validator.Validate
	csv       csvRenderer
	pdf       pdfRenderer
	xlsx      xlsxRenderer
	logger    *zap.Logger
}

// NewRecordExportService constructs a RecordExportService. Nil renderers fall
// back to the pkg/export defaults.
func NewRecordExportService(records recordTable, validate *validator.Validate, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, xlsx xlsxRenderer) *RecordExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter(export.DefaultSheet)
	}
	return &RecordExportService{
		records:   records,
		validator: validate,
		csv:       csv,
		pdf:       pdf,
		xlsx:      xlsx,
		logger:    logger,
	}
}

// Export reads the current table and renders it. xlsx is the default.
func (s *RecordExportService) Export(ctx context.Context, query dto.RecordExportQuery) (*RecordExport, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be one of xlsx, csv, pdf")
	}
	format := query.Format
	if format == "" {
		format = ExportFormatXLSX
	}

	data, err := s.records.Table(ctx)
	if err != nil {
		return nil, mapPersistError(err, "failed to read record table")
	}
	if len(data.Headers) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no submissions recorded yet")
	}

	out := &RecordExport{Rows: len(data.Rows)}
	switch format {
	case ExportFormatCSV:
		out.Content, err = s.csv.Render(data)
		out.ContentType = "text/csv; charset=utf-8"
	case ExportFormatPDF:
		out.Content, err = s.pdf.Render(data, "Registro de inscripciones")
		out.ContentType = "application/pdf"
	default:
		out.Content, err = s.xlsx.Render(data)
		out.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render record export")
	}
	out.Filename = fmt.Sprintf("%s.%s", recordExportBasename, format)

	s.logger.Info("record table exported", zap.String("format", format), zap.Int("rows", out.Rows))
	return out, nil
}
