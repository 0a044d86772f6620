package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/teg-intake-api/internal/models"
	"github.com/noah-isme/teg-intake-api/pkg/export"
	"github.com/noah-isme/teg-intake-api/pkg/storage"
)

// ExcelRecordRepository appends submission rows to a local .xlsx workbook.
// Every append rewrites the whole file; callers serialize appends.
type ExcelRecordRepository struct {
	path     string
	exporter *export.XLSXExporter
	logger   *zap.Logger
	now      func() time.Time
}

// NewExcelRecordRepository constructs the repository.
func NewExcelRecordRepository(path string, logger *zap.Logger) *ExcelRecordRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExcelRecordRepository{
		path:     path,
		exporter: export.NewXLSXExporter(export.DefaultSheet),
		logger:   logger,
		now:      time.Now,
	}
}

// Destination identifies the workbook for locking.
func (r *ExcelRecordRepository) Destination() string {
	abs, err := filepath.Abs(r.path)
	if err != nil {
		return "excel:" + r.path
	}
	return "excel:" + abs
}

// Append adds one row in canonical column order. Columns found in an older
// workbook but unknown to the schema are kept after the canonical ones.
func (r *ExcelRecordRepository) Append(_ context.Context, rec models.SubmissionRecord) error {
	table, err := r.read()
	if err != nil {
		return err
	}

	header := unionHeader(models.RecordColumns, table.Headers)
	rows := make([][]string, 0, len(table.Rows)+1)
	for _, row := range table.Rows {
		rows = append(rows, reorderRow(row, table.Headers, header))
	}
	rows = append(rows, reorderRow(rec.Values(), models.RecordColumns, header))

	out, err := r.exporter.Render(export.Dataset{Headers: header, Rows: rows})
	if err != nil {
		return fmt.Errorf("render records workbook: %w", err)
	}
	if err := storage.WriteFileAtomic(r.path, out, 0o644); err != nil {
		return fmt.Errorf("write records workbook: %w", err)
	}
	return nil
}

// Table returns the current content of the workbook.
func (r *ExcelRecordRepository) Table(_ context.Context) (export.Dataset, error) {
	return r.read()
}

// read loads the workbook. A missing file is an empty table; an unreadable
// one is moved aside so that intake can continue on a fresh table.
func (r *ExcelRecordRepository) read() (export.Dataset, error) {
	empty := export.Dataset{Headers: append([]string(nil), models.RecordColumns...)}

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return empty, nil
	}
	if err != nil {
		return export.Dataset{}, fmt.Errorf("read records workbook: %w", err)
	}

	table, err := export.ReadXLSX(bytes.NewReader(data))
	if err == nil && len(table.Headers) > 0 {
		return table, nil
	}
	if err == nil {
		return empty, nil
	}

	backup := fmt.Sprintf("%s.corrupt-%s", r.path, r.now().UTC().Format("20060102T150405"))
	if renameErr := os.Rename(r.path, backup); renameErr != nil {
		return export.Dataset{}, fmt.Errorf("move unreadable workbook aside: %w", errors.Join(err, renameErr))
	}
	r.logger.Warn("records workbook unreadable, starting a fresh table",
		zap.String("path", r.path),
		zap.String("backup", backup),
		zap.Error(err),
	)
	return empty, nil
}

// unionHeader returns canonical followed by the extra columns of existing,
// in their existing order.
func unionHeader(canonical, existing []string) []string {
	header := append([]string(nil), canonical...)
	known := make(map[string]struct{}, len(canonical))
	for _, col := range canonical {
		known[col] = struct{}{}
	}
	for _, col := range existing {
		if col == "" {
			continue
		}
		if _, ok := known[col]; ok {
			continue
		}
		known[col] = struct{}{}
		header = append(header, col)
	}
	return header
}

// reorderRow maps row, laid out by from, onto the to layout.
func reorderRow(row, from, to []string) []string {
	index := make(map[string]int, len(from))
	for i, col := range from {
		if _, dup := index[col]; !dup {
			index[col] = i
		}
	}
	out := make([]string, len(to))
	for i, col := range to {
		if j, ok := index[col]; ok {
			out[i] = export.Cell(row, j)
		}
	}
	return out
}
