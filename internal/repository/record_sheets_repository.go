package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"google.golang.org/api/sheets/v4"

	"github.com/noah-isme/teg-intake-api/internal/models"
	"github.com/noah-isme/teg-intake-api/pkg/export"
	"github.com/noah-isme/teg-intake-api/pkg/retry"
)

// ErrHeaderMismatch is returned when a remote sheet already carries a header
// different from the record columns.
var ErrHeaderMismatch = errors.New("sheet header does not match record columns")

// ErrAppendUnconfirmed is returned when an append may have been written but
// the table could not be read back to tell. Documents the row points to must
// be kept.
var ErrAppendUnconfirmed = errors.New("record append could not be confirmed")

// recordKeyColumns identify one submission's row. RUTA_TRABAJO carries the
// submission's short id.
var recordKeyColumns = []string{"FECHA_REGISTRO", "AUTOR1_CEDULA", "RUTA_TRABAJO"}

// SheetsRecordRepository appends submission rows to a Google Sheets tab.
type SheetsRecordRepository struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
	runner        *retry.Runner
	logger        *zap.Logger
	sheetReady    atomic.Bool
}

// NewSheetsRecordRepository constructs the repository.
func NewSheetsRecordRepository(svc *sheets.Service, spreadsheetID, sheetName string, runner *retry.Runner, logger *zap.Logger) *SheetsRecordRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = retry.NewRunner(retry.Policy{}, retry.Hooks{}, logger)
	}
	return &SheetsRecordRepository{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		runner:        runner,
		logger:        logger,
	}
}

// Destination identifies the tab for locking.
func (r *SheetsRecordRepository) Destination() string {
	return fmt.Sprintf("sheets:%s:%s", r.spreadsheetID, r.sheetName)
}

// Append writes the header when row 1 is empty, checks it otherwise, and
// appends one row in column order. The append itself is never blindly
// repeated: when its outcome is unknown the tab is read back to find out.
func (r *SheetsRecordRepository) Append(ctx context.Context, rec models.SubmissionRecord) error {
	if err := r.ensureSheet(ctx); err != nil {
		return err
	}
	if err := r.ensureHeader(ctx); err != nil {
		return err
	}

	row := toInterfaces(rec.Values())
	err := r.runner.DoWrite(ctx, "sheets.append", func(ctx context.Context) error {
		_, err := r.svc.Spreadsheets.Values.Append(r.spreadsheetID, r.a1Range("A1"), &sheets.ValueRange{Values: [][]interface{}{row}}).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		return err
	})
	if errors.Is(err, retry.ErrOutcomeUnknown) {
		found, lookupErr := r.containsRecord(ctx, rec)
		if lookupErr != nil {
			return fmt.Errorf("%w: sheet '%s': %w", ErrAppendUnconfirmed, r.sheetName, errors.Join(err, lookupErr))
		}
		if found {
			r.logger.Warn("sheet append reported failure but the row is present", zap.String("sheet", r.sheetName), zap.Error(err))
			return nil
		}
	}
	if err != nil {
		return fmt.Errorf("append row to sheet '%s': %w", r.sheetName, err)
	}
	r.logger.Debug("sheet row appended", zap.String("sheet", r.sheetName))
	return nil
}

// Table returns the whole tab.
func (r *SheetsRecordRepository) Table(ctx context.Context) (export.Dataset, error) {
	var values [][]interface{}
	err := r.runner.Do(ctx, "sheets.get_values", func(ctx context.Context) error {
		resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, r.a1Range("")).Context(ctx).Do()
		if err != nil {
			return err
		}
		values = resp.Values
		return nil
	})
	if err != nil {
		return export.Dataset{}, fmt.Errorf("read sheet '%s': %w", r.sheetName, err)
	}

	data := export.Dataset{Headers: append([]string(nil), models.RecordColumns...)}
	if len(values) == 0 {
		return data, nil
	}
	data.Headers = toStrings(values[0])
	for _, row := range values[1:] {
		data.Rows = append(data.Rows, toStrings(row))
	}
	return data, nil
}

// containsRecord reads the tab back and looks for rec's row.
func (r *SheetsRecordRepository) containsRecord(ctx context.Context, rec models.SubmissionRecord) (bool, error) {
	table, err := r.Table(ctx)
	if err != nil {
		return false, err
	}
	want := rec.Values()
	for _, row := range table.Rows {
		if sameRecord(row, want) {
			return true, nil
		}
	}
	return false, nil
}

func sameRecord(row, want []string) bool {
	for _, column := range recordKeyColumns {
		i := columnIndex(column)
		if i < 0 || i >= len(row) || strings.TrimSpace(row[i]) != want[i] {
			return false
		}
	}
	return true
}

func columnIndex(name string) int {
	for i, column := range models.RecordColumns {
		if column == name {
			return i
		}
	}
	return -1
}

func (r *SheetsRecordRepository) ensureSheet(ctx context.Context) error {
	if r.sheetReady.Load() {
		return nil
	}

	exists, err := r.hasSheet(ctx)
	if err != nil {
		return err
	}

	if !exists {
		r.logger.Info("sheet missing, creating it", zap.String("sheet", r.sheetName))
		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: r.sheetName}},
			}},
		}
		err = r.runner.DoWrite(ctx, "sheets.add_sheet", func(ctx context.Context) error {
			_, err := r.svc.Spreadsheets.BatchUpdate(r.spreadsheetID, req).Context(ctx).Do()
			return err
		})
		if errors.Is(err, retry.ErrOutcomeUnknown) {
			if present, lookupErr := r.hasSheet(ctx); lookupErr == nil && present {
				err = nil
			}
		}
		if err != nil {
			return fmt.Errorf("create sheet '%s': %w", r.sheetName, err)
		}
	}

	r.sheetReady.Store(true)
	return nil
}

func (r *SheetsRecordRepository) hasSheet(ctx context.Context) (bool, error) {
	var exists bool
	err := r.runner.Do(ctx, "sheets.get", func(ctx context.Context) error {
		spreadsheet, err := r.svc.Spreadsheets.Get(r.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
		if err != nil {
			return err
		}
		exists = false
		for _, sheet := range spreadsheet.Sheets {
			if sheet.Properties != nil && sheet.Properties.Title == r.sheetName {
				exists = true
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("get spreadsheet details for '%s': %w", r.spreadsheetID, err)
	}
	return exists, nil
}

func (r *SheetsRecordRepository) ensureHeader(ctx context.Context) error {
	var current []string
	err := r.runner.Do(ctx, "sheets.get_header", func(ctx context.Context) error {
		resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, r.a1Range("1:1")).Context(ctx).Do()
		if err != nil {
			return err
		}
		current = nil
		if len(resp.Values) > 0 {
			current = trimTrailingBlank(toStrings(resp.Values[0]))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("read header of sheet '%s': %w", r.sheetName, err)
	}

	if len(current) > 0 {
		if !equalStrings(current, models.RecordColumns) {
			return fmt.Errorf("%w: sheet '%s' has %v", ErrHeaderMismatch, r.sheetName, current)
		}
		return nil
	}

	header := toInterfaces(models.RecordColumns)
	err = r.runner.Do(ctx, "sheets.set_header", func(ctx context.Context) error {
		_, err := r.svc.Spreadsheets.Values.Update(r.spreadsheetID, r.a1Range("A1"), &sheets.ValueRange{Values: [][]interface{}{header}}).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("set header of sheet '%s': %w", r.sheetName, err)
	}
	r.logger.Info("sheet header written", zap.String("sheet", r.sheetName))
	return nil
}

func (r *SheetsRecordRepository) a1Range(cells string) string {
	quoted := "'" + strings.ReplaceAll(r.sheetName, "'", "''") + "'"
	if cells == "" {
		return quoted
	}
	return quoted + "!" + cells
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func toStrings(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if v != nil {
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

func trimTrailingBlank(values []string) []string {
	end := len(values)
	for end > 0 && strings.TrimSpace(values[end-1]) == "" {
		end--
	}
	return values[:end]
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if strings.TrimSpace(a[i]) != b[i] {
			return false
		}
	}
	return true
}
