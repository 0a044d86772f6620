package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/teg-intake-api/internal/models"
	"github.com/noah-isme/teg-intake-api/pkg/storage"
)

var windowFileHeader = []string{"Proceso", "Activo", "Inicio", "Fin"}

// WindowFileRepository keeps enrollment windows in a small CSV file that the
// coordination's spreadsheet tooling can still read.
type WindowFileRepository struct {
	path string
}

// NewWindowFileRepository constructs the repository.
func NewWindowFileRepository(path string) *WindowFileRepository {
	return &WindowFileRepository{path: path}
}

// Load parses both windows from the file.
func (r *WindowFileRepository) Load(_ context.Context) (models.WindowSet, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return models.WindowSet{}, fmt.Errorf("read windows file: %w", err)
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return models.WindowSet{}, fmt.Errorf("parse windows file: %w", err)
	}
	if len(records) == 0 {
		return models.WindowSet{}, ErrWindowsIncomplete
	}

	columns, err := headerIndex(records[0])
	if err != nil {
		return models.WindowSet{}, err
	}

	var (
		set  models.WindowSet
		seen = map[models.Process]bool{}
	)
	for i, record := range records[1:] {
		w, err := parseWindowRecord(record, columns)
		if err != nil {
			return models.WindowSet{}, fmt.Errorf("windows file line %d: %w", i+2, err)
		}
		set.Set(w)
		seen[w.Process] = true
	}
	if len(seen) != len(models.Processes) {
		return models.WindowSet{}, ErrWindowsIncomplete
	}
	return set.Normalized(), nil
}

// Save rewrites the whole file through a temp file and rename.
func (r *WindowFileRepository) Save(_ context.Context, set models.WindowSet) error {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(windowFileHeader); err != nil {
		return fmt.Errorf("write windows header: %w", err)
	}
	for _, win := range set.Normalized().List() {
		record := []string{
			string(win.Process),
			formatBool(win.Active),
			win.Start.Format(models.DateLayout),
			win.End.Format(models.DateLayout),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write window %s: %w", win.Process, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush windows file: %w", err)
	}
	if err := storage.WriteFileAtomic(r.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("save windows file: %w", err)
	}
	return nil
}

func headerIndex(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, required := range windowFileHeader {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("windows file missing column %q", required)
		}
	}
	return columns, nil
}

func parseWindowRecord(record []string, columns map[string]int) (models.EnrollmentWindow, error) {
	field := func(name string) string {
		i := columns[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	process, ok := models.ParseProcess(field("Proceso"))
	if !ok {
		return models.EnrollmentWindow{}, fmt.Errorf("unknown process %q", field("Proceso"))
	}
	active, err := strconv.ParseBool(field("Activo"))
	if err != nil {
		return models.EnrollmentWindow{}, fmt.Errorf("invalid Activo: %w", err)
	}
	start, err := parseStoredDate(field("Inicio"))
	if err != nil {
		return models.EnrollmentWindow{}, fmt.Errorf("invalid Inicio: %w", err)
	}
	end, err := parseStoredDate(field("Fin"))
	if err != nil {
		return models.EnrollmentWindow{}, fmt.Errorf("invalid Fin: %w", err)
	}
	return models.EnrollmentWindow{Process: process, Active: active, Start: start, End: end}, nil
}

// parseStoredDate accepts plain dates and the "YYYY-MM-DD HH:MM:SS" form
// written by older tooling.
func parseStoredDate(raw string) (t time.Time, err error) {
	if len(raw) > len(models.DateLayout) {
		raw = raw[:len(models.DateLayout)]
	}
	if raw == "" {
		return t, errors.New("empty date")
	}
	return models.ParseDate(raw)
}

func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
