package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/teg-intake-api/internal/models"
)

// ErrWindowsIncomplete is returned when the store does not hold exactly one
// window per procedure.
var ErrWindowsIncomplete = errors.New("enrollment windows incomplete")

// WindowRepository persists enrollment windows in PostgreSQL.
type WindowRepository struct {
	db *sqlx.DB
}

// NewWindowRepository constructs the repository.
func NewWindowRepository(db *sqlx.DB) *WindowRepository {
	return &WindowRepository{db: db}
}

// EnsureSchema creates the windows table when missing.
func (r *WindowRepository) EnsureSchema(ctx context.Context) error {
	const query = `CREATE TABLE IF NOT EXISTS enrollment_windows (
    process    TEXT PRIMARY KEY,
    active     BOOLEAN NOT NULL DEFAULT FALSE,
    start_date DATE NOT NULL,
    end_date   DATE NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure enrollment_windows: %w", err)
	}
	return nil
}

// Load returns both windows.
func (r *WindowRepository) Load(ctx context.Context) (models.WindowSet, error) {
	const query = `SELECT process, active, start_date, end_date, updated_at
FROM enrollment_windows WHERE process IN ($1, $2)`
	var rows []models.EnrollmentWindow
	if err := r.db.SelectContext(ctx, &rows, query, models.ProcessProject, models.ProcessThesis); err != nil {
		return models.WindowSet{}, fmt.Errorf("load enrollment windows: %w", err)
	}

	var (
		set  models.WindowSet
		seen = map[models.Process]bool{}
	)
	for _, w := range rows {
		set.Set(w)
		seen[w.Process] = true
	}
	if len(seen) != len(models.Processes) {
		return models.WindowSet{}, ErrWindowsIncomplete
	}
	return set.Normalized(), nil
}

// Save replaces both windows within a single transaction.
func (r *WindowRepository) Save(ctx context.Context, set models.WindowSet) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment windows tx: %w", err)
	}
	const query = `INSERT INTO enrollment_windows (process, active, start_date, end_date, updated_at)
VALUES (:process, :active, :start_date, :end_date, :updated_at)
ON CONFLICT (process)
DO UPDATE SET active = EXCLUDED.active, start_date = EXCLUDED.start_date,
              end_date = EXCLUDED.end_date, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for _, w := range set.Normalized().List() {
		w.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, w); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert enrollment window %s: %w", w.Process, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment windows tx: %w", err)
	}
	return nil
}
