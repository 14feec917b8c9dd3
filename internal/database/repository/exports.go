package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"visitordash/internal/models"
)

const exportedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ExportRepo keeps the history of CSV exports.
type ExportRepo struct {
	db *sql.DB
}

func NewExportRepo(db *sql.DB) *ExportRepo {
	return &ExportRepo{db: db}
}

func (r *ExportRepo) Record(ctx context.Context, e models.ExportRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO exports(id, path, row_count, exported_at) VALUES (?, ?, ?, ?)`,
		e.ID, e.Path, e.Rows, e.ExportedAt.UTC().Format(exportedAtLayout),
	)
	if err != nil {
		return fmt.Errorf("record export: %w", err)
	}
	return nil
}

// Last returns the most recent export, or nil if there has been none.
func (r *ExportRepo) Last(ctx context.Context) (*models.ExportRecord, error) {
	var (
		e  models.ExportRecord
		at string
	)
	err := r.db.QueryRowContext(ctx, `
	SELECT id, path, row_count, exported_at
	FROM exports
	ORDER BY exported_at DESC, rowid DESC
	LIMIT 1`).Scan(&e.ID, &e.Path, &e.Rows, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last export: %w", err)
	}

	e.ExportedAt, err = time.Parse(exportedAtLayout, at)
	if err != nil {
		return nil, fmt.Errorf("last export: bad exported_at %q: %w", at, err)
	}
	return &e, nil
}
