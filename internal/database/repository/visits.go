package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"visitordash/internal/models"
)

// SeenAtLayout is how sightings are stored: local wall-clock time, so the
// first ten characters are the calendar day the visitor was counted on.
const SeenAtLayout = "2006-01-02 15:04:05"

// VisitRepo reads and writes visitor sightings.
type VisitRepo struct {
	db *sql.DB
}

func NewVisitRepo(db *sql.DB) *VisitRepo {
	return &VisitRepo{db: db}
}

func (r *VisitRepo) Record(ctx context.Context, v models.Visit) (int64, error) {
	if strings.TrimSpace(v.VisitorID) == "" {
		return 0, fmt.Errorf("record visit: visitor id is required")
	}
	seen := v.SeenAt
	if seen.IsZero() {
		seen = time.Now()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO visits(visitor_id, source, seen_at) VALUES (?, ?, ?)`,
		v.VisitorID, v.Source, seen.In(time.Local).Format(SeenAtLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("record visit: %w", err)
	}
	return res.LastInsertId()
}

// CountDailyUnique returns the number of distinct visitors per day, oldest
// day first.
func (r *VisitRepo) CountDailyUnique(ctx context.Context) ([]models.DailyCount, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT substr(seen_at, 1, 10) AS day, COUNT(DISTINCT visitor_id)
	FROM visits
	GROUP BY day
	ORDER BY day`)
	if err != nil {
		return nil, fmt.Errorf("count daily visitors: %w", err)
	}
	defer rows.Close()

	var out []models.DailyCount
	for rows.Next() {
		var dc models.DailyCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// Search lists sightings newest first.
func (r *VisitRepo) Search(ctx context.Context, f models.LogFilter) ([]models.Visit, error) {
	var (
		where []string
		args  []any
	)
	if f.Date != "" {
		where = append(where, "substr(seen_at, 1, 10) = ?")
		args = append(args, f.Date)
	}
	if f.VisitorID != "" {
		where = append(where, "visitor_id = ?")
		args = append(args, f.VisitorID)
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}

	q := `SELECT id, visitor_id, source, seen_at FROM visits`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY seen_at DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search visits: %w", err)
	}
	defer rows.Close()

	var out []models.Visit
	for rows.Next() {
		var (
			v    models.Visit
			seen string
		)
		if err := rows.Scan(&v.ID, &v.VisitorID, &v.Source, &seen); err != nil {
			return nil, err
		}
		v.SeenAt, err = time.ParseInLocation(SeenAtLayout, seen, time.Local)
		if err != nil {
			return nil, fmt.Errorf("visit %d: bad seen_at %q: %w", v.ID, seen, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
