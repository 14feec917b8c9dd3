package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"visitordash/internal/database/repository"
	"visitordash/internal/models"
)

var exportHeader = []string{"id", "visitor_id", "source", "seen_at"}

// maxNameAttempts bounds the _N suffixes tried when exports share a second.
const maxNameAttempts = 100

// ExportService dumps the visitor log to a CSV file.
type ExportService struct {
	Visits  *repository.VisitRepo
	Exports *repository.ExportRepo
	Dir     string
	Log     *zap.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *ExportService) Export(ctx context.Context) (models.ExportRecord, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	started := now()

	visits, err := s.Visits.Search(ctx, models.LogFilter{})
	if err != nil {
		return models.ExportRecord{}, err
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return models.ExportRecord{}, fmt.Errorf("mkdir export dir: %w", err)
	}

	f, path, err := createExportFile(s.Dir, "visitor_logs_"+started.Format("20060102_150405"))
	if err != nil {
		return models.ExportRecord{}, err
	}
	if err := writeVisitsCSV(f, visits); err != nil {
		_ = os.Remove(path)
		return models.ExportRecord{}, err
	}

	rec := models.ExportRecord{
		ID:         uuid.NewString(),
		Path:       path,
		Rows:       len(visits),
		ExportedAt: started,
	}
	if err := s.Exports.Record(ctx, rec); err != nil {
		_ = os.Remove(path)
		return models.ExportRecord{}, err
	}

	if s.Log != nil {
		s.Log.Info("visitor logs exported",
			zap.String("path", path),
			zap.Int("rows", rec.Rows),
			zap.String("export_id", rec.ID))
	}
	return rec, nil
}

// createExportFile creates base.csv in dir, or base_1.csv, base_2.csv, ...
// when an earlier export in the same second already took the name. Existing
// files are never truncated.
func createExportFile(dir, base string) (*os.File, string, error) {
	for i := 0; i < maxNameAttempts; i++ {
		name := base + ".csv"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.csv", base, i)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("create export file: %w", err)
		}
		return f, path, nil
	}
	return nil, "", fmt.Errorf("create export file: %s.csv and %d suffixed names exist", base, maxNameAttempts-1)
}

func writeVisitsCSV(f *os.File, visits []models.Visit) error {
	w := csv.NewWriter(f)
	if err := w.Write(exportHeader); err != nil {
		_ = f.Close()
		return fmt.Errorf("write export header: %w", err)
	}

	// oldest first, the way the scripts appended them
	for i := len(visits) - 1; i >= 0; i-- {
		v := visits[i]
		row := []string{
			strconv.FormatInt(v.ID, 10),
			v.VisitorID,
			v.Source,
			v.SeenAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			_ = f.Close()
			return fmt.Errorf("write export row %d: %w", v.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush export: %w", err)
	}
	return f.Close()
}
