package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"visitordash/internal/database/repository"
	"visitordash/internal/models"
)

// StatsService feeds the summary cards.
type StatsService struct {
	Visits  *repository.VisitRepo
	Exports *repository.ExportRepo

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *StatsService) Snapshot(ctx context.Context) (models.Stats, error) {
	var (
		daily []models.DailyCount
		last  *models.ExportRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		daily, err = s.Visits.CountDailyUnique(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		last, err = s.Exports.Last(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.Stats{}, fmt.Errorf("stats snapshot: %w", err)
	}

	today, total := Summarize(daily, s.now().Format("2006-01-02"))
	return models.Stats{
		VisitorsToday: today,
		TotalVisitors: total,
		LastExport:    last,
	}, nil
}

// Summarize picks today's count out of the per-day counts and adds all of
// them up. Visitors seen on several days are counted once per day.
func Summarize(daily []models.DailyCount, today string) (todayCount, total int) {
	for _, dc := range daily {
		total += dc.Count
		if dc.Date == today {
			todayCount = dc.Count
		}
	}
	return todayCount, total
}

func (s *StatsService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
