package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"visitordash/internal/config"
	"visitordash/internal/database"
	"visitordash/internal/database/repository"
	"visitordash/internal/logging"
	"visitordash/internal/models"
	"visitordash/internal/service"
	"visitordash/internal/ui"
	"visitordash/processing/tracker"
)

// env is what every command needs: configuration, a logger and the
// migrated database.
type env struct {
	cfg *config.Config
	log *zap.Logger
	db  *sql.DB

	visits  *repository.VisitRepo
	exports *repository.ExportRepo
}

func (e *env) close() {
	if e.db != nil {
		_ = e.db.Close()
	}
	_ = e.log.Sync()
}

func (e *env) stats() *service.StatsService {
	return &service.StatsService{Visits: e.visits, Exports: e.exports}
}

func (e *env) exporter() *service.ExportService {
	return &service.ExportService{
		Visits:  e.visits,
		Exports: e.exports,
		Dir:     e.cfg.GetExportDir(),
		Log:     e.log,
	}
}

func setup(configPath string) (*env, error) {
	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Log.Debug)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}

	db, err := database.OpenAndMigrate(cfg.Database.Path)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}

	log.Debug("database ready", zap.String("path", cfg.Database.Path))

	return &env{
		cfg:     cfg,
		log:     log,
		db:      db,
		visits:  repository.NewVisitRepo(db),
		exports: repository.NewExportRepo(db),
	}, nil
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "visitordash",
		Short:         "Visitor counting dashboard",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(configPath)
			if err != nil {
				return err
			}
			defer e.close()

			tr := tracker.NewFromConfig(e.cfg, e.log.Named("tracker"))
			defer func() {
				if err := tr.Stop(); err != nil {
					e.log.Error("stop counting script", zap.Error(err))
				}
			}()

			dash := ui.CreateApp(e.cfg, ui.Services{
				Tracker: tr,
				Stats:   e.stats(),
				Export:  e.exporter(),
				Logs:    e.visits,
			}, e.log.Named("ui"))

			dash.Run()
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "path to the configuration file")

	root.AddCommand(
		newStatsCmd(&configPath),
		newExportCmd(&configPath),
		newRecordCmd(&configPath),
	)

	return root
}

func newStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print today's and total visitor counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer e.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			s, err := e.stats().Snapshot(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Visitors today: %d\n", s.VisitorsToday)
			fmt.Fprintf(out, "Total visitors: %d\n", s.TotalVisitors)
			if s.LastExport != nil {
				fmt.Fprintf(out, "Last export:    %s (%s)\n", s.LastExport.ExportedAt.Local().Format("2006-01-02 15:04"), s.LastExport.Path)
			} else {
				fmt.Fprintln(out, "Last export:    None")
			}
			return nil
		},
	}
}

func newExportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export the visitor log to CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer e.close()

			rec, err := e.exporter().Export(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows to %s\n", rec.Rows, rec.Path)
			return nil
		},
	}
}

func newRecordCmd(configPath *string) *cobra.Command {
	var (
		visitor string
		source  string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a visitor sighting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer e.close()

			id, err := e.visits.Record(cmd.Context(), models.Visit{VisitorID: visitor, Source: source})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recorded visit %d for %s\n", id, visitor)
			return nil
		},
	}

	cmd.Flags().StringVar(&visitor, "visitor", "", "visitor id")
	cmd.Flags().StringVar(&source, "source", string(config.SourceVideo), "source that saw the visitor")
	_ = cmd.MarkFlagRequired("visitor")

	return cmd
}
