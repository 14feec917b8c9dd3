package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"visitordash/internal/config"
	"visitordash/internal/models"
	"visitordash/processing/tracker"
)

type fakeTracker struct {
	mu       sync.Mutex
	state    tracker.State
	started  []tracker.Script
	stops    int
	startErr error
	onChange func(tracker.State)
}

func (f *fakeTracker) Start(s tracker.Script) error {
	f.mu.Lock()
	if f.startErr != nil {
		f.mu.Unlock()
		return f.startErr
	}
	if f.state == tracker.Running {
		f.mu.Unlock()
		return tracker.ErrAlreadyRunning
	}
	f.started = append(f.started, s)
	f.state = tracker.Running
	fn := f.onChange
	f.mu.Unlock()

	fn(tracker.Running)
	return nil
}

func (f *fakeTracker) Stop() error {
	f.mu.Lock()
	f.stops++
	if f.state != tracker.Running {
		f.mu.Unlock()
		return nil
	}
	f.state = tracker.Stopped
	fn := f.onChange
	f.mu.Unlock()

	fn(tracker.Stopped)
	return nil
}

// exit simulates the script finishing on its own.
func (f *fakeTracker) exit() {
	f.mu.Lock()
	f.state = tracker.Idle
	fn := f.onChange
	f.mu.Unlock()

	fn(tracker.Idle)
}

func (f *fakeTracker) State() tracker.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTracker) SetOnStateChange(fn func(tracker.State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onChange = fn
}

type fakeStats struct {
	stats models.Stats
	err   error
	calls int
}

func (f *fakeStats) Snapshot(context.Context) (models.Stats, error) {
	f.calls++
	return f.stats, f.err
}

type fakeExporter struct {
	rec models.ExportRecord
	err error
}

func (f *fakeExporter) Export(context.Context) (models.ExportRecord, error) {
	return f.rec, f.err
}

type fakeSearcher struct {
	filters []models.LogFilter
	visits  []models.Visit
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, filter models.LogFilter) ([]models.Visit, error) {
	f.filters = append(f.filters, filter)
	return f.visits, f.err
}

type fixture struct {
	app      *DashboardApp
	cfgPath  string
	tracker  *fakeTracker
	stats    *fakeStats
	exporter *fakeExporter
	searcher *fakeSearcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		cfgPath:  filepath.Join(t.TempDir(), "config.json"),
		tracker:  &fakeTracker{},
		stats:    &fakeStats{},
		exporter: &fakeExporter{},
		searcher: &fakeSearcher{},
	}
	cfg, err := config.LoadConfigFile(f.cfgPath)
	require.NoError(t, err)

	svc := Services{Tracker: f.tracker, Stats: f.stats, Export: f.exporter, Logs: f.searcher}
	f.app = newDashboard(test.NewTempApp(t), cfg, svc, zaptest.NewLogger(t))

	return f
}

func (f *fixture) requireControls(t *testing.T, status string, startEnabled bool) {
	t.Helper()

	require.Equal(t, status, f.app.statusText.Text)
	require.Equal(t, !startEnabled, f.app.videoBtn.Disabled())
	require.Equal(t, !startEnabled, f.app.webcamBtn.Disabled())
	require.Equal(t, startEnabled, f.app.stopBtn.Disabled())
}

func TestInitialLayout(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, windowTitle, f.app.mainWin.Title())
	f.requireControls(t, "Idle", true)
	require.Equal(t, colorIdle, f.app.statusText.Color)

	require.Equal(t, "0", f.app.todayCard.Value())
	require.Equal(t, "0", f.app.totalCard.Value())
	require.Equal(t, "None", f.app.exportCard.Value())
}

func TestStartAndStopTracking(t *testing.T) {
	f := newFixture(t)

	test.Tap(f.app.videoBtn)
	require.Len(t, f.tracker.started, 1)
	require.Equal(t, "test_multiple_videos.py", f.tracker.started[0].Path)
	f.requireControls(t, "Running", false)
	require.Equal(t, colorRunning, f.app.statusText.Color)

	// disabled while running
	test.Tap(f.app.webcamBtn)
	f.app.StartTracking(config.SourceWebcam)
	require.Len(t, f.tracker.started, 1)

	f.app.StopTracking()
	require.Equal(t, 1, f.tracker.stops)
	f.requireControls(t, "Stopped", true)
	require.Equal(t, colorStopped, f.app.statusText.Color)

	test.Tap(f.app.webcamBtn)
	require.Len(t, f.tracker.started, 2)
	require.Equal(t, "test_webcam_live.py", f.tracker.started[1].Path)
}

func TestNaturalExitReturnsToIdle(t *testing.T) {
	f := newFixture(t)

	test.Tap(f.app.webcamBtn)
	f.requireControls(t, "Running", false)

	f.tracker.exit()
	f.requireControls(t, "Idle", true)
}

func TestStartErrorShowsDialog(t *testing.T) {
	f := newFixture(t)
	f.tracker.startErr = errors.New("exec: \"python3\": executable file not found in $PATH")

	test.Tap(f.app.videoBtn)

	f.requireControls(t, "Idle", true)
	require.NotNil(t, f.app.mainWin.Canvas().Overlays().Top())
}

func TestStartUnconfiguredScriptShowsDialog(t *testing.T) {
	f := newFixture(t)
	f.app.config.SetScript(config.SourceVideo, "")

	test.Tap(f.app.videoBtn)

	require.Empty(t, f.tracker.started)
	require.NotNil(t, f.app.mainWin.Canvas().Overlays().Top())
}

func TestRefreshStats(t *testing.T) {
	f := newFixture(t)
	exported := time.Date(2026, 10, 18, 9, 30, 0, 0, time.Local)
	f.stats.stats = models.Stats{
		VisitorsToday: 3,
		TotalVisitors: 41,
		LastExport:    &models.ExportRecord{ID: "x", ExportedAt: exported},
	}

	f.app.refreshStats()

	require.Equal(t, "3", f.app.todayCard.Value())
	require.Equal(t, "41", f.app.totalCard.Value())
	require.Equal(t, "2026-10-18 09:30", f.app.exportCard.Value())
}

func TestRefreshStatsErrorKeepsCards(t *testing.T) {
	f := newFixture(t)
	f.stats.stats = models.Stats{VisitorsToday: 2, TotalVisitors: 5}
	f.app.refreshStats()

	f.stats.err = errors.New("database is locked")
	f.app.refreshStats()

	require.Equal(t, "2", f.app.todayCard.Value())
	require.Equal(t, "5", f.app.totalCard.Value())
	require.Equal(t, 2, f.stats.calls)
}

func TestExportLogsRefreshesStats(t *testing.T) {
	f := newFixture(t)
	f.exporter.rec = models.ExportRecord{Path: "exports/visitor_logs.csv", Rows: 12, ExportedAt: time.Now()}
	f.stats.stats = models.Stats{TotalVisitors: 12, LastExport: &f.exporter.rec}

	f.app.exportBtn.Disable()
	f.app.exportLogs()

	require.False(t, f.app.exportBtn.Disabled())
	require.Equal(t, 1, f.stats.calls)
	require.Equal(t, "12", f.app.totalCard.Value())
	require.NotEqual(t, "None", f.app.exportCard.Value())
	require.NotNil(t, f.app.mainWin.Canvas().Overlays().Top())
}

func TestExportLogsFailure(t *testing.T) {
	f := newFixture(t)
	f.exporter.err = errors.New("disk full")

	f.app.exportLogs()

	require.Zero(t, f.stats.calls)
	require.Equal(t, "None", f.app.exportCard.Value())
	require.NotNil(t, f.app.mainWin.Canvas().Overlays().Top())
}

func TestFormatLastExport(t *testing.T) {
	require.Equal(t, "None", formatLastExport(nil))

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	require.Equal(t, "2026-01-02 03:04", formatLastExport(&models.ExportRecord{ExportedAt: at}))
}

func TestOnStartedRefreshesStats(t *testing.T) {
	f := newFixture(t)
	f.stats.stats = models.Stats{VisitorsToday: 4, TotalVisitors: 9}

	f.app.onStarted()

	require.Equal(t, 1, f.stats.calls)
	require.Equal(t, "4", f.app.todayCard.Value())
	require.Equal(t, "9", f.app.totalCard.Value())
}

func TestOnCloseStopsScriptAndSavesConfig(t *testing.T) {
	f := newFixture(t)

	test.Tap(f.app.videoBtn)
	require.Equal(t, tracker.Running, f.tracker.State())
	f.app.config.SetScript(config.SourceWebcam, "cam.py")

	// runs on the UI goroutine: the window waits for the script to stop
	f.app.onClose()

	require.Equal(t, 1, f.tracker.stops)
	require.Equal(t, tracker.Stopped, f.tracker.State())

	loaded, err := config.LoadConfigFile(f.cfgPath)
	require.NoError(t, err)
	require.Equal(t, "cam.py", loaded.Script(config.SourceWebcam))
}

func TestOnCloseWhenIdleSavesConfig(t *testing.T) {
	f := newFixture(t)

	f.app.onClose()

	require.Equal(t, tracker.Idle, f.tracker.State())
	_, err := os.Stat(f.cfgPath)
	require.NoError(t, err)
}
