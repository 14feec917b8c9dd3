package ui

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"time"

	"visitordash/internal/config"
	"visitordash/internal/models"
	"visitordash/internal/ui/cwidget"
	"visitordash/processing/tracker"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"
)

const (
	appID       = "io.visitordash.dashboard"
	windowTitle = "Visitor Counting Dashboard"
	footerText  = "Visitor Counting v1.0"

	queryTimeout  = 10 * time.Second
	exportTimeout = time.Minute
)

type Tracker interface {
	Start(tracker.Script) error
	Stop() error
	State() tracker.State
	SetOnStateChange(func(tracker.State))
}

type StatsProvider interface {
	Snapshot(ctx context.Context) (models.Stats, error)
}

type Exporter interface {
	Export(ctx context.Context) (models.ExportRecord, error)
}

type LogSearcher interface {
	Search(ctx context.Context, f models.LogFilter) ([]models.Visit, error)
}

// Services are the collaborators behind the dashboard buttons.
type Services struct {
	Tracker Tracker
	Stats   StatsProvider
	Export  Exporter
	Logs    LogSearcher
}

type DashboardApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config *config.Config
	svc    Services
	log    *zap.Logger

	statusText *canvas.Text

	videoBtn  *widget.Button
	webcamBtn *widget.Button
	stopBtn   *widget.Button
	exportBtn *widget.Button

	todayCard  *cwidget.StatCard
	totalCard  *cwidget.StatCard
	exportCard *cwidget.StatCard
}

func CreateApp(cfg *config.Config, svc Services, log *zap.Logger) *DashboardApp {
	return newDashboard(app.NewWithID(appID), cfg, svc, log)
}

func newDashboard(a fyne.App, cfg *config.Config, svc Services, log *zap.Logger) *DashboardApp {
	if log == nil {
		log = zap.NewNop()
	}

	w := a.NewWindow(windowTitle)
	w.Resize(fyne.NewSize(1080, 640))
	w.SetFixedSize(true)

	d := &DashboardApp{
		fyneApp: a,
		mainWin: w,
		config:  cfg,
		svc:     svc,
		log:     log,
	}
	d.buildUI()

	svc.Tracker.SetOnStateChange(func(s tracker.State) {
		fyne.Do(func() {
			d.applyState(s)
		})
	})

	return d
}

func (a *DashboardApp) Run() {
	a.fyneApp.Lifecycle().SetOnStarted(func() {
		go a.onStarted()
	})
	a.mainWin.SetCloseIntercept(a.onClose)

	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

func (a *DashboardApp) onStarted() {
	a.log.Debug("dashboard started")
	a.refreshStats()
}

// onClose stops a running script and saves the config before the window
// goes away. Stop blocks the UI for up to the stop timeout.
func (a *DashboardApp) onClose() {
	if err := a.svc.Tracker.Stop(); err != nil {
		a.log.Error("stop counting script on close", zap.Error(err))
	}
	if err := a.config.SaveByDefault(); err != nil {
		a.log.Warn("save config", zap.Error(err))
	}
	a.mainWin.Close()
}

func (a *DashboardApp) buildUI() {
	a.statusText = canvas.NewText("", colorIdle)
	a.statusText.TextSize = 16
	a.statusText.TextStyle = fyne.TextStyle{Bold: true}

	title := canvas.NewText("Visitor Counting System", color.White)
	title.TextSize = 24
	title.TextStyle = fyne.TextStyle{Bold: true}

	header := container.NewStack(
		sizedRect(colorHeader, 70),
		container.NewPadded(container.NewHBox(
			container.NewCenter(title),
			layout.NewSpacer(),
			container.NewCenter(a.statusText),
		)),
	)

	a.videoBtn = widget.NewButtonWithIcon("Play Video", theme.MediaPlayIcon(), func() {
		a.StartTracking(config.SourceVideo)
	})
	a.videoBtn.Importance = widget.HighImportance

	a.webcamBtn = widget.NewButtonWithIcon("Live stream Webcam", theme.MediaVideoIcon(), func() {
		a.StartTracking(config.SourceWebcam)
	})
	a.webcamBtn.Importance = widget.SuccessImportance

	a.stopBtn = widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), func() {
		go a.StopTracking()
	})
	a.stopBtn.Importance = widget.DangerImportance

	a.exportBtn = widget.NewButtonWithIcon("Export Logs", theme.DocumentSaveIcon(), func() {
		a.exportBtn.Disable()
		go a.exportLogs()
	})
	a.exportBtn.Importance = widget.WarningImportance

	searchBtn := widget.NewButtonWithIcon("Search Logs", theme.SearchIcon(), a.openSearchWindow)

	menuTitle := canvas.NewText("Dashboard Menu", colorMenuTitle)
	menuTitle.TextSize = 16
	menuTitle.TextStyle = fyne.TextStyle{Bold: true}
	menuTitle.Alignment = fyne.TextAlignCenter

	sidebar := container.NewStack(
		canvas.NewRectangle(color.White),
		container.NewPadded(container.NewVBox(
			menuTitle,
			widget.NewSeparator(),
			a.videoBtn,
			a.webcamBtn,
			a.stopBtn,
			a.exportBtn,
			searchBtn,
		)),
	)

	a.todayCard = cwidget.NewStatCard("Visitors Today", "0", colorCardToday)
	a.totalCard = cwidget.NewStatCard("Total Visitors", "0", colorCardTotal)
	a.exportCard = cwidget.NewStatCard("Last Export", "None", colorCardExport)

	refreshBtn := widget.NewButtonWithIcon("Refresh Stats", theme.ViewRefreshIcon(), func() {
		go a.refreshStats()
	})

	mainPanel := container.NewStack(
		canvas.NewRectangle(colorPanel),
		container.NewPadded(container.NewVBox(
			a.todayCard,
			a.totalCard,
			a.exportCard,
			refreshBtn,
		)),
	)

	split := container.NewHSplit(
		container.NewPadded(sidebar),
		container.NewPadded(mainPanel),
	)
	split.SetOffset(0.25)

	footer := canvas.NewText(footerText, colorFooterText)
	footer.Alignment = fyne.TextAlignCenter
	footer.TextSize = 11

	content := container.NewBorder(
		header,
		container.NewStack(sizedRect(colorHeader, 24), container.NewCenter(footer)),
		nil, nil,
		container.NewStack(canvas.NewRectangle(colorBackground), split),
	)

	a.mainWin.SetContent(content)
	a.applyState(a.svc.Tracker.State())
}

// StartTracking launches the counting script for source. It is ignored while
// a script is running.
func (a *DashboardApp) StartTracking(source config.SourceType) {
	if a.svc.Tracker.State() == tracker.Running {
		return
	}

	script, err := tracker.ScriptFor(a.config, source)
	if err != nil {
		dialog.ShowError(err, a.mainWin)
		return
	}

	if err := a.svc.Tracker.Start(script); err != nil {
		if errors.Is(err, tracker.ErrAlreadyRunning) {
			return
		}
		a.log.Error("start counting script", zap.String("source", string(source)), zap.Error(err))
		dialog.ShowError(err, a.mainWin)
	}
}

func (a *DashboardApp) StopTracking() {
	if err := a.svc.Tracker.Stop(); err != nil {
		a.log.Error("stop counting script", zap.Error(err))
		fyne.Do(func() {
			dialog.ShowError(err, a.mainWin)
		})
	}
}

func (a *DashboardApp) applyState(s tracker.State) {
	a.statusText.Text = s.String()
	switch s {
	case tracker.Running:
		a.statusText.Color = colorRunning
		a.videoBtn.Disable()
		a.webcamBtn.Disable()
		a.stopBtn.Enable()
	case tracker.Stopped:
		a.statusText.Color = colorStopped
		a.videoBtn.Enable()
		a.webcamBtn.Enable()
		a.stopBtn.Disable()
	default:
		a.statusText.Color = colorIdle
		a.videoBtn.Enable()
		a.webcamBtn.Enable()
		a.stopBtn.Disable()
	}
	a.statusText.Refresh()
}

func (a *DashboardApp) refreshStats() {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	stats, err := a.svc.Stats.Snapshot(ctx)
	if err != nil {
		a.log.Error("refresh stats", zap.Error(err))
		return
	}

	fyne.Do(func() {
		a.showStats(stats)
	})
}

func (a *DashboardApp) showStats(s models.Stats) {
	a.todayCard.SetValue(strconv.Itoa(s.VisitorsToday))
	a.totalCard.SetValue(strconv.Itoa(s.TotalVisitors))
	a.exportCard.SetValue(formatLastExport(s.LastExport))
}

func (a *DashboardApp) exportLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
	defer cancel()

	rec, err := a.svc.Export.Export(ctx)

	fyne.Do(func() {
		a.exportBtn.Enable()
		if err != nil {
			a.log.Error("export logs", zap.Error(err))
			dialog.ShowError(fmt.Errorf("export failed: %w", err), a.mainWin)
			return
		}
		dialog.ShowInformation("Exported",
			fmt.Sprintf("CSV logs exported successfully!\n%s (%d rows)", rec.Path, rec.Rows),
			a.mainWin)
	})

	if err == nil {
		a.refreshStats()
	}
}

func formatLastExport(rec *models.ExportRecord) string {
	if rec == nil {
		return "None"
	}
	return rec.ExportedAt.Local().Format("2006-01-02 15:04")
}

func sizedRect(c color.Color, height float32) *canvas.Rectangle {
	r := canvas.NewRectangle(c)
	r.SetMinSize(fyne.NewSize(0, height))
	return r
}
