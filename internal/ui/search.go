package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"visitordash/internal/config"
	"visitordash/internal/models"
	"visitordash/internal/ui/cwidget"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"
)

const (
	searchLimit  = 500
	allSourceOpt = "All"
)

var searchColumns = [...]string{"ID", "Visitor", "Source", "Seen at"}

type searchView struct {
	logs LogSearcher
	log  *zap.Logger
	win  fyne.Window

	dateInput    *cwidget.Input[string]
	visitorEntry *widget.Entry
	sourceSelect *widget.Select
	summary      *widget.Label
	table        *widget.Table

	results []models.Visit
	// seq numbers searches so a slow earlier query cannot overwrite a newer
	// one. UI goroutine only.
	seq uint64
}

func (a *DashboardApp) openSearchWindow() {
	w := a.fyneApp.NewWindow("Search Logs")
	w.Resize(fyne.NewSize(760, 480))

	v := newSearchView(a.svc.Logs, a.log, w)
	w.SetContent(v.layout())
	w.Show()

	go v.runSearch()
}

func newSearchView(logs LogSearcher, log *zap.Logger, w fyne.Window) *searchView {
	v := &searchView{logs: logs, log: log, win: w}

	v.dateInput = cwidget.NewDateInput("Date", "YYYY-MM-DD", nil)
	v.dateInput.OnSubmitted = func(string) { go v.runSearch() }

	v.visitorEntry = widget.NewEntry()
	v.visitorEntry.SetPlaceHolder("Visitor ID")
	v.visitorEntry.OnSubmitted = func(string) { go v.runSearch() }

	options := append([]string{allSourceOpt}, config.SourcesList[:]...)
	v.sourceSelect = widget.NewSelect(options, nil)
	v.sourceSelect.SetSelected(allSourceOpt)

	v.summary = widget.NewLabel("")

	v.table = widget.NewTableWithHeaders(
		func() (int, int) { return len(v.results), len(searchColumns) },
		func() fyne.CanvasObject { return widget.NewLabel("2026-01-01 00:00:00") },
		func(id widget.TableCellID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(v.cell(id.Row, id.Col))
		},
	)
	v.table.ShowHeaderColumn = false
	v.table.CreateHeader = func() fyne.CanvasObject {
		return widget.NewLabelWithStyle("Seen at", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	}
	v.table.UpdateHeader = func(id widget.TableCellID, o fyne.CanvasObject) {
		if id.Col >= 0 && id.Col < len(searchColumns) {
			o.(*widget.Label).SetText(searchColumns[id.Col])
		}
	}
	v.table.SetColumnWidth(0, 70)
	v.table.SetColumnWidth(1, 220)
	v.table.SetColumnWidth(2, 140)
	v.table.SetColumnWidth(3, 200)

	return v
}

func (v *searchView) layout() fyne.CanvasObject {
	searchBtn := widget.NewButtonWithIcon("Search", theme.SearchIcon(), func() {
		go v.runSearch()
	})
	searchBtn.Importance = widget.HighImportance

	filters := container.NewGridWithColumns(3,
		v.dateInput,
		container.NewVBox(widget.NewLabelWithStyle("Visitor", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}), v.visitorEntry),
		container.NewVBox(widget.NewLabelWithStyle("Source", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}), v.sourceSelect),
	)

	return container.NewBorder(
		container.NewVBox(filters, container.NewHBox(searchBtn, v.summary), widget.NewSeparator()),
		nil, nil, nil,
		v.table,
	)
}

func (v *searchView) filter() models.LogFilter {
	f := models.LogFilter{
		Date:      v.dateInput.Value(),
		VisitorID: strings.TrimSpace(v.visitorEntry.Text),
		Limit:     searchLimit,
	}
	if src := v.sourceSelect.Selected; src != "" && src != allSourceOpt {
		f.Source = src
	}
	return f
}

func (v *searchView) runSearch() {
	var (
		f     models.LogFilter
		seq   uint64
		valid bool
	)
	fyne.DoAndWait(func() {
		if valid = v.dateInput.Valid(); !valid {
			return
		}
		f = v.filter()
		v.seq++
		seq = v.seq
	})
	if !valid {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	visits, err := v.logs.Search(ctx, f)

	fyne.Do(func() {
		v.finishSearch(seq, visits, err)
	})
}

func (v *searchView) finishSearch(seq uint64, visits []models.Visit, err error) {
	if seq != v.seq {
		v.log.Debug("dropping stale search results", zap.Uint64("seq", seq), zap.Uint64("latest", v.seq))
		return
	}
	if err != nil {
		v.log.Error("search logs", zap.Error(err))
		dialog.ShowError(err, v.win)
		return
	}
	v.showResults(visits)
}

func (v *searchView) showResults(visits []models.Visit) {
	v.results = visits

	switch n := len(visits); {
	case n == 0:
		v.summary.SetText("No matching visits")
	case n >= searchLimit:
		v.summary.SetText(fmt.Sprintf("Showing the latest %d visits", n))
	default:
		v.summary.SetText(fmt.Sprintf("%d visits", n))
	}

	v.table.Refresh()
}

func (v *searchView) cell(row, col int) string {
	if row < 0 || row >= len(v.results) {
		return ""
	}
	r := v.results[row]

	switch col {
	case 0:
		return strconv.FormatInt(r.ID, 10)
	case 1:
		return r.VisitorID
	case 2:
		return r.Source
	case 3:
		return r.SeenAt.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}
