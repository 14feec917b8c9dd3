package models

import "time"

// Visit is a single visitor sighting written by a counting script.
type Visit struct {
	ID        int64     `json:"id"`
	VisitorID string    `json:"visitor_id"`
	Source    string    `json:"source"`
	SeenAt    time.Time `json:"seen_at"`
}

type DailyCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

type ExportRecord struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Rows       int       `json:"rows"`
	ExportedAt time.Time `json:"exported_at"`
}

type Stats struct {
	VisitorsToday int
	TotalVisitors int
	LastExport    *ExportRecord
}

// LogFilter narrows a log search. Zero values match everything.
type LogFilter struct {
	Date      string
	VisitorID string
	Source    string
	Limit     int
}
