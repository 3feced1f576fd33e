// Package models defines the reports produced by builds and photo imports.
package models

import "time"

// BuildReport summarizes one site build.
type BuildReport struct {
	BuildID   string    `json:"build_id"`
	StartedAt time.Time `json:"started_at"`
	// Duration is in milliseconds.
	Duration int64 `json:"duration_ms"`
	// Pages lists every generated file, relative to the output root, with forward slashes.
	Pages []string `json:"pages"`
	// Written counts files whose bytes changed.
	Written   int      `json:"written"`
	Assets    int      `json:"assets"`
	Removed   []string `json:"removed,omitempty"`
	Warnings  int      `json:"warnings"`
	Posts     int      `json:"posts"`
	Projects  int      `json:"projects"`
	Galleries int      `json:"galleries"`
}

// ImportedFile is the outcome for one photo.
type ImportedFile struct {
	Name        string `json:"name"`
	SourceBytes int64  `json:"source_bytes"`
	DestBytes   int64  `json:"dest_bytes"`
	Resized     bool   `json:"resized"`
	Error       string `json:"error,omitempty"`
}

// ImportReport summarizes one photo import.
type ImportReport struct {
	Gallery     string          `json:"gallery"`
	Destination string          `json:"destination"`
	Files       []*ImportedFile `json:"files"`
	Imported    int             `json:"imported"`
	Failed      int             `json:"failed"`
	// Resizer names the external tool, empty when photos were copied unresized.
	Resizer string `json:"resizer,omitempty"`
}

// TotalSourceBytes sums the original sizes of successfully imported files.
func (r *ImportReport) TotalSourceBytes() int64 {
	var n int64
	for _, f := range r.Files {
		if f.Error == "" {
			n += f.SourceBytes
		}
	}
	return n
}

// TotalDestBytes sums the written sizes of successfully imported files.
func (r *ImportReport) TotalDestBytes() int64 {
	var n int64
	for _, f := range r.Files {
		if f.Error == "" {
			n += f.DestBytes
		}
	}
	return n
}

// BuildRecord is a stored summary of a past build.
type BuildRecord struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Duration  int64     `json:"duration_ms"`
	Pages     int       `json:"pages"`
	Assets    int       `json:"assets"`
	Removed   int       `json:"removed"`
	Warnings  int       `json:"warnings"`
}
