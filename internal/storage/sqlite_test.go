package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/hyperjump/folio/internal/models"
)

var _ Ledger = (*SQLiteLedger)(nil)

func openLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	store, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "nested", "builds.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteLedger_recordAndRead(t *testing.T) {
	store := openLedger(t)
	ctx := context.Background()

	last, err := store.LastBuild(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last != nil {
		t.Fatalf("empty ledger LastBuild = %+v", last)
	}

	first := &models.BuildReport{
		BuildID:   "b1",
		StartedAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Duration:  120,
		Pages:     []string{"index.html", "feed.xml"},
		Assets:    1,
		Warnings:  2,
	}
	second := &models.BuildReport{
		BuildID:   "b2",
		StartedAt: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
		Duration:  80,
		Pages:     []string{"index.html"},
		Removed:   []string{"feed.xml"},
	}
	for _, r := range []*models.BuildReport{first, second} {
		if err := store.RecordBuild(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	last, err = store.LastBuild(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last.ID != "b2" || last.Pages != 1 || last.Removed != 1 || last.Duration != 80 {
		t.Errorf("LastBuild = %+v", last)
	}
	if !last.StartedAt.Equal(second.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", last.StartedAt, second.StartedAt)
	}

	n, err := store.CountBuilds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("CountBuilds = %d, want 2", n)
	}

	list, err := store.ListBuilds(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "b2" || list[1].ID != "b1" {
		t.Errorf("ListBuilds = %+v", list)
	}
	if list[1].Warnings != 2 || list[1].Assets != 1 {
		t.Errorf("first build = %+v", list[1])
	}

	files, err := store.BuildFiles(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(files, []string{"feed.xml", "index.html"}) {
		t.Errorf("BuildFiles = %v", files)
	}
}

func TestSQLiteLedger_duplicateIDFails(t *testing.T) {
	store := openLedger(t)
	ctx := context.Background()
	r := &models.BuildReport{BuildID: "dup", StartedAt: time.Now(), Pages: []string{"a.html"}}
	if err := store.RecordBuild(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordBuild(ctx, r); err == nil {
		t.Fatal("expected error for duplicate build id")
	}
	n, err := store.CountBuilds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountBuilds = %d, want 1", n)
	}
}

func TestSQLiteLedger_reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "builds.db")
	store, err := NewSQLiteLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := store.RecordBuild(ctx, &models.BuildReport{BuildID: "keep", StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	store, err = NewSQLiteLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	last, err := store.LastBuild(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last == nil || last.ID != "keep" {
		t.Errorf("LastBuild after reopen = %+v", last)
	}
}
