// Package storage keeps a ledger of past builds.
package storage

import (
	"context"

	"github.com/hyperjump/folio/internal/models"
)

// Ledger records build summaries and the files each build produced.
type Ledger interface {
	RecordBuild(ctx context.Context, report *models.BuildReport) error
	LastBuild(ctx context.Context) (*models.BuildRecord, error)
	ListBuilds(ctx context.Context, limit int) ([]*models.BuildRecord, error)
	BuildFiles(ctx context.Context, id string) ([]string, error)
	CountBuilds(ctx context.Context) (int64, error)
	Close() error
}
