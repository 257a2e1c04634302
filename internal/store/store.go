// Package store persists runs and their per-parcel results.
package store

import (
	"context"
	"time"

	"github.com/sells-group/upzone-cli/internal/parcel"
	"github.com/sells-group/upzone-cli/internal/pipeline"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded analysis run.
type Run struct {
	ID        string          `json:"id"`
	Status    RunStatus       `json:"status"`
	Stats     *pipeline.Stats `json:"stats,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ParcelRow is one persisted parcel result. Props carries the full exported
// attribute map; the named fields are the columns the API filters on.
type ParcelRow struct {
	RunID               string         `json:"run_id"`
	ParcelID            int64          `json:"parcel_id"`
	Zoning              string         `json:"zoning,omitempty"`
	TierCode            string         `json:"tz,omitempty"`
	AddedUnitsRealistic float64        `json:"added_units_realistic"`
	Props               map[string]any `json:"props"`
}

// Store defines run/result persistence.
type Store interface {
	CreateRun(ctx context.Context) (*Run, error)
	CompleteRun(ctx context.Context, runID string, stats pipeline.Stats) error
	FailRun(ctx context.Context, runID string, msg string) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	LatestRun(ctx context.Context) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	SaveParcels(ctx context.Context, runID string, parcels []*parcel.Parcel) error
	ParcelRows(ctx context.Context, runID string, limit, offset int) ([]ParcelRow, error)

	Migrate(ctx context.Context) error
	Close() error
}
