package domain

import (
	"context"
	"time"
)

// RunRepository defines persistence for cleaning runs.
type RunRepository interface {
	Create(ctx context.Context, run *Run) error
	GetByID(ctx context.Context, id string) (*Run, error)
	// ClaimNext atomically claims the oldest idle run that is not parked
	// waiting on a video access grant, moving it to the processing phase.
	// ErrNotFound is returned when nothing is claimable.
	ClaimNext(ctx context.Context) (*Run, error)
	SaveProgress(ctx context.Context, id string, phase Phase, message string, percent int, errMsg, resultAssetID string) error
	// ParkAwaitingAccess moves a run back to idle with the access-requested
	// flag set so the claim loop skips it until access is granted.
	ParkAwaitingAccess(ctx context.Context, id, message string) error
	ReleaseParked(ctx context.Context) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]Run, error)
	ListUnsettled(ctx context.Context, since time.Time) ([]Run, error)
	// SweepFinished deletes terminal runs older than the cutoff and returns
	// the storage keys of every artifact they owned.
	SweepFinished(ctx context.Context, before time.Time) ([]string, error)
}

// AssetRepository defines persistence for run artifacts.
type AssetRepository interface {
	Create(ctx context.Context, asset *Asset) error
	GetByID(ctx context.Context, id string) (*Asset, error)
	ListByRun(ctx context.Context, runID string) ([]Asset, error)
}
