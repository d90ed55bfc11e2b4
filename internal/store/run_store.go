package store

import (
	"context"
	"time"
)

// RunStore persists validation run records.
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) error
	ReadRunByID(ctx context.Context, id string) (*Run, error)
	ReadLatestRuns(ctx context.Context, limit int) ([]Run, error)
	UpdateRunStage(ctx context.Context, id, stage string, startedOn *time.Time) error
	UpdateRunImage(ctx context.Context, id, image string) error
	CompleteRun(ctx context.Context, id string, status RunStatus, stage string, output, artifactName, artifactURL *string, endedOn time.Time) error
}
