package store

import (
	"time"
)

// RunStatus is the lifecycle state of a validation run.
type RunStatus string

const (
	StatusQueued    RunStatus = "queued"
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// Run is one validation of one image definition against one fixture.
type Run struct {
	RunID        string
	TriggerEvent string
	Repo         string
	Ref          string
	PRNumber     int64
	Mission      string
	Status       RunStatus
	Stage        string
	Image        *string
	ArtifactName *string
	ArtifactURL  *string
	Output       *string
	CreatedOn    time.Time
	StartedOn    *time.Time
	EndedOn      *time.Time
}
