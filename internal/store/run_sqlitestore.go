package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// RunSQLiteStore is the sqlite-backed RunStore.
type RunSQLiteStore struct {
	db *sql.DB
}

func NewRunSQLiteStore(db *sql.DB) *RunSQLiteStore {
	return &RunSQLiteStore{db: db}
}

func (store *RunSQLiteStore) CreateRun(ctx context.Context, r *Run) error {
	if r.RunID == "" {
		return fmt.Errorf("run id cannot be empty")
	}
	if r.Status == "" {
		r.Status = StatusQueued
	}
	if r.CreatedOn.IsZero() {
		r.CreatedOn = time.Now().UTC()
	}
	query := `insert into runs (
		run_id,
		trigger_event,
		repo,
		ref,
		pr_number,
		mission,
		status,
		stage,
		created_on
	)
	values ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := store.db.ExecContext(
		ctx, query,
		r.RunID,
		r.TriggerEvent,
		r.Repo,
		r.Ref,
		r.PRNumber,
		r.Mission,
		r.Status,
		r.Stage,
		r.CreatedOn.Format(DBTimestampLayout),
	)
	return err
}

func (store *RunSQLiteStore) ReadRunByID(ctx context.Context, id string) (*Run, error) {
	r := &Run{}
	query := "select * from runs where run_id = $1"
	if err := sqlscan.Get(ctx, store.db, r, query, id); err != nil {
		return nil, err
	}
	return r, nil
}

func (store *RunSQLiteStore) ReadLatestRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	runs := []Run{}
	query := "select * from runs order by created_on desc limit $1"
	if err := sqlscan.Select(ctx, store.db, &runs, query, limit); err != nil {
		return nil, err
	}
	return runs, nil
}

func (store *RunSQLiteStore) UpdateRunStage(ctx context.Context, id, stage string, startedOn *time.Time) error {
	if startedOn != nil {
		query := `update runs
		set status = $1,
			stage = $2,
			started_on = $3
		where run_id = $4`
		_, err := store.db.ExecContext(
			ctx, query,
			StatusRunning,
			stage,
			startedOn.Format(DBTimestampLayout),
			id,
		)
		return err
	}
	query := `update runs
	set status = $1,
		stage = $2
	where run_id = $3`
	_, err := store.db.ExecContext(ctx, query, StatusRunning, stage, id)
	return err
}

func (store *RunSQLiteStore) UpdateRunImage(ctx context.Context, id, image string) error {
	query := `update runs set image = $1 where run_id = $2`
	_, err := store.db.ExecContext(ctx, query, image, id)
	return err
}

func (store *RunSQLiteStore) CompleteRun(
	ctx context.Context,
	id string,
	status RunStatus,
	stage string,
	output, artifactName, artifactURL *string,
	endedOn time.Time,
) error {
	query := `update runs
	set status = $1,
		stage = $2,
		output = $3,
		artifact_name = $4,
		artifact_url = $5,
		ended_on = $6
	where run_id = $7`
	_, err := store.db.ExecContext(
		ctx, query,
		status,
		stage,
		output,
		artifactName,
		artifactURL,
		endedOn.Format(DBTimestampLayout),
		id,
	)
	return err
}
