package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RunSQLiteStoreSuite struct {
	suite.Suite
	db    *sql.DB
	store *RunSQLiteStore
	ctx   context.Context
}

func (s *RunSQLiteStoreSuite) SetupTest() {
	db, err := InitDatabase(filepath.Join(s.T().TempDir(), "runs.db"))
	s.Require().NoError(err)
	s.Require().NoError(RunMigrations(db))
	s.db = db
	s.store = NewRunSQLiteStore(db)
	s.ctx = context.Background()
}

func (s *RunSQLiteStoreSuite) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func (s *RunSQLiteStoreSuite) newRun(id string) *Run {
	return &Run{
		RunID:        id,
		TriggerEvent: "pull_request",
		Repo:         "HERMES-SOC/processing-lambda",
		Ref:          "abc123",
		PRNumber:     7,
		Mission:      "swsoc",
	}
}

func (s *RunSQLiteStoreSuite) TestCreateAndReadRun() {
	s.Require().NoError(s.store.CreateRun(s.ctx, s.newRun("run-1")))

	run, err := s.store.ReadRunByID(s.ctx, "run-1")
	s.Require().NoError(err)
	s.Equal("run-1", run.RunID)
	s.Equal("pull_request", run.TriggerEvent)
	s.Equal(StatusQueued, run.Status)
	s.Equal(int64(7), run.PRNumber)
	s.False(run.CreatedOn.IsZero())
	s.Nil(run.StartedOn)
	s.Nil(run.EndedOn)
	s.Nil(run.Image)
}

func (s *RunSQLiteStoreSuite) TestCreateRunRequiresID() {
	s.Error(s.store.CreateRun(s.ctx, &Run{}))
}

func (s *RunSQLiteStoreSuite) TestCreateRunDuplicateID() {
	s.Require().NoError(s.store.CreateRun(s.ctx, s.newRun("run-1")))
	s.Error(s.store.CreateRun(s.ctx, s.newRun("run-1")))
}

func (s *RunSQLiteStoreSuite) TestReadRunByIDNotFound() {
	_, err := s.store.ReadRunByID(s.ctx, "missing")
	s.Require().Error(err)
	s.ErrorIs(err, sql.ErrNoRows)
}

func (s *RunSQLiteStoreSuite) TestUpdateRunStage() {
	s.Require().NoError(s.store.CreateRun(s.ctx, s.newRun("run-1")))

	startedOn := time.Now().UTC()
	s.Require().NoError(s.store.UpdateRunStage(s.ctx, "run-1", "checkout", &startedOn))

	run, err := s.store.ReadRunByID(s.ctx, "run-1")
	s.Require().NoError(err)
	s.Equal(StatusRunning, run.Status)
	s.Equal("checkout", run.Stage)
	s.Require().NotNil(run.StartedOn)
	s.WithinDuration(startedOn, *run.StartedOn, time.Second)

	s.Require().NoError(s.store.UpdateRunStage(s.ctx, "run-1", "build", nil))
	run, err = s.store.ReadRunByID(s.ctx, "run-1")
	s.Require().NoError(err)
	s.Equal("build", run.Stage)
	s.Require().NotNil(run.StartedOn)
}

func (s *RunSQLiteStoreSuite) TestUpdateRunImage() {
	s.Require().NoError(s.store.CreateRun(s.ctx, s.newRun("run-1")))
	s.Require().NoError(s.store.UpdateRunImage(s.ctx, "run-1", "lambdavet/repo:abc"))

	run, err := s.store.ReadRunByID(s.ctx, "run-1")
	s.Require().NoError(err)
	s.Require().NotNil(run.Image)
	s.Equal("lambdavet/repo:abc", *run.Image)
}

func (s *RunSQLiteStoreSuite) TestCompleteRun() {
	s.Require().NoError(s.store.CreateRun(s.ctx, s.newRun("run-1")))

	output := "validated 3 file(s) from /test_data/"
	artifactName := "processed-files-abc123"
	artifactURL := "https://bucket.s3.amazonaws.com/processed-files-abc123.zip"
	endedOn := time.Now().UTC()
	s.Require().NoError(s.store.CompleteRun(s.ctx, "run-1", StatusSucceeded, "publish", &output, &artifactName, &artifactURL, endedOn))

	run, err := s.store.ReadRunByID(s.ctx, "run-1")
	s.Require().NoError(err)
	s.Equal(StatusSucceeded, run.Status)
	s.Equal("publish", run.Stage)
	s.Require().NotNil(run.Output)
	s.Equal(output, *run.Output)
	s.Require().NotNil(run.ArtifactURL)
	s.Equal(artifactURL, *run.ArtifactURL)
	s.Require().NotNil(run.EndedOn)
	s.WithinDuration(endedOn, *run.EndedOn, time.Second)
}

func (s *RunSQLiteStoreSuite) TestCompleteRunFailureKeepsOutputOnly() {
	s.Require().NoError(s.store.CreateRun(s.ctx, s.newRun("run-1")))

	output := "build failed: step 4/9 errored"
	s.Require().NoError(s.store.CompleteRun(s.ctx, "run-1", StatusFailed, "build", &output, nil, nil, time.Now().UTC()))

	run, err := s.store.ReadRunByID(s.ctx, "run-1")
	s.Require().NoError(err)
	s.Equal(StatusFailed, run.Status)
	s.Require().NotNil(run.Output)
	s.Nil(run.ArtifactName)
	s.Nil(run.ArtifactURL)
}

func (s *RunSQLiteStoreSuite) TestReadLatestRuns() {
	for i, id := range []string{"run-1", "run-2", "run-3"} {
		run := s.newRun(id)
		run.CreatedOn = time.Date(2026, 8, 1, 12, i, 0, 0, time.UTC)
		s.Require().NoError(s.store.CreateRun(s.ctx, run))
	}

	runs, err := s.store.ReadLatestRuns(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(runs, 2)
	s.Equal("run-3", runs[0].RunID)
	s.Equal("run-2", runs[1].RunID)

	all, err := s.store.ReadLatestRuns(s.ctx, 0)
	s.Require().NoError(err)
	s.Len(all, 3)
}

func TestRunSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(RunSQLiteStoreSuite))
}

func TestInitDatabaseCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	db, err := InitDatabase(path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Ping())
}
