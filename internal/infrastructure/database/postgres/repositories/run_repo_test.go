package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/DrugEx/internal/domain/run"
	"github.com/turtacn/DrugEx/internal/infrastructure/database/postgres"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/DrugEx/pkg/errors"
)

var runColumns = []string{
	"id", "name", "strategy", "epsilon", "baseline", "batch_size", "mc", "draws", "epochs", "seed",
	"status", "best_score", "best_epoch", "error", "started_at", "finished_at",
}

var epochColumns = []string{
	"run_id", "epoch", "strategy", "valid_rate", "unique_rate", "mean_reward", "mean_score", "loss",
	"rollout_calls", "duration_ms", "checkpointed", "created_at",
}

type RunRepoTestSuite struct {
	suite.Suite
	mock sqlmock.Sqlmock
	db   *sql.DB
	repo run.RunRepository
}

func (s *RunRepoTestSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	s.Require().NoError(err)

	logger := logging.NewNopLogger()
	s.repo = NewPostgresRunRepo(postgres.NewConnectionWithDB(s.db, logger), logger)
}

func (s *RunRepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *RunRepoTestSuite) newRun() *run.Run {
	return &run.Run{
		ID:        "e_0.10_0.1_4x2-abc",
		Name:      "e_0.10_0.1_4x2",
		Strategy:  "rollout",
		Epsilon:   0.1,
		Baseline:  0.1,
		BatchSize: 4,
		MC:        2,
		Draws:     1,
		Epochs:    10,
		Seed:      7,
	}
}

func (s *RunRepoTestSuite) TestCreateRun_Success() {
	rn := s.newRun()
	s.mock.ExpectExec("INSERT INTO training_runs").
		WithArgs(rn.ID, rn.Name, "rollout", 0.1, 0.1, 4, 2, 1, 10, int64(7), "running", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.Require().NoError(s.repo.CreateRun(context.Background(), rn))
	s.Equal(run.StatusRunning, rn.Status)
	s.False(rn.StartedAt.IsZero())
}

func (s *RunRepoTestSuite) TestCreateRun_Invalid() {
	rn := s.newRun()
	rn.Strategy = ""

	err := s.repo.CreateRun(context.Background(), rn)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func (s *RunRepoTestSuite) TestCreateRun_DBError() {
	s.mock.ExpectExec("INSERT INTO training_runs").WillReturnError(errors.New("connection reset"))

	err := s.repo.CreateRun(context.Background(), s.newRun())
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func (s *RunRepoTestSuite) TestFinishRun_Success() {
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	rn := s.newRun()
	rn.BestScore = 0.82
	rn.BestEpoch = 6
	rn.Finish(run.StatusCompleted, at, nil)

	s.mock.ExpectExec("UPDATE training_runs").
		WithArgs(rn.ID, "completed", 0.82, 6, "", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.FinishRun(context.Background(), rn))
}

func (s *RunRepoTestSuite) TestFinishRun_NotFound() {
	rn := s.newRun()
	rn.Finish(run.StatusInterrupted, time.Now(), nil)

	s.mock.ExpectExec("UPDATE training_runs").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.repo.FinishRun(context.Background(), rn)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeRunNotFound))
}

func (s *RunRepoTestSuite) TestFinishRun_RejectsRunningStatus() {
	rn := s.newRun()
	rn.Status = run.StatusRunning

	err := s.repo.FinishRun(context.Background(), rn)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func (s *RunRepoTestSuite) TestGetRun_Found() {
	started := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	finished := started.Add(time.Hour)
	s.mock.ExpectQuery("SELECT id, name, .* FROM training_runs WHERE id = \\$1").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(runColumns).AddRow(
			"run-1", "e_0.10_0.1_4x2", "pg", 0.1, 0.1, 4, 2, 1, 10, int64(1),
			"completed", 0.9, 3, "", started, finished,
		))

	rn, err := s.repo.GetRun(context.Background(), "run-1")
	s.Require().NoError(err)
	s.Equal("pg", rn.Strategy)
	s.Equal(run.StatusCompleted, rn.Status)
	s.Equal(uint64(1), rn.Seed)
	s.Equal(3, rn.BestEpoch)
	s.Require().NotNil(rn.FinishedAt)
	s.Equal(finished, *rn.FinishedAt)
}

func (s *RunRepoTestSuite) TestGetRun_StillRunning() {
	s.mock.ExpectQuery("SELECT id, name, .* FROM training_runs").
		WillReturnRows(sqlmock.NewRows(runColumns).AddRow(
			"run-2", "n", "rollout", 0.1, 0.1, 4, 2, 1, 10, int64(1),
			"running", 0.0, 0, "", time.Now(), nil,
		))

	rn, err := s.repo.GetRun(context.Background(), "run-2")
	s.Require().NoError(err)
	s.Nil(rn.FinishedAt)
}

func (s *RunRepoTestSuite) TestGetRun_NotFound() {
	s.mock.ExpectQuery("SELECT id, name, .* FROM training_runs").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	rn, err := s.repo.GetRun(context.Background(), "missing")
	s.Nil(rn)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeRunNotFound))
}

func (s *RunRepoTestSuite) TestRecordEpoch_Upserts() {
	e := &run.Epoch{
		RunID:        "run-1",
		Epoch:        3,
		Strategy:     "rollout",
		ValidRate:    0.75,
		UniqueRate:   0.5,
		MeanReward:   0.2,
		MeanScore:    0.4,
		Loss:         -1.5,
		RolloutCalls: 12,
		Duration:     1500 * time.Millisecond,
		Checkpointed: true,
	}
	s.mock.ExpectExec("INSERT INTO training_epochs .* ON CONFLICT \\(run_id, epoch\\) DO UPDATE").
		WithArgs("run-1", 3, "rollout", 0.75, 0.5, 0.2, 0.4, -1.5, 12, int64(1500), true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.RecordEpoch(context.Background(), e))
	s.False(e.CreatedAt.IsZero())
}

func (s *RunRepoTestSuite) TestRecordEpoch_Validation() {
	err := s.repo.RecordEpoch(context.Background(), &run.Epoch{Epoch: 1})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))

	err = s.repo.RecordEpoch(context.Background(), &run.Epoch{RunID: "run-1"})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func (s *RunRepoTestSuite) TestListEpochs() {
	created := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	s.mock.ExpectQuery("SELECT run_id, epoch, .* FROM training_epochs").
		WithArgs("run-1", 20, 0).
		WillReturnRows(sqlmock.NewRows(epochColumns).
			AddRow("run-1", 1, "pg", 0.5, 0.5, 0.1, 0.2, 0.3, 0, int64(250), false, created).
			AddRow("run-1", 2, "pg", 0.6, 0.4, 0.2, 0.3, 0.1, 0, int64(300), true, created))

	epochs, err := s.repo.ListEpochs(context.Background(), "run-1", 0, -5)
	s.Require().NoError(err)
	s.Require().Len(epochs, 2)
	s.Equal(250*time.Millisecond, epochs[0].Duration)
	s.True(epochs[1].Checkpointed)
	s.Equal(2, epochs[1].Epoch)
}

func (s *RunRepoTestSuite) TestListEpochs_Empty() {
	s.mock.ExpectQuery("SELECT run_id, epoch, .* FROM training_epochs").
		WillReturnRows(sqlmock.NewRows(epochColumns))

	epochs, err := s.repo.ListEpochs(context.Background(), "run-1", 10, 0)
	s.NoError(err)
	s.NotNil(epochs)
	s.Empty(epochs)
}

func (s *RunRepoTestSuite) TestListEpochs_QueryError() {
	s.mock.ExpectQuery("SELECT run_id, epoch").WillReturnError(errors.New("timeout"))

	_, err := s.repo.ListEpochs(context.Background(), "run-1", 10, 0)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func TestRunRepoTestSuite(t *testing.T) {
	suite.Run(t, new(RunRepoTestSuite))
}

//Personal.AI order the ending
