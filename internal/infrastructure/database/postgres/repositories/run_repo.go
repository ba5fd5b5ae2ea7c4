package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/turtacn/DrugEx/internal/domain/run"
	"github.com/turtacn/DrugEx/internal/infrastructure/database/postgres"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// RunRepository
// ─────────────────────────────────────────────────────────────────────────────

type postgresRunRepo struct {
	baseRepo
}

// NewPostgresRunRepo returns the database/sql implementation of
// run.RunRepository.
func NewPostgresRunRepo(conn *postgres.Connection, log logging.Logger) run.RunRepository {
	return &postgresRunRepo{
		baseRepo: baseRepo{conn: conn, log: log},
	}
}

// CreateRun inserts the run.  Creating an existing id is a no-op so a
// redelivered start event is harmless.
func (r *postgresRunRepo) CreateRun(ctx context.Context, rn *run.Run) error {
	if err := rn.Validate(); err != nil {
		return err
	}
	if rn.Status == "" {
		rn.Status = run.StatusRunning
	}
	if rn.StartedAt.IsZero() {
		rn.StartedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO training_runs (
			id, name, strategy, epsilon, baseline, batch_size, mc, draws, epochs, seed, status, started_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.executor().ExecContext(ctx, query,
		rn.ID, rn.Name, rn.Strategy, rn.Epsilon, rn.Baseline, rn.BatchSize, rn.MC, rn.Draws, rn.Epochs,
		int64(rn.Seed), string(rn.Status), rn.StartedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create run")
	}
	r.log.Debug("Run created", logging.String("run_id", rn.ID))
	return nil
}

// FinishRun stores the terminal state and the best score of the run.
func (r *postgresRunRepo) FinishRun(ctx context.Context, rn *run.Run) error {
	if rn == nil || rn.ID == "" {
		return errors.New(errors.ErrCodeValidation, "run id is required")
	}
	if !rn.Status.IsTerminal() {
		return errors.Newf(errors.ErrCodeValidation, "run status %q is not terminal", rn.Status)
	}
	finishedAt := time.Now().UTC()
	if rn.FinishedAt != nil {
		finishedAt = *rn.FinishedAt
	}

	query := `
		UPDATE training_runs
		SET status = $2, best_score = $3, best_epoch = $4, error = $5, finished_at = $6
		WHERE id = $1
	`
	res, err := r.executor().ExecContext(ctx, query,
		rn.ID, string(rn.Status), rn.BestScore, rn.BestEpoch, rn.Error, finishedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to finish run")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to finish run")
	}
	if n == 0 {
		return errors.New(errors.ErrCodeRunNotFound, "run not found").WithDetail(rn.ID)
	}
	return nil
}

// GetRun loads one run.
func (r *postgresRunRepo) GetRun(ctx context.Context, id string) (*run.Run, error) {
	query := `
		SELECT id, name, strategy, epsilon, baseline, batch_size, mc, draws, epochs, seed,
			status, best_score, best_epoch, error, started_at, finished_at
		FROM training_runs WHERE id = $1
	`
	rn, err := scanRun(r.executor().QueryRowContext(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeRunNotFound, "run not found").WithDetail(id)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get run")
	}
	return rn, nil
}

// RecordEpoch upserts the summary of one epoch.
func (r *postgresRunRepo) RecordEpoch(ctx context.Context, e *run.Epoch) error {
	if e == nil || e.RunID == "" {
		return errors.New(errors.ErrCodeValidation, "epoch run id is required")
	}
	if e.Epoch < 1 {
		return errors.Newf(errors.ErrCodeValidation, "epoch number must be >= 1, got %d", e.Epoch)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO training_epochs (
			run_id, epoch, strategy, valid_rate, unique_rate, mean_reward, mean_score, loss,
			rollout_calls, duration_ms, checkpointed, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (run_id, epoch) DO UPDATE SET
			valid_rate = EXCLUDED.valid_rate,
			unique_rate = EXCLUDED.unique_rate,
			mean_reward = EXCLUDED.mean_reward,
			mean_score = EXCLUDED.mean_score,
			loss = EXCLUDED.loss,
			rollout_calls = EXCLUDED.rollout_calls,
			duration_ms = EXCLUDED.duration_ms,
			checkpointed = EXCLUDED.checkpointed
	`
	_, err := r.executor().ExecContext(ctx, query,
		e.RunID, e.Epoch, e.Strategy, e.ValidRate, e.UniqueRate, e.MeanReward, e.MeanScore, e.Loss,
		e.RolloutCalls, e.Duration.Milliseconds(), e.Checkpointed, e.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to record epoch")
	}
	return nil
}

// ListEpochs pages through a run's epochs in order.
func (r *postgresRunRepo) ListEpochs(ctx context.Context, runID string, limit, offset int) ([]*run.Epoch, error) {
	if offset < 0 {
		offset = 0
	}
	query := `
		SELECT run_id, epoch, strategy, valid_rate, unique_rate, mean_reward, mean_score, loss,
			rollout_calls, duration_ms, checkpointed, created_at
		FROM training_epochs
		WHERE run_id = $1
		ORDER BY epoch ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.executor().QueryContext(ctx, query, runID, run.ClampLimit(limit), offset)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list epochs")
	}
	defer rows.Close()

	epochs := make([]*run.Epoch, 0)
	for rows.Next() {
		e, err := scanEpoch(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan epoch")
		}
		epochs = append(epochs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate epochs")
	}
	return epochs, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanners
// ─────────────────────────────────────────────────────────────────────────────

func scanRun(row scanner) (*run.Run, error) {
	var (
		rn         run.Run
		seed       int64
		status     string
		finishedAt sql.NullTime
	)
	err := row.Scan(
		&rn.ID, &rn.Name, &rn.Strategy, &rn.Epsilon, &rn.Baseline, &rn.BatchSize, &rn.MC, &rn.Draws, &rn.Epochs, &seed,
		&status, &rn.BestScore, &rn.BestEpoch, &rn.Error, &rn.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}
	rn.Seed = uint64(seed)
	rn.Status = run.Status(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		rn.FinishedAt = &t
	}
	return &rn, nil
}

func scanEpoch(row scanner) (*run.Epoch, error) {
	var (
		e          run.Epoch
		durationMS int64
	)
	err := row.Scan(
		&e.RunID, &e.Epoch, &e.Strategy, &e.ValidRate, &e.UniqueRate, &e.MeanReward, &e.MeanScore, &e.Loss,
		&e.RolloutCalls, &durationMS, &e.Checkpointed, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Duration = time.Duration(durationMS) * time.Millisecond
	return &e, nil
}

//Personal.AI order the ending
