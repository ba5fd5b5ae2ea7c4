package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/turtacn/DrugEx/internal/domain/run"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// pgxQuerier is the slice of *pgxpool.Pool the sample repository needs.
type pgxQuerier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var sampleColumns = []string{"run_id", "epoch", "smiles", "score", "valid"}

// SampleRepository stores generated molecules with COPY, which keeps a
// batch-sized insert per epoch cheap.
type SampleRepository struct {
	pool   pgxQuerier
	logger logging.Logger
}

// NewSampleRepository accepts a *pgxpool.Pool.
func NewSampleRepository(pool pgxQuerier, logger logging.Logger) *SampleRepository {
	return &SampleRepository{pool: pool, logger: logger}
}

var _ run.SampleRepository = (*SampleRepository)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// SaveSamples: bulk insert via pgx.CopyFrom
// ─────────────────────────────────────────────────────────────────────────────

// SaveSamples copies samples into generated_samples and returns the row count.
func (r *SampleRepository) SaveSamples(ctx context.Context, samples []run.Sample) (int64, error) {
	if len(samples) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(samples))
	for _, s := range samples {
		if s.RunID == "" {
			return 0, errors.New(errors.ErrCodeValidation, "sample run id is required")
		}
		rows = append(rows, []any{s.RunID, int32(s.Epoch), s.SMILES, s.Score, s.Valid})
	}

	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{"generated_samples"}, sampleColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to copy samples")
	}
	r.logger.Debug("Samples copied",
		logging.String("run_id", samples[0].RunID),
		logging.Int64("rows", n),
	)
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// TopSamples
// ─────────────────────────────────────────────────────────────────────────────

// TopSamples returns the highest scoring valid molecules of a run.
func (r *SampleRepository) TopSamples(ctx context.Context, runID string, limit int) ([]run.Sample, error) {
	query := `
		SELECT run_id, epoch, smiles, score, valid
		FROM generated_samples
		WHERE run_id = $1 AND valid
		ORDER BY score DESC, epoch ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, runID, run.ClampLimit(limit))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query samples")
	}
	defer rows.Close()

	samples := make([]run.Sample, 0)
	for rows.Next() {
		var (
			s     run.Sample
			epoch int32
		)
		if err := rows.Scan(&s.RunID, &epoch, &s.SMILES, &s.Score, &s.Valid); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan sample")
		}
		s.Epoch = int(epoch)
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate samples")
	}
	return samples, nil
}

//Personal.AI order the ending
