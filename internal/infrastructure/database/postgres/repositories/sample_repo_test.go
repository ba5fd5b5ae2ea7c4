package repositories

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DrugEx/internal/domain/run"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/DrugEx/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// In-memory pgx fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakePool struct {
	table   pgx.Identifier
	columns []string
	copied  [][]any
	copyErr error

	query     string
	queryArgs []any
	rows      [][]any
	queryErr  error
}

func (p *fakePool) CopyFrom(_ context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	p.table = table
	p.columns = columns
	if p.copyErr != nil {
		return 0, p.copyErr
	}
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return 0, err
		}
		p.copied = append(p.copied, vals)
	}
	return int64(len(p.copied)), src.Err()
}

func (p *fakePool) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	p.query = sql
	p.queryArgs = args
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	return &fakeRows{data: p.rows, pos: -1}, nil
}

type fakeRows struct {
	data [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.pos], nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *int32:
			*p = row[i].(int32)
		case *float64:
			*p = row[i].(float64)
		case *bool:
			*p = row[i].(bool)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestSampleRepository_SaveSamples(t *testing.T) {
	pool := &fakePool{}
	repo := NewSampleRepository(pool, logging.NewNopLogger())

	n, err := repo.SaveSamples(context.Background(), []run.Sample{
		{RunID: "run-1", Epoch: 2, SMILES: "CCO", Score: 0.8, Valid: true},
		{RunID: "run-1", Epoch: 2, SMILES: "C(", Score: 0, Valid: false},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, pgx.Identifier{"generated_samples"}, pool.table)
	assert.Equal(t, []string{"run_id", "epoch", "smiles", "score", "valid"}, pool.columns)
	assert.Equal(t, []any{"run-1", int32(2), "CCO", 0.8, true}, pool.copied[0])
}

func TestSampleRepository_SaveSamples_Empty(t *testing.T) {
	pool := &fakePool{copyErr: errors.New("must not be called")}
	repo := NewSampleRepository(pool, logging.NewNopLogger())

	n, err := repo.SaveSamples(context.Background(), nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, pool.table)
}

func TestSampleRepository_SaveSamples_Errors(t *testing.T) {
	repo := NewSampleRepository(&fakePool{}, logging.NewNopLogger())
	_, err := repo.SaveSamples(context.Background(), []run.Sample{{SMILES: "CCO"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))

	repo = NewSampleRepository(&fakePool{copyErr: errors.New("broken pipe")}, logging.NewNopLogger())
	_, err = repo.SaveSamples(context.Background(), []run.Sample{{RunID: "run-1", SMILES: "CCO"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func TestSampleRepository_TopSamples(t *testing.T) {
	pool := &fakePool{rows: [][]any{
		{"run-1", int32(4), "c1ccccc1O", 0.93, true},
		{"run-1", int32(1), "CCO", 0.71, true},
	}}
	repo := NewSampleRepository(pool, logging.NewNopLogger())

	samples, err := repo.TopSamples(context.Background(), "run-1", 0)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, run.Sample{RunID: "run-1", Epoch: 4, SMILES: "c1ccccc1O", Score: 0.93, Valid: true}, samples[0])
	assert.Equal(t, []any{"run-1", 20}, pool.queryArgs)
	assert.Contains(t, pool.query, "ORDER BY score DESC")
}

func TestSampleRepository_TopSamples_QueryError(t *testing.T) {
	repo := NewSampleRepository(&fakePool{queryErr: errors.New("timeout")}, logging.NewNopLogger())

	_, err := repo.TopSamples(context.Background(), "run-1", 5)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

//Personal.AI order the ending
