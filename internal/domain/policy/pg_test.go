package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DrugEx/internal/testutil"
	"github.com/turtacn/DrugEx/pkg/errors"
)

func TestPGConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     PGConfig
		wantErr bool
	}{
		{"valid", PGConfig{BatchSize: 4, Epsilon: 0.1, Draws: 1}, false},
		{"zero draws", PGConfig{BatchSize: 4}, false},
		{"zero batch", PGConfig{BatchSize: 0}, true},
		{"epsilon above one", PGConfig{BatchSize: 4, Epsilon: 1.5}, true},
		{"negative draws", PGConfig{BatchSize: 4, Draws: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrCodePolicyConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPG_Step(t *testing.T) {
	gen := &fakeGenerator{maxLen: 4, batch: Sequences{
		{3, 4, 0, 0},
		{9, 5, 0, 0},
		{3, 5, 6, 0},
	}}
	env := &fakeEnv{table: map[string]float64{"3-4": 0.8, "9-5": 0.9, "3-5-6": 0.1}}
	explore := &fakeGenerator{maxLen: 4}
	logger := testutil.NewMockLogger()

	pg, err := NewPG(PGConfig{BatchSize: 3, Epsilon: 0.25, Draws: 4, Baseline: 0.1}, &fakeChecker{}, logger)
	require.NoError(t, err)
	assert.Equal(t, "pg", pg.Name())

	res, err := pg.Step(context.Background(), env, gen, explore)
	require.NoError(t, err)

	require.Len(t, gen.sampleReqs, 1)
	req := gen.sampleReqs[0]
	assert.Equal(t, 3, req.N)
	assert.Same(t, explore, req.Explore)
	assert.Equal(t, 0.25, req.Epsilon)
	assert.Equal(t, 4, req.Draws)
	assert.Nil(t, req.Continuation)

	assert.Equal(t, 1, env.calls)
	require.Len(t, gen.updates, 1)
	assert.InDeltaSlice(t, []float64{0.7, -0.1, 0.0}, gen.updates[0], 1e-12)
	assert.Equal(t, 1, gen.steps)

	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, []string{"3-4", "9-5", "3-5-6"}, res.SMILES)
	assert.Equal(t, []bool{true, false, true}, res.Valid)
	assert.InDelta(t, 2.0/3.0, res.ValidRate, 1e-12)
	assert.Equal(t, []float64{0.8, 0.9, 0.1}, res.Scores)
	assert.Len(t, res.Rewards, 3)
	assert.Equal(t, 0.5, res.Loss)
	assert.True(t, logger.HasMessage("debug", "pg step finished"))
}

func TestPG_Step_InvalidAdvantageIsNegativeBaseline(t *testing.T) {
	gen := &fakeGenerator{maxLen: 5, batch: Sequences{{9, 9, 9, 0, 0}}}
	env := &fakeEnv{def: 0.95}

	pg, err := NewPG(PGConfig{BatchSize: 1, Baseline: 0.2}, &fakeChecker{}, nil)
	require.NoError(t, err)

	res, err := pg.Step(context.Background(), env, gen, nil)
	require.NoError(t, err)

	require.Len(t, gen.updates, 1)
	assert.Equal(t, []float64{-0.2}, gen.updates[0])
	assert.Equal(t, []float64{-0.2}, res.Rewards)
	assert.Equal(t, 0.0, res.ValidRate)
}

func TestPG_Step_RewardShapeMismatchIsFatal(t *testing.T) {
	gen := &fakeGenerator{maxLen: 3, batch: Sequences{{3, 0, 0}, {4, 0, 0}}}
	pg, err := NewPG(PGConfig{BatchSize: 2}, &fakeChecker{}, nil)
	require.NoError(t, err)

	_, err = pg.Step(context.Background(), &fakeEnv{short: true}, gen, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodePolicyRewardShape))
	assert.Empty(t, gen.updates)
	assert.Zero(t, gen.steps)
}

func TestPG_Step_WrongBatchFromGenerator(t *testing.T) {
	gen := &fakeGenerator{maxLen: 3, batch: Sequences{{3, 0, 0}}}
	pg, err := NewPG(PGConfig{BatchSize: 2}, &fakeChecker{}, nil)
	require.NoError(t, err)

	_, err = pg.Step(context.Background(), &fakeEnv{}, gen, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodePolicyGeneratorCall))
}

func TestPG_Step_SampleError(t *testing.T) {
	gen := &fakeGenerator{maxLen: 3, sampleErr: errors.New(errors.ErrCodeGeneratorShape, "boom")}
	pg, err := NewPG(PGConfig{BatchSize: 2}, &fakeChecker{}, nil)
	require.NoError(t, err)

	_, err = pg.Step(context.Background(), &fakeEnv{}, gen, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodePolicyGeneratorCall))
}

func TestNewPG_RequiresChecker(t *testing.T) {
	_, err := NewPG(PGConfig{BatchSize: 1}, nil, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodePolicyConfig))
}

func TestRewardShaping_Asymmetry(t *testing.T) {
	scores := []float64{0.9, 0.5}
	valid := []bool{false, true}

	assert.InDeltaSlice(t, []float64{-0.3, 0.2}, shapeWholeSequence(scores, valid, 0.3), 1e-12)
	assert.InDeltaSlice(t, []float64{-0.3, 0.2}, shapeRollout(scores, valid, 0.3), 1e-12)
	assert.Equal(t, []float64{0.9, 0.5}, scores)
}

//Personal.AI order the ending
