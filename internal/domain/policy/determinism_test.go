package policy_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/DrugEx/internal/domain/policy"
	"github.com/turtacn/DrugEx/internal/domain/vocabulary"
	"github.com/turtacn/DrugEx/internal/intelligence/generator"
)

// lengthEnv scores a molecule by its string length.
type lengthEnv struct{}

func (lengthEnv) Score(_ context.Context, smiles []string) ([]float64, error) {
	out := make([]float64, len(smiles))
	for i, s := range smiles {
		out[i] = float64(len(s)) / 10
	}
	return out, nil
}

func newAgent(t *testing.T, voc *vocabulary.Vocabulary, seed uint64) *generator.Model {
	t.Helper()
	cfg := generator.DefaultConfig()
	cfg.EmbeddingDim = 8
	m, err := generator.New(voc, cfg, rand.New(rand.NewPCG(seed, seed+1)), nil)
	require.NoError(t, err)
	return m
}

func TestRollout_DeterministicForSeed(t *testing.T) {
	voc, err := vocabulary.Build(10, "CCO", "c1ccccc1", "CC(=O)N")
	require.NoError(t, err)
	checker := vocabulary.NewSequenceChecker(voc)

	run := func() *policy.StepResult {
		ro, err := policy.NewRollout(policy.RolloutConfig{BatchSize: 6, Repeats: 1, Epsilon: 0.2, Baseline: 0.1}, checker, nil)
		require.NoError(t, err)
		agent := newAgent(t, voc, 11)
		explore := newAgent(t, voc, 12)
		res, err := ro.Step(context.Background(), lengthEnv{}, agent, explore)
		require.NoError(t, err)
		return res
	}

	a, b := run(), run()
	require.NotNil(t, a.TokenRewards)
	assert.True(t, mat.Equal(a.TokenRewards, b.TokenRewards))
	assert.Equal(t, a.Sequences, b.Sequences)
	assert.Equal(t, a.RolloutCalls, b.RolloutCalls)
	assert.Len(t, a.Rewards, 6)
}

func TestPG_DeterministicForSeed(t *testing.T) {
	voc, err := vocabulary.Build(10, "CCO", "CN")
	require.NoError(t, err)
	checker := vocabulary.NewSequenceChecker(voc)

	run := func() (*policy.StepResult, *mat.Dense) {
		pg, err := policy.NewPG(policy.PGConfig{BatchSize: 5, Epsilon: 0.5, Draws: 2, Baseline: 0.1}, checker, nil)
		require.NoError(t, err)
		agent := newAgent(t, voc, 21)
		res, err := pg.Step(context.Background(), lengthEnv{}, agent, newAgent(t, voc, 22))
		require.NoError(t, err)
		lik, err := agent.Likelihood(context.Background(), res.Sequences)
		require.NoError(t, err)
		return res, lik.Scores()
	}

	r1, s1 := run()
	r2, s2 := run()
	assert.Equal(t, r1.Sequences, r2.Sequences)
	assert.Equal(t, r1.Rewards, r2.Rewards)
	assert.True(t, mat.Equal(s1, s2))
	for i, ok := range r1.Valid {
		if !ok {
			assert.InDelta(t, -0.1, r1.Rewards[i], 1e-12)
		}
	}
}

//Personal.AI order the ending
