// Package policy implements the reinforcement-learning step strategies that
// train a molecule Generator against an Environment.
//
// Two strategies are provided.  PG rewards each sampled sequence as a whole
// and updates the agent with REINFORCE.  Rollout estimates a reward for every
// prefix of every sequence by completing it with the agent itself, and trains
// on the resulting per-token reward matrix.
//
// Generators and environments are consumed through the interfaces declared
// here.  Both the exploitation agent and the exploration network are
// instances of Generator; blending between them is requested by the caller
// through SampleRequest and never implied by the instance itself.
package policy

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Sequences is a batch of token id rows.  Every row has the generator's
// MaxLen and is padded with the terminator id (0) after its first terminator.
type Sequences = [][]int

// EOS is the terminator id.  Positions holding it contribute neither reward
// nor gradient.
const EOS = 0

// HiddenState is an opaque per-position recurrent state produced by a
// Generator.  Only the Generator that produced it may interpret it.
type HiddenState interface{}

// Continuation seeds sampling from the middle of existing sequences.  Prefix
// holds positions 0..Start-1 of every row and Hidden is the generator state
// recorded at position Start-1.
type Continuation struct {
	Prefix Sequences
	Hidden HiddenState
	Start  int
}

// SampleRequest describes one Generator.Sample call.
type SampleRequest struct {
	// N is the number of rows to sample.
	N int
	// Explore, when set, is consulted at every (row, step) with probability
	// Epsilon instead of the sampling generator.
	Explore Generator
	Epsilon float64
	// Draws is the number of exploration draws averaged into the blend weight
	// of every step.  Zero and one both mean a single draw.
	Draws int
	// Continuation, when set, makes Sample return only positions
	// Start..MaxLen-1 of every row.
	Continuation *Continuation
}

// Cursor steps a generator over a batch one position at a time.
type Cursor interface {
	// Next consumes one input token per row and returns the N×V matrix of
	// next-token probabilities.
	Next(tokens []int) *mat.Dense
}

// Likelihood is the result of one forward pass over a batch.
type Likelihood interface {
	// Scores returns the N×L matrix of per-token log-probabilities.
	Scores() *mat.Dense
	// Hidden returns the generator state recorded at position pos.
	Hidden(pos int) HiddenState
	// Len returns the number of positions.
	Len() int
}

// Loss is a policy-gradient loss awaiting back-propagation.
type Loss interface {
	Value() float64
	Backward() error
}

// Generator is a trainable token-sequence model.
type Generator interface {
	MaxLen() int
	Begin(n int) Cursor
	Sample(ctx context.Context, req SampleRequest) (Sequences, error)
	Likelihood(ctx context.Context, seqs Sequences) (Likelihood, error)
	// PolicyUpdate zeroes gradients, broadcasts one advantage per row over
	// the row's contributing positions, back-propagates and steps once.
	PolicyUpdate(ctx context.Context, seqs Sequences, advantages []float64) (float64, error)
	// PGLoss builds the masked per-token loss for an N×L advantage matrix.
	PGLoss(ctx context.Context, lik Likelihood, seqs Sequences, advantages *mat.Dense) (Loss, error)
	ZeroGrad()
	Step() error
}

// Environment scores decoded molecules.  It must return exactly one score per
// input string.
type Environment interface {
	Score(ctx context.Context, smiles []string) ([]float64, error)
}

// Checker decodes sequences and reports which decode to valid molecules.
type Checker interface {
	Check(ctx context.Context, seqs Sequences) ([]string, []bool, error)
}

// Strategy performs one training step.
type Strategy interface {
	Name() string
	Step(ctx context.Context, env Environment, agent, explore Generator) (*StepResult, error)
}

// StatusOK is the only status a completed step reports.
const StatusOK = 0

// StepResult summarises one step for monitoring.  Nothing in it feeds back
// into training.
type StepResult struct {
	Status    int
	Strategy  string
	Sequences Sequences
	SMILES    []string
	Valid     []bool
	ValidRate float64
	// Scores are the raw environment outputs of the sampled batch.
	Scores []float64
	// Rewards are the baseline-adjusted, invalid-floored rewards.
	Rewards []float64
	// TokenRewards is the averaged N×L reward matrix of a rollout step.
	TokenRewards *mat.Dense
	// RolloutCalls counts continuation samples drawn by a rollout step.
	RolloutCalls int
	Loss         float64
}

//Personal.AI order the ending
