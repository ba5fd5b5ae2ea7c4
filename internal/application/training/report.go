package training

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/turtacn/DrugEx/internal/domain/policy"
	"github.com/turtacn/DrugEx/internal/domain/run"
)

// EpochReport is what monitors see after every step.
type EpochReport struct {
	Run    *run.Run
	Epoch  run.Epoch
	Result *policy.StepResult
	// Samples are the best unique valid molecules of the batch, highest
	// score first.
	Samples []run.Sample
	// Checkpoint is set when the driver tried to save this epoch.
	Checkpoint *CheckpointResult
}

// CheckpointResult records one checkpoint attempt.
type CheckpointResult struct {
	Store    string
	Location string
	Err      error
}

// batchStats summarises a step the way run reports are read: rates over the
// whole batch, the score over unique valid molecules only.
type batchStats struct {
	uniqueRate float64
	meanScore  float64
	meanReward float64
	valid      int
	unique     []run.Sample
}

func summarize(runID string, epoch int, res *policy.StepResult) batchStats {
	var st batchStats
	n := len(res.SMILES)
	if n == 0 {
		return st
	}

	seen := make(map[string]struct{}, n)
	scores := make([]float64, 0, n)
	for i, smi := range res.SMILES {
		if !res.Valid[i] {
			continue
		}
		st.valid++
		if _, dup := seen[smi]; dup {
			continue
		}
		seen[smi] = struct{}{}
		score := 0.0
		if i < len(res.Scores) {
			score = res.Scores[i]
		}
		scores = append(scores, score)
		st.unique = append(st.unique, run.Sample{RunID: runID, Epoch: epoch, SMILES: smi, Score: score, Valid: true})
	}

	st.uniqueRate = float64(len(seen)) / float64(n)
	if len(scores) > 0 {
		st.meanScore = stat.Mean(scores, nil)
	}
	if len(res.Rewards) > 0 {
		st.meanReward = stat.Mean(res.Rewards, nil)
	}
	return st
}

// topSamples returns at most k samples ordered by score, ties by SMILES.
func topSamples(samples []run.Sample, k int) []run.Sample {
	out := append([]run.Sample(nil), samples...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].SMILES < out[j].SMILES
	})
	if k >= 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

func newEpoch(r *run.Run, epoch int, res *policy.StepResult, st batchStats, elapsed time.Duration, at time.Time) run.Epoch {
	return run.Epoch{
		RunID:        r.ID,
		Epoch:        epoch,
		Strategy:     res.Strategy,
		ValidRate:    res.ValidRate,
		UniqueRate:   st.uniqueRate,
		MeanReward:   st.meanReward,
		MeanScore:    st.meanScore,
		Loss:         res.Loss,
		RolloutCalls: res.RolloutCalls,
		Duration:     elapsed,
		CreatedAt:    at,
	}
}

//Personal.AI order the ending
