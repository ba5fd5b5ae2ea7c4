// Package run defines the training-run records the driver produces and the
// monitoring surface reads: one Run per driver invocation, one Epoch per
// strategy step and the best-scoring Samples of each epoch.
package run

import (
	"time"

	"github.com/turtacn/DrugEx/pkg/errors"
)

// Status is the lifecycle state of a training run.
type Status string

const (
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
	StatusFailed      Status = "failed"
)

// IsTerminal reports whether the run can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusInterrupted || s == StatusFailed
}

// Run is one invocation of the training driver.
type Run struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Strategy   string     `json:"strategy"`
	Epsilon    float64    `json:"epsilon"`
	Baseline   float64    `json:"baseline"`
	BatchSize  int        `json:"batch_size"`
	MC         int        `json:"mc"`
	Draws      int        `json:"draws"`
	Epochs     int        `json:"epochs"`
	Seed       uint64     `json:"seed"`
	Status     Status     `json:"status"`
	BestScore  float64    `json:"best_score"`
	BestEpoch  int        `json:"best_epoch"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Validate checks the fields the stores rely on.
func (r *Run) Validate() error {
	if r == nil {
		return errors.New(errors.ErrCodeValidation, "run is nil")
	}
	if r.ID == "" {
		return errors.New(errors.ErrCodeValidation, "run id is required")
	}
	if r.Strategy == "" {
		return errors.New(errors.ErrCodeValidation, "run strategy is required")
	}
	if r.BatchSize < 1 {
		return errors.Newf(errors.ErrCodeValidation, "run batch size must be >= 1, got %d", r.BatchSize)
	}
	return nil
}

// Finish moves the run into a terminal state.
func (r *Run) Finish(status Status, at time.Time, cause error) {
	r.Status = status
	r.FinishedAt = &at
	if cause != nil {
		r.Error = cause.Error()
	}
}

// Epoch is the summary of one strategy step.
type Epoch struct {
	RunID        string        `json:"run_id"`
	Epoch        int           `json:"epoch"`
	Strategy     string        `json:"strategy"`
	ValidRate    float64       `json:"valid_rate"`
	UniqueRate   float64       `json:"unique_rate"`
	MeanReward   float64       `json:"mean_reward"`
	MeanScore    float64       `json:"mean_score"`
	Loss         float64       `json:"loss"`
	RolloutCalls int           `json:"rollout_calls"`
	Duration     time.Duration `json:"duration"`
	Checkpointed bool          `json:"checkpointed"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Sample is one generated molecule kept for inspection.
type Sample struct {
	RunID  string  `json:"run_id"`
	Epoch  int     `json:"epoch"`
	SMILES string  `json:"smiles"`
	Score  float64 `json:"score"`
	Valid  bool    `json:"valid"`
}

//Personal.AI order the ending
