package run

import "context"

// RunRepository persists runs and their per-epoch summaries.  RecordEpoch is
// idempotent on (run id, epoch) so redelivered events do not duplicate rows.
type RunRepository interface {
	CreateRun(ctx context.Context, r *Run) error
	FinishRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	RecordEpoch(ctx context.Context, e *Epoch) error
	ListEpochs(ctx context.Context, runID string, limit, offset int) ([]*Epoch, error)
}

// SampleRepository persists generated molecules in bulk.
type SampleRepository interface {
	SaveSamples(ctx context.Context, samples []Sample) (int64, error)
	TopSamples(ctx context.Context, runID string, limit int) ([]Sample, error)
}

// ClampLimit bounds page sizes the same way for every query surface.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 500 {
		return 500
	}
	return limit
}

//Personal.AI order the ending
