package environ

import (
	"context"
	"time"

	"github.com/turtacn/DrugEx/internal/domain/policy"
)

// Recorder receives one observation per Score call.
type Recorder interface {
	RecordEnvScore(molecules int, elapsed time.Duration, err error)
}

// Instrumented reports scoring latency and volume of another environment.
type Instrumented struct {
	next     policy.Environment
	recorder Recorder
	now      func() time.Time
}

var _ policy.Environment = (*Instrumented)(nil)

// NewInstrumented wraps next.
func NewInstrumented(next policy.Environment, recorder Recorder) *Instrumented {
	return &Instrumented{next: next, recorder: recorder, now: time.Now}
}

// SetParallelism forwards to the wrapped environment.
func (e *Instrumented) SetParallelism(n int) { SetParallelism(e.next, n) }

// Score implements policy.Environment.
func (e *Instrumented) Score(ctx context.Context, smiles []string) ([]float64, error) {
	start := e.now()
	scores, err := e.next.Score(ctx, smiles)
	e.recorder.RecordEnvScore(len(smiles), e.now().Sub(start), err)
	return scores, err
}

//Personal.AI order the ending
