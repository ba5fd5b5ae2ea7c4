package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DrugEx/pkg/errors"
)

func TestSimilarityMetric_IsValid(t *testing.T) {
	assert.True(t, MetricTanimoto.IsValid())
	assert.True(t, MetricDice.IsValid())
	assert.True(t, MetricCosine.IsValid())
	assert.False(t, SimilarityMetric("invalid").IsValid())
	assert.Equal(t, "tanimoto", MetricTanimoto.String())
}

func TestParseSimilarityMetric(t *testing.T) {
	m, err := ParseSimilarityMetric("dice")
	assert.NoError(t, err)
	assert.Equal(t, MetricDice, m)

	m, err = ParseSimilarityMetric("")
	assert.NoError(t, err)
	assert.Equal(t, MetricTanimoto, m)

	_, err = ParseSimilarityMetric("invalid")
	assert.Error(t, err)
}

func TestSimilarityCalculators(t *testing.T) {
	a := FingerprintFromBits(16, 0, 1, 2, 3)
	b := FingerprintFromBits(16, 2, 3, 4, 5)
	empty := NewFingerprint(16)

	tests := []struct {
		metric SimilarityMetric
		want   float64
	}{
		{MetricTanimoto, 2.0 / 6.0},
		{MetricDice, 4.0 / 8.0},
		{MetricCosine, 2.0 / 4.0},
	}
	for _, tt := range tests {
		t.Run(tt.metric.String(), func(t *testing.T) {
			calc, err := NewSimilarityCalculator(tt.metric)
			require.NoError(t, err)
			assert.Equal(t, tt.metric, calc.Metric())

			got, err := calc.Calculate(a, b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)

			self, err := calc.Calculate(a, a)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, self, 1e-12)

			zero, err := calc.Calculate(empty, empty)
			require.NoError(t, err)
			assert.Zero(t, zero)
		})
	}
}

func TestSimilarityCalculator_LengthMismatch(t *testing.T) {
	_, err := TanimotoCalculator{}.Calculate(NewFingerprint(8), NewFingerprint(16))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFingerprintFailed))

	_, err = NewSimilarityCalculator("euclidean")
	assert.Error(t, err)
}

func TestClassifySimilarity(t *testing.T) {
	assert.Equal(t, "identical", ClassifySimilarity(1.0))
	assert.Equal(t, "high", ClassifySimilarity(0.9))
	assert.Equal(t, "moderate", ClassifySimilarity(0.75))
	assert.Equal(t, "low", ClassifySimilarity(0.55))
	assert.Equal(t, "dissimilar", ClassifySimilarity(0.1))
}

//Personal.AI order the ending
