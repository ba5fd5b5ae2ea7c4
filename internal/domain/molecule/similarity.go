package molecule

import (
	"math"

	"github.com/turtacn/DrugEx/pkg/errors"
)

// SimilarityMetric names a fingerprint similarity.
type SimilarityMetric string

const (
	MetricTanimoto SimilarityMetric = "tanimoto"
	MetricDice     SimilarityMetric = "dice"
	MetricCosine   SimilarityMetric = "cosine"
)

// IsValid checks if the similarity metric is valid.
func (m SimilarityMetric) IsValid() bool {
	switch m {
	case MetricTanimoto, MetricDice, MetricCosine:
		return true
	default:
		return false
	}
}

// String returns the string representation of the similarity metric.
func (m SimilarityMetric) String() string {
	return string(m)
}

// ParseSimilarityMetric parses a string into a SimilarityMetric.  The empty
// string selects Tanimoto.
func ParseSimilarityMetric(s string) (SimilarityMetric, error) {
	if s == "" {
		return MetricTanimoto, nil
	}
	m := SimilarityMetric(s)
	if m.IsValid() {
		return m, nil
	}
	return "", errors.New(errors.ErrCodeValidation, "unsupported similarity metric: "+s)
}

// SimilarityCalculator scores a pair of fingerprints in [0, 1].
type SimilarityCalculator interface {
	Calculate(fp1, fp2 *Fingerprint) (float64, error)
	Metric() SimilarityMetric
}

// NewSimilarityCalculator factory function.
func NewSimilarityCalculator(metric SimilarityMetric) (SimilarityCalculator, error) {
	switch metric {
	case MetricTanimoto:
		return TanimotoCalculator{}, nil
	case MetricDice:
		return DiceCalculator{}, nil
	case MetricCosine:
		return CosineCalculator{}, nil
	default:
		return nil, errors.New(errors.ErrCodeValidation, "unsupported similarity metric: "+string(metric))
	}
}

func checkDimensions(fp1, fp2 *Fingerprint) error {
	if fp1 == nil || fp2 == nil {
		return errors.InvalidParam("fingerprint must not be nil")
	}
	if fp1.n != fp2.n {
		return errors.New(errors.ErrCodeFingerprintFailed, "fingerprints must have the same length")
	}
	return nil
}

// TanimotoCalculator implements Tanimoto similarity (Jaccard index).
type TanimotoCalculator struct{}

// Calculate returns |a∧b| / |a∨b|, or 0 when both are empty.
func (TanimotoCalculator) Calculate(fp1, fp2 *Fingerprint) (float64, error) {
	if err := checkDimensions(fp1, fp2); err != nil {
		return 0, err
	}
	return Tanimoto(fp1, fp2), nil
}

// Metric returns MetricTanimoto.
func (TanimotoCalculator) Metric() SimilarityMetric { return MetricTanimoto }

// Tanimoto is the unchecked Tanimoto similarity of two equal-length
// fingerprints.
func Tanimoto(fp1, fp2 *Fingerprint) float64 {
	union := fp1.bits.UnionCardinality(fp2.bits)
	if union == 0 {
		return 0
	}
	return float64(fp1.bits.IntersectionCardinality(fp2.bits)) / float64(union)
}

// DiceCalculator implements Dice similarity.
type DiceCalculator struct{}

// Calculate returns 2|a∧b| / (|a|+|b|).
func (DiceCalculator) Calculate(fp1, fp2 *Fingerprint) (float64, error) {
	if err := checkDimensions(fp1, fp2); err != nil {
		return 0, err
	}
	total := fp1.bits.Count() + fp2.bits.Count()
	if total == 0 {
		return 0, nil
	}
	return 2 * float64(fp1.bits.IntersectionCardinality(fp2.bits)) / float64(total), nil
}

// Metric returns MetricDice.
func (DiceCalculator) Metric() SimilarityMetric { return MetricDice }

// CosineCalculator implements cosine similarity over bit vectors.
type CosineCalculator struct{}

// Calculate returns |a∧b| / sqrt(|a|·|b|).
func (CosineCalculator) Calculate(fp1, fp2 *Fingerprint) (float64, error) {
	if err := checkDimensions(fp1, fp2); err != nil {
		return 0, err
	}
	n1, n2 := fp1.bits.Count(), fp2.bits.Count()
	if n1 == 0 || n2 == 0 {
		return 0, nil
	}
	return float64(fp1.bits.IntersectionCardinality(fp2.bits)) / math.Sqrt(float64(n1)*float64(n2)), nil
}

// Metric returns MetricCosine.
func (CosineCalculator) Metric() SimilarityMetric { return MetricCosine }

// Similarity Threshold Constants
const (
	ThresholdIdentical          = 0.99
	ThresholdHighSimilarity     = 0.85
	ThresholdModerateSimilarity = 0.70
	ThresholdLowSimilarity      = 0.50
)

// ClassifySimilarity returns a classification label for a given similarity score.
func ClassifySimilarity(score float64) string {
	if score >= ThresholdIdentical {
		return "identical"
	}
	if score >= ThresholdHighSimilarity {
		return "high"
	}
	if score >= ThresholdModerateSimilarity {
		return "moderate"
	}
	if score >= ThresholdLowSimilarity {
		return "low"
	}
	return "dissimilar"
}

//Personal.AI order the ending
