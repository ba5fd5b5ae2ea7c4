package environ

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// DecisionThreshold is the probability at or above which a prediction counts
// as active.
const DecisionThreshold = 0.5

// CVReport summarises a stratified k-fold cross-validation.
type CVReport struct {
	Folds     int     `json:"folds"`
	Samples   int     `json:"samples"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	// MeanActiveScore and MeanInactiveScore are the mean out-of-fold
	// predictions of each class.
	MeanActiveScore   float64 `json:"mean_active_score"`
	MeanInactiveScore float64 `json:"mean_inactive_score"`
	// Predictions holds the out-of-fold score of every fingerprinted record,
	// in record order.  Records that could not be fingerprinted are dropped.
	Predictions []float64 `json:"-"`
	Labels      []bool    `json:"-"`
}

// CrossValidate runs stratified k-fold cross-validation of a KNN predictor
// with cfg over records.  Actives and inactives are shuffled separately with
// rng and dealt round-robin into folds.
func CrossValidate(ctx context.Context, cfg KNNConfig, records []Record, folds int, rng *rand.Rand, logger logging.Logger) (*CVReport, error) {
	if folds < 2 {
		return nil, errors.New(errors.ErrCodeEnvNotEnoughLabels, "cross-validation needs at least 2 folds")
	}
	model, err := NewKNN(cfg, logger)
	if err != nil {
		return nil, err
	}

	fps, err := model.fingerprints(ctx, records)
	if err != nil {
		return nil, err
	}
	var refs []reference
	for i, r := range records {
		if fps[i] != nil {
			refs = append(refs, reference{smiles: r.SMILES, active: r.Active, fp: fps[i]})
		}
	}

	var actives, inactives []int
	for i, r := range refs {
		if r.active {
			actives = append(actives, i)
		} else {
			inactives = append(inactives, i)
		}
	}
	if len(actives) < folds || len(inactives) < folds {
		return nil, errors.New(errors.ErrCodeEnvNotEnoughLabels, "each class needs at least one molecule per fold").
			WithDetail(fmt.Sprintf("actives=%d inactives=%d folds=%d", len(actives), len(inactives), folds))
	}

	fold := make([]int, len(refs))
	for _, class := range [][]int{actives, inactives} {
		rng.Shuffle(len(class), func(i, j int) { class[i], class[j] = class[j], class[i] })
		for n, idx := range class {
			fold[idx] = n % folds
		}
	}

	preds := make([]float64, len(refs))
	for f := 0; f < folds; f++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeEnvScoringFailed, "cross-validation interrupted")
		}
		var train []reference
		for i, r := range refs {
			if fold[i] != f {
				train = append(train, r)
			}
		}
		for i, r := range refs {
			if fold[i] == f {
				preds[i] = model.predict(r.fp, train)
			}
		}
	}

	report := &CVReport{Folds: folds, Samples: len(refs), Predictions: preds, Labels: make([]bool, len(refs))}
	var tp, fp, tn, fn int
	var activeScores, inactiveScores []float64
	for i, r := range refs {
		report.Labels[i] = r.active
		predicted := preds[i] >= DecisionThreshold
		switch {
		case r.active && predicted:
			tp++
		case r.active:
			fn++
		case predicted:
			fp++
		default:
			tn++
		}
		if r.active {
			activeScores = append(activeScores, preds[i])
		} else {
			inactiveScores = append(inactiveScores, preds[i])
		}
	}
	report.Accuracy = float64(tp+tn) / float64(len(refs))
	if tp+fp > 0 {
		report.Precision = float64(tp) / float64(tp+fp)
	}
	report.Recall = float64(tp) / float64(tp+fn)
	report.MeanActiveScore = stat.Mean(activeScores, nil)
	report.MeanInactiveScore = stat.Mean(inactiveScores, nil)
	return report, nil
}

//Personal.AI order the ending
