package cli

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/internal/intelligence/environ"
	"github.com/turtacn/DrugEx/pkg/errors"
)

type envTrainOptions struct {
	data      string
	out       string
	k         int
	radius    int
	bits      int
	folds     int
	threshold float64
	seed      uint64
}

type envTrainResult struct {
	Model     string  `json:"model"`
	Records   int     `json:"records"`
	Actives   int     `json:"actives"`
	Inactives int     `json:"inactives"`
	Rejected  int     `json:"rejected"`
	Folds     int     `json:"folds"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

func (r envTrainResult) TableHeaders() []string {
	return []string{"MODEL", "RECORDS", "ACTIVES", "INACTIVES", "REJECTED", "FOLDS", "ACCURACY", "PRECISION", "RECALL"}
}

func (r envTrainResult) TableRows() [][]string {
	return [][]string{{
		r.Model, strconv.Itoa(r.Records), strconv.Itoa(r.Actives), strconv.Itoa(r.Inactives),
		strconv.Itoa(r.Rejected), strconv.Itoa(r.Folds),
		formatFloat(r.Accuracy), formatFloat(r.Precision), formatFloat(r.Recall),
	}}
}

func newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Train the activity predictor used as reward environment",
	}
	cmd.AddCommand(newEnvTrainCmd())
	return cmd
}

func newEnvTrainCmd() *cobra.Command {
	opts := &envTrainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Cross-validate and fit a nearest-neighbour activity model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			e := cliCtx.Config.Environment
			f := cmd.Flags()
			if !f.Changed("out") {
				opts.out = e.ModelPath
			}
			if !f.Changed("k") {
				opts.k = e.K
			}
			if !f.Changed("radius") {
				opts.radius = e.Radius
			}
			if !f.Changed("bits") {
				opts.bits = e.Bits
			}
			if !f.Changed("folds") {
				opts.folds = e.Folds
			}
			if !f.Changed("threshold") {
				opts.threshold = e.ActiveThreshold
			}
			if !f.Changed("seed") {
				opts.seed = cliCtx.Config.Training.Seed
			}

			ctx, cancel := withTimeout(cmd, cliCtx)
			defer cancel()

			res, err := runEnvTrain(ctx, opts, cliCtx.Logger)
			if err != nil {
				return err
			}
			return PrintResult(cmd, res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.data, "data", "", "tab-separated activity table with CANONICAL_SMILES and PCHEMBL_VALUE (required)")
	f.StringVar(&opts.out, "out", "", "model output path (default: environment.model_path)")
	f.IntVar(&opts.k, "k", 0, "neighbours per prediction")
	f.IntVar(&opts.radius, "radius", 0, "Morgan fingerprint radius")
	f.IntVar(&opts.bits, "bits", 0, "fingerprint length in bits")
	f.IntVar(&opts.folds, "folds", 0, "cross-validation folds")
	f.Float64Var(&opts.threshold, "threshold", 0, "activity threshold on PCHEMBL_VALUE")
	f.Uint64Var(&opts.seed, "seed", 0, "fold shuffling seed")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func runEnvTrain(ctx context.Context, opts *envTrainOptions, logger logging.Logger) (*envTrainResult, error) {
	records, stats, err := environ.LoadDataset(opts.data, opts.threshold)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "dataset has no usable records").WithDetail(opts.data)
	}
	logger.Info("Dataset loaded",
		logging.Int("records", len(records)),
		logging.Int("actives", stats.Actives),
		logging.Int("inactives", stats.Inactives),
		logging.Int("rejected", stats.Rejected),
	)

	knnCfg := environ.KNNConfig{K: opts.k, Radius: opts.radius, Bits: opts.bits}
	report, err := environ.CrossValidate(ctx, knnCfg, records, opts.folds, newRNG(opts.seed, streamFolds), logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Cross-validation finished",
		logging.Int("folds", report.Folds),
		logging.Float64("accuracy", report.Accuracy),
		logging.Float64("precision", report.Precision),
		logging.Float64("recall", report.Recall),
	)

	model, err := environ.NewKNN(knnCfg, logger)
	if err != nil {
		return nil, err
	}
	if err := model.Fit(ctx, records); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(opts.out), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create output directory").WithDetail(opts.out)
	}
	if err := model.Save(opts.out, report); err != nil {
		return nil, err
	}

	return &envTrainResult{
		Model:     opts.out,
		Records:   len(records),
		Actives:   stats.Actives,
		Inactives: stats.Inactives,
		Rejected:  stats.Rejected,
		Folds:     report.Folds,
		Accuracy:  report.Accuracy,
		Precision: report.Precision,
		Recall:    report.Recall,
	}, nil
}

//Personal.AI order the ending
