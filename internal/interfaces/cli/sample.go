package cli

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/DrugEx/internal/domain/policy"
	"github.com/turtacn/DrugEx/internal/domain/vocabulary"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/internal/intelligence/environ"
	"github.com/turtacn/DrugEx/internal/intelligence/generator"
	"github.com/turtacn/DrugEx/pkg/errors"
)

type sampleOptions struct {
	model string
	voc   string
	env   string
	out   string
	n     int
	seed  uint64
}

type sampledMolecule struct {
	SMILES string   `json:"smiles"`
	Valid  bool     `json:"valid"`
	Score  *float64 `json:"score,omitempty"`
}

type sampleResult struct {
	Molecules []sampledMolecule `json:"molecules"`
	ValidRate float64           `json:"valid_rate"`
}

func (r sampleResult) TableHeaders() []string {
	return []string{"SMILES", "VALID", "SCORE"}
}

func (r sampleResult) TableRows() [][]string {
	rows := make([][]string, len(r.Molecules))
	for i, m := range r.Molecules {
		score := ""
		if m.Score != nil {
			score = formatFloat(*m.Score)
		}
		rows[i] = []string{m.SMILES, strconv.FormatBool(m.Valid), score}
	}
	return rows
}

func newSampleCmd() *cobra.Command {
	opts := &sampleOptions{}
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Sample molecules from a trained generator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if !cmd.Flags().Changed("voc") {
				opts.voc = cfg.Training.VocabularyPath
			}
			if !cmd.Flags().Changed("seed") {
				opts.seed = cfg.Training.Seed
			}

			ctx, cancel := withTimeout(cmd, cliCtx)
			defer cancel()

			voc, err := vocabulary.Load(opts.voc, cfg.Generator.MaxLen)
			if err != nil {
				return err
			}
			res, err := runSample(ctx, opts, voc, cliCtx.Logger)
			if err != nil {
				return err
			}
			if opts.out != "" {
				if err := writeSampleTSV(opts.out, res); err != nil {
					return err
				}
				PrintSuccess(cmd, strconv.Itoa(len(res.Molecules))+" molecules written to "+opts.out)
				return nil
			}
			return PrintResult(cmd, res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.model, "model", "", "generator checkpoint (required)")
	f.StringVar(&opts.voc, "voc", "", "vocabulary path (default: training.vocabulary_path)")
	f.StringVar(&opts.env, "env", "", "score valid molecules with this environment model")
	f.StringVar(&opts.out, "out", "", "write a tab-separated table instead of printing")
	f.IntVarP(&opts.n, "num", "n", 100, "molecules to sample")
	f.Uint64Var(&opts.seed, "seed", 0, "random seed (default: training.seed)")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func runSample(ctx context.Context, opts *sampleOptions, voc *vocabulary.Vocabulary, logger logging.Logger) (*sampleResult, error) {
	if opts.n < 1 {
		return nil, errors.Newf(errors.ErrCodeValidation, "num must be >= 1, got %d", opts.n)
	}
	model, err := generator.Load(opts.model, voc, newRNG(opts.seed, streamSample), logger)
	if err != nil {
		return nil, err
	}
	seqs, err := model.Sample(ctx, policy.SampleRequest{N: opts.n})
	if err != nil {
		return nil, err
	}
	smiles, valid, err := vocabulary.NewSequenceChecker(voc).Check(ctx, seqs)
	if err != nil {
		return nil, err
	}

	res := &sampleResult{Molecules: make([]sampledMolecule, len(smiles))}
	var validSMILES []string
	var validIdx []int
	for i, smi := range smiles {
		res.Molecules[i] = sampledMolecule{SMILES: smi, Valid: valid[i]}
		if valid[i] {
			validSMILES = append(validSMILES, smi)
			validIdx = append(validIdx, i)
		}
	}
	res.ValidRate = float64(len(validIdx)) / float64(len(smiles))

	if opts.env != "" && len(validSMILES) > 0 {
		env, err := environ.Load(opts.env, logger)
		if err != nil {
			return nil, err
		}
		scores, err := env.Score(ctx, validSMILES)
		if err != nil {
			return nil, err
		}
		for k, i := range validIdx {
			s := scores[k]
			res.Molecules[i].Score = &s
		}
	}
	return res, nil
}

func writeSampleTSV(path string, res *sampleResult) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create output").WithDetail(path)
	}
	w := csv.NewWriter(f)
	w.Comma = '\t'
	_ = w.Write(res.TableHeaders())
	_ = w.WriteAll(res.TableRows())
	if err := w.Error(); err != nil {
		f.Close()
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to write output").WithDetail(path)
	}
	return f.Close()
}

//Personal.AI order the ending
