package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/DrugEx/internal/domain/policy"
	"github.com/turtacn/DrugEx/internal/domain/vocabulary"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/internal/intelligence/generator"
	"github.com/turtacn/DrugEx/pkg/errors"
)

type pretrainOptions struct {
	corpus    string
	voc       string
	out       string
	epochs    int
	batchSize int
	evalSize  int
	seed      uint64
}

type pretrainResult struct {
	Model         string  `json:"model"`
	Molecules     int     `json:"molecules"`
	Skipped       int     `json:"skipped"`
	Epochs        int     `json:"epochs"`
	BestEpoch     int     `json:"best_epoch"`
	BestValidRate float64 `json:"best_valid_rate"`
	FinalLoss     float64 `json:"final_loss"`
}

func (r pretrainResult) TableHeaders() []string {
	return []string{"MODEL", "MOLECULES", "SKIPPED", "EPOCHS", "BEST_EPOCH", "BEST_VALID_RATE", "FINAL_LOSS"}
}

func (r pretrainResult) TableRows() [][]string {
	return [][]string{{
		r.Model, strconv.Itoa(r.Molecules), strconv.Itoa(r.Skipped), strconv.Itoa(r.Epochs),
		strconv.Itoa(r.BestEpoch), formatFloat(r.BestValidRate), formatFloat(r.FinalLoss),
	}}
}

func newPretrainCmd() *cobra.Command {
	opts := &pretrainOptions{}
	cmd := &cobra.Command{
		Use:   "pretrain",
		Short: "Fit the prior generator to a corpus by maximum likelihood",
		Long: "Trains the generator on the corpus written by 'voc build'.  After every\n" +
			"epoch a batch is sampled and the model is saved whenever the share of\n" +
			"valid molecules improves.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			f := cmd.Flags()
			if !f.Changed("voc") {
				opts.voc = cfg.Training.VocabularyPath
			}
			if !f.Changed("out") {
				opts.out = cfg.Training.PriorPath
			}
			if !f.Changed("seed") {
				opts.seed = cfg.Training.Seed
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			voc, err := vocabulary.Load(opts.voc, cfg.Generator.MaxLen)
			if err != nil {
				return err
			}
			res, err := runPretrain(ctx, opts, voc, generatorConfig(cfg.Generator), cliCtx.Logger)
			if err != nil {
				return err
			}
			return PrintResult(cmd, res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.corpus, "corpus", "data/corpus.txt", "corpus written by 'voc build'")
	f.StringVar(&opts.voc, "voc", "", "vocabulary path (default: training.vocabulary_path)")
	f.StringVar(&opts.out, "out", "", "model output path (default: training.prior_path)")
	f.IntVar(&opts.epochs, "epochs", 20, "passes over the corpus")
	f.IntVar(&opts.batchSize, "batch-size", 128, "molecules per update")
	f.IntVar(&opts.evalSize, "eval-size", 512, "molecules sampled to measure validity after each epoch")
	f.Uint64Var(&opts.seed, "seed", 0, "random seed (default: training.seed)")
	return cmd
}

func runPretrain(ctx context.Context, opts *pretrainOptions, voc *vocabulary.Vocabulary, genCfg generator.Config, logger logging.Logger) (*pretrainResult, error) {
	if opts.epochs < 1 || opts.batchSize < 1 || opts.evalSize < 1 {
		return nil, errors.New(errors.ErrCodeValidation, "epochs, batch-size and eval-size must be positive")
	}

	f, err := os.Open(opts.corpus)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCorpusReadFailed, "failed to open corpus").WithDetail(opts.corpus)
	}
	smiles, err := vocabulary.ReadSMILESColumn(f)
	f.Close()
	if err != nil {
		return nil, err
	}

	res := &pretrainResult{Model: opts.out, Epochs: opts.epochs, BestValidRate: -1}
	seqs := make(policy.Sequences, 0, len(smiles))
	for _, smi := range smiles {
		row, err := voc.EncodeSMILES(smi)
		if err != nil {
			res.Skipped++
			continue
		}
		seqs = append(seqs, row)
	}
	res.Molecules = len(seqs)
	if len(seqs) == 0 {
		return nil, errors.New(errors.ErrCodeCorpusReadFailed, "corpus has no molecules the vocabulary can encode").WithDetail(opts.corpus)
	}
	if res.Skipped > 0 {
		logger.Warn("Corpus molecules skipped", logging.Int("skipped", res.Skipped))
	}

	model, err := generator.New(voc, genCfg, newRNG(opts.seed, streamPrior), logger)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(opts.out), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCheckpointSave, "failed to create output directory").WithDetail(opts.out)
	}
	checker := vocabulary.NewSequenceChecker(voc)
	shuffle := newRNG(opts.seed, streamPretrain)

	for epoch := 1; epoch <= opts.epochs; epoch++ {
		start := time.Now()
		total := 0.0
		for _, batch := range minibatches(seqs, shuffle.Perm(len(seqs)), opts.batchSize) {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeTrainingInterrupted, "pretraining interrupted").
					WithDetail(fmt.Sprintf("epoch %d", epoch))
			}
			loss, err := model.Fit(ctx, batch)
			if err != nil {
				return nil, err
			}
			total += loss * float64(len(batch))
		}
		res.FinalLoss = total / float64(len(seqs))

		validRate, err := sampleValidRate(ctx, model, checker, opts.evalSize)
		if err != nil {
			return nil, err
		}
		saved := false
		if validRate > res.BestValidRate {
			if err := model.Save(opts.out); err != nil {
				return nil, err
			}
			res.BestValidRate = validRate
			res.BestEpoch = epoch
			saved = true
		}
		logger.Info("Pretrain epoch completed",
			logging.Int("epoch", epoch),
			logging.Float64("loss", res.FinalLoss),
			logging.Float64("valid_rate", validRate),
			logging.Bool("saved", saved),
			logging.Duration("duration", time.Since(start)),
		)
	}
	return res, nil
}

// minibatches slices seqs in perm order into batches of at most size rows.
func minibatches(seqs policy.Sequences, perm []int, size int) []policy.Sequences {
	var out []policy.Sequences
	for lo := 0; lo < len(perm); lo += size {
		hi := min(lo+size, len(perm))
		batch := make(policy.Sequences, 0, hi-lo)
		for _, idx := range perm[lo:hi] {
			batch = append(batch, seqs[idx])
		}
		out = append(out, batch)
	}
	return out
}

func sampleValidRate(ctx context.Context, g policy.Generator, checker policy.Checker, n int) (float64, error) {
	seqs, err := g.Sample(ctx, policy.SampleRequest{N: n})
	if err != nil {
		return 0, err
	}
	_, valid, err := checker.Check(ctx, seqs)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, ok := range valid {
		if ok {
			count++
		}
	}
	return float64(count) / float64(len(valid)), nil
}

//Personal.AI order the ending
