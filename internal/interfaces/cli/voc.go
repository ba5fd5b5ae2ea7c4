package cli

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/DrugEx/internal/domain/vocabulary"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/pkg/errors"
)

type vocBuildOptions struct {
	input     string
	vocOut    string
	corpusOut string
	maxLen    int
}

type vocBuildResult struct {
	Vocabulary string `json:"vocabulary"`
	Corpus     string `json:"corpus"`
	Tokens     int    `json:"tokens"`
	Read       int    `json:"read"`
	Rejected   int    `json:"rejected"`
	Duplicates int    `json:"duplicates"`
	TooLong    int    `json:"too_long"`
	Written    int    `json:"written"`
}

func (r vocBuildResult) TableHeaders() []string {
	return []string{"VOCABULARY", "CORPUS", "TOKENS", "READ", "REJECTED", "DUPLICATES", "TOO_LONG", "WRITTEN"}
}

func (r vocBuildResult) TableRows() [][]string {
	return [][]string{{
		r.Vocabulary, r.Corpus,
		strconv.Itoa(r.Tokens), strconv.Itoa(r.Read), strconv.Itoa(r.Rejected),
		strconv.Itoa(r.Duplicates), strconv.Itoa(r.TooLong), strconv.Itoa(r.Written),
	}}
}

func newVocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voc",
		Short: "Build and inspect SMILES vocabularies",
	}
	cmd.AddCommand(newVocBuildCmd())
	return cmd
}

func newVocBuildCmd() *cobra.Command {
	opts := &vocBuildOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Curate a SMILES table into a training corpus and its vocabulary",
		Long: "Reads a tab-separated table with a CANONICAL_SMILES column, keeps the\n" +
			"largest fragment of every molecule, drops invalid, duplicate and overlong\n" +
			"entries and writes the corpus and the token vocabulary.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if opts.maxLen == 0 {
				opts.maxLen = cliCtx.Config.Generator.MaxLen
			}
			res, err := runVocBuild(opts, cliCtx.Logger)
			if err != nil {
				return err
			}
			return PrintResult(cmd, res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.input, "input", "", "tab-separated input table (required)")
	f.StringVar(&opts.vocOut, "voc", "data/voc.txt", "vocabulary output path")
	f.StringVar(&opts.corpusOut, "corpus", "data/corpus.txt", "corpus output path")
	f.IntVar(&opts.maxLen, "max-len", 0, "maximum tokens per molecule (default: generator.max_len)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runVocBuild(opts *vocBuildOptions, logger logging.Logger) (*vocBuildResult, error) {
	if opts.maxLen < 2 {
		return nil, errors.Newf(errors.ErrCodeValidation, "max-len must be >= 2, got %d", opts.maxLen)
	}

	in, err := os.Open(opts.input)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "failed to open input").WithDetail(opts.input)
	}
	defer in.Close()

	for _, p := range []string{opts.corpusOut, opts.vocOut} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create output directory").WithDetail(p)
		}
	}
	out, err := os.Create(opts.corpusOut)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create corpus").WithDetail(opts.corpusOut)
	}
	w := bufio.NewWriter(out)

	voc, stats, err := vocabulary.BuildCorpus(in, w, opts.maxLen)
	if err == nil {
		err = w.Flush()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	if err := voc.Save(opts.vocOut); err != nil {
		return nil, err
	}

	logger.Info("Vocabulary built",
		logging.String("vocabulary", opts.vocOut),
		logging.String("corpus", opts.corpusOut),
		logging.Int("tokens", voc.Size()),
		logging.Int("written", stats.Written),
	)
	return &vocBuildResult{
		Vocabulary: opts.vocOut,
		Corpus:     opts.corpusOut,
		Tokens:     voc.Size(),
		Read:       stats.Read,
		Rejected:   stats.Rejected,
		Duplicates: stats.Duplicates,
		TooLong:    stats.TooLong,
		Written:    stats.Written,
	}, nil
}

//Personal.AI order the ending
