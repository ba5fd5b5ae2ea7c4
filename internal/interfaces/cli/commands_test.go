package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DrugEx/internal/domain/vocabulary"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/internal/intelligence/generator"
	"github.com/turtacn/DrugEx/pkg/errors"
)

func writeFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func TestVocBuild_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "chembl.tsv")
	writeFile(t, in,
		"ID\tCANONICAL_SMILES",
		"1\tCCO",
		"2\tCCN",
		"3\tCCO",
		"4\tCC(=O)O.[Na+]",
		"5\tC(",
	)
	vocPath := filepath.Join(dir, "out", "voc.txt")
	corpusPath := filepath.Join(dir, "out", "corpus.txt")

	out, err := execute(t, "-o", "json", "voc", "build", "--input", in, "--voc", vocPath, "--corpus", corpusPath)
	require.NoError(t, err)

	var res vocBuildResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 5, res.Read)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 3, res.Written)

	voc, err := vocabulary.Load(vocPath, 100)
	require.NoError(t, err)
	assert.Equal(t, res.Tokens, voc.Size())

	f, err := os.Open(corpusPath)
	require.NoError(t, err)
	defer f.Close()
	smiles, err := vocabulary.ReadSMILESColumn(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"CCO", "CCN", "CC(=O)O"}, smiles)
}

func TestVocBuild_RequiresInput(t *testing.T) {
	_, err := execute(t, "voc", "build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input")
}

func TestVocBuild_MissingInputFile(t *testing.T) {
	_, err := runVocBuild(&vocBuildOptions{input: filepath.Join(t.TempDir(), "absent.tsv"), maxLen: 10}, logging.NewNopLogger())
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestPretrainAndSample(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "corpus.txt")
	writeFile(t, corpus,
		"CANONICAL_SMILES\tSENT",
		"CCO\tC C O EOS",
		"CCN\tC C N EOS",
		"CCCC\tC C C C EOS",
		"C[Se]C\tC [Se] C EOS",
	)
	voc, err := vocabulary.Build(16, "CCO", "CCN", "CCCC")
	require.NoError(t, err)

	modelPath := filepath.Join(dir, "models", "prior.json")
	cfg := generator.DefaultConfig()
	cfg.EmbeddingDim = 8

	res, err := runPretrain(context.Background(), &pretrainOptions{
		corpus:    corpus,
		out:       modelPath,
		epochs:    2,
		batchSize: 2,
		evalSize:  4,
		seed:      3,
	}, voc, cfg, logging.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Molecules)
	assert.Equal(t, 1, res.Skipped)
	assert.GreaterOrEqual(t, res.BestEpoch, 1)
	assert.GreaterOrEqual(t, res.BestValidRate, 0.0)
	assert.Greater(t, res.FinalLoss, 0.0)
	assert.FileExists(t, modelPath)

	sampled, err := runSample(context.Background(), &sampleOptions{model: modelPath, n: 5, seed: 3}, voc, logging.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, sampled.Molecules, 5)
	assert.GreaterOrEqual(t, sampled.ValidRate, 0.0)
	assert.LessOrEqual(t, sampled.ValidRate, 1.0)
	for _, m := range sampled.Molecules {
		assert.Nil(t, m.Score)
	}

	tsv := filepath.Join(dir, "samples.tsv")
	require.NoError(t, writeSampleTSV(tsv, sampled))
	data, err := os.ReadFile(tsv)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "SMILES\tVALID\tSCORE\n"))
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 6)
}

func TestPretrain_Interrupted(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "corpus.txt")
	writeFile(t, corpus, "CANONICAL_SMILES", "CCO", "CCN")
	voc, err := vocabulary.Build(16, "CCO", "CCN")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runPretrain(ctx, &pretrainOptions{
		corpus: corpus, out: filepath.Join(dir, "p.json"), epochs: 1, batchSize: 1, evalSize: 1,
	}, voc, generator.DefaultConfig(), logging.NewNopLogger())
	assert.True(t, errors.IsCode(err, errors.ErrCodeTrainingInterrupted))
}

func TestPretrain_Validation(t *testing.T) {
	voc, err := vocabulary.Build(16, "CCO")
	require.NoError(t, err)
	_, err = runPretrain(context.Background(), &pretrainOptions{epochs: 0, batchSize: 1, evalSize: 1}, voc, generator.DefaultConfig(), logging.NewNopLogger())
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestSample_Validation(t *testing.T) {
	voc, err := vocabulary.Build(16, "CCO")
	require.NoError(t, err)
	_, err = runSample(context.Background(), &sampleOptions{n: 0}, voc, logging.NewNopLogger())
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestApplyTrainFlags(t *testing.T) {
	cfg := defaultConfig(t)
	cmd := newTrainCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--strategy", "pg", "--epsilon", "0", "--draws", "4", "--env", "env.json", "--explore", "net_e.json"}))

	require.NoError(t, applyTrainFlags(cmd, cfg))
	assert.Equal(t, "pg", cfg.Training.Strategy)
	assert.Equal(t, 0.0, cfg.Training.Epsilon)
	assert.Equal(t, 4, cfg.Training.Draws)
	assert.Equal(t, "env.json", cfg.Environment.ModelPath)
	assert.Equal(t, "net_e.json", cfg.Training.ExplorePath)
	assert.Equal(t, 512, cfg.Training.BatchSize)

	cmd = newTrainCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--epsilon", "1.5"}))
	err := applyTrainFlags(cmd, defaultConfig(t))
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigInvalid))
}

func TestRunWorker_RequiresKafkaAndPostgres(t *testing.T) {
	cfg := defaultConfig(t)
	err := RunWorker(context.Background(), cfg, WorkerOptions{}, logging.NewNopLogger())
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigInvalid))

	cfg.Messaging.Kafka.Enabled = true
	err = RunWorker(context.Background(), cfg, WorkerOptions{}, logging.NewNopLogger())
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigInvalid))
}

//Personal.AI order the ending
