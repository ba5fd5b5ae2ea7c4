// Package environ provides the reward environments that score generated
// molecules during reinforcement learning.
//
// The default predictor is a k-nearest-neighbour classifier over Morgan
// fingerprints.  It reports the probability that a molecule is active against
// the target of the training set; invalid molecules score 0.  Decorators add
// Redis memoization (Cached) and Prometheus instrumentation (Instrumented).
package environ

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/DrugEx/internal/domain/molecule"
	"github.com/turtacn/DrugEx/internal/domain/policy"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// DefaultK is the neighbour count used when KNNConfig.K is zero.
const DefaultK = 5

// KNNConfig describes the fingerprint and neighbourhood of a KNN predictor.
type KNNConfig struct {
	K      int `json:"k"`
	Radius int `json:"radius"`
	Bits   int `json:"bits"`
}

// DefaultKNNConfig returns ECFP6-style fingerprints (radius 3, 2048 bits)
// with five neighbours.
func DefaultKNNConfig() KNNConfig {
	return KNNConfig{
		K:      DefaultK,
		Radius: molecule.DefaultMorganRadius,
		Bits:   molecule.DefaultFingerprintBits,
	}
}

// Validate checks the configuration.
func (c KNNConfig) Validate() error {
	if c.K < 1 {
		return errors.New(errors.ErrCodeEnvModelInvalid, "k must be positive").
			WithDetail(fmt.Sprintf("k=%d", c.K))
	}
	if c.Radius < 0 {
		return errors.New(errors.ErrCodeEnvModelInvalid, "fingerprint radius must not be negative")
	}
	if c.Bits < 8 {
		return errors.New(errors.ErrCodeEnvModelInvalid, "fingerprint must have at least 8 bits").
			WithDetail(fmt.Sprintf("bits=%d", c.Bits))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// KNN predictor
// ─────────────────────────────────────────────────────────────────────────────

type reference struct {
	smiles string
	active bool
	fp     *molecule.Fingerprint
}

// KNN scores molecules by the Tanimoto-weighted vote of their K most similar
// reference molecules.
//
// A KNN is read-only after Fit, so Score may be called concurrently.
// SetParallelism must not race with Score.
type KNN struct {
	cfg     KNNConfig
	refs    []reference
	threads int
	logger  logging.Logger
}

var _ policy.Environment = (*KNN)(nil)

// NewKNN creates an empty predictor.  Call Fit before Score.
func NewKNN(cfg KNNConfig, logger logging.Logger) (*KNN, error) {
	if cfg.K == 0 {
		cfg.K = DefaultK
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &KNN{cfg: cfg, threads: 1, logger: logger.Named("knn")}, nil
}

// Config returns the predictor configuration.
func (m *KNN) Config() KNNConfig { return m.cfg }

// Len returns the number of reference molecules.
func (m *KNN) Len() int { return len(m.refs) }

// SetParallelism bounds the number of molecules scored concurrently.
func (m *KNN) SetParallelism(n int) {
	if n < 1 {
		n = 1
	}
	m.threads = n
}

// Fit replaces the reference set with records.  Records whose SMILES cannot
// be fingerprinted are skipped with a warning.
func (m *KNN) Fit(ctx context.Context, records []Record) error {
	fps, err := m.fingerprints(ctx, records)
	if err != nil {
		return err
	}

	refs := make([]reference, 0, len(records))
	for i, r := range records {
		if fps[i] == nil {
			m.logger.Warn("skipping reference molecule", logging.String("smiles", r.SMILES))
			continue
		}
		refs = append(refs, reference{smiles: r.SMILES, active: r.Active, fp: fps[i]})
	}
	if len(refs) == 0 {
		return errors.New(errors.ErrCodeEnvNotEnoughLabels, "no reference molecule could be fingerprinted")
	}
	m.refs = refs
	m.logger.Info("knn fitted",
		logging.Int("references", len(refs)),
		logging.Int("skipped", len(records)-len(refs)))
	return nil
}

// fingerprints computes every record's fingerprint in parallel.  Entries that
// fail to parse are nil.
func (m *KNN) fingerprints(ctx context.Context, records []Record) ([]*molecule.Fingerprint, error) {
	fps := make([]*molecule.Fingerprint, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.threads)
	for i, r := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fp, err := molecule.CalculateMorganFingerprint(r.SMILES, m.cfg.Radius, m.cfg.Bits)
			if err == nil {
				fps[i] = fp
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEnvScoringFailed, "fingerprinting interrupted")
	}
	return fps, nil
}

// Predict returns the active-class probability of smiles, or 0 when it is
// not a valid molecule.
func (m *KNN) Predict(smiles string) float64 {
	fp, err := molecule.CalculateMorganFingerprint(smiles, m.cfg.Radius, m.cfg.Bits)
	if err != nil {
		return 0
	}
	return m.predict(fp, m.refs)
}

type neighbour struct {
	sim    float64
	active bool
}

// predict votes over the K nearest refs.  Votes are weighted by similarity;
// when every neighbour has similarity 0 the vote is unweighted.
func (m *KNN) predict(fp *molecule.Fingerprint, refs []reference) float64 {
	if len(refs) == 0 {
		return 0
	}
	nb := make([]neighbour, len(refs))
	for i, r := range refs {
		nb[i] = neighbour{sim: molecule.Tanimoto(fp, r.fp), active: r.active}
	}
	sort.SliceStable(nb, func(i, j int) bool { return nb[i].sim > nb[j].sim })

	k := m.cfg.K
	if k > len(nb) {
		k = len(nb)
	}
	var weight, vote float64
	actives := 0
	for _, n := range nb[:k] {
		weight += n.sim
		if n.active {
			vote += n.sim
			actives++
		}
	}
	if weight == 0 {
		return float64(actives) / float64(k)
	}
	return vote / weight
}

// Score implements policy.Environment.  Molecules are scored in parallel with
// at most SetParallelism workers; the output order follows smiles.
func (m *KNN) Score(ctx context.Context, smiles []string) ([]float64, error) {
	if len(m.refs) == 0 {
		return nil, errors.New(errors.ErrCodeEnvModelInvalid, "knn has no reference molecules")
	}
	out := make([]float64, len(smiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.threads)
	for i, s := range smiles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = m.Predict(s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEnvScoringFailed, "scoring interrupted")
	}
	return out, nil
}

//Personal.AI order the ending
