package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/DrugEx/internal/domain/vocabulary"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// checkpointVersion is bumped whenever the document layout changes.
const checkpointVersion = 1

type matrixDoc struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

type checkpointDoc struct {
	Version   int       `json:"version"`
	Tokens    []string  `json:"tokens"`
	MaxLen    int       `json:"max_len"`
	Config    Config    `json:"config"`
	Embedding matrixDoc `json:"embedding"`
	Output    matrixDoc `json:"output"`
	Bias      []float64 `json:"bias"`
}

func toDoc(d *mat.Dense) matrixDoc {
	r, c := d.Dims()
	return matrixDoc{Rows: r, Cols: c, Data: slices.Clone(d.RawMatrix().Data)}
}

// Encode writes the parameters as a JSON checkpoint.  Optimizer state is not
// saved.
func (m *Model) Encode(w io.Writer) error {
	doc := checkpointDoc{
		Version:   checkpointVersion,
		Tokens:    m.voc.Tokens(),
		MaxLen:    m.maxLen,
		Config:    m.cfg,
		Embedding: toDoc(m.emb),
		Output:    toDoc(m.out),
		Bias:      slices.Clone(m.bias),
	}
	if err := json.NewEncoder(w).Encode(&doc); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode checkpoint")
	}
	return nil
}

// MarshalBinary returns the encoded checkpoint.
func (m *Model) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a checkpoint.  When voc is nil the vocabulary stored in the
// checkpoint is used; otherwise it must match token for token.
func Decode(r io.Reader, voc *vocabulary.Vocabulary, rng *rand.Rand, logger logging.Logger) (*Model, error) {
	var doc checkpointDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCheckpointInvalid, "failed to decode checkpoint")
	}
	if doc.Version != checkpointVersion {
		return nil, errors.New(errors.ErrCodeCheckpointInvalid, "unsupported checkpoint version").
			WithDetail(fmt.Sprintf("version=%d", doc.Version))
	}
	if rng == nil {
		return nil, errors.New(errors.ErrCodeGeneratorShape, "random source is required")
	}

	if voc == nil {
		if len(doc.Tokens) < 3 {
			return nil, errors.New(errors.ErrCodeCheckpointInvalid, "checkpoint has no vocabulary")
		}
		v, err := vocabulary.New(doc.Tokens[2:], doc.MaxLen)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeCheckpointInvalid, "checkpoint vocabulary is invalid")
		}
		voc = v
	}
	if !slices.Equal(voc.Tokens(), doc.Tokens) {
		return nil, errors.New(errors.ErrCodeCheckpointInvalid, "checkpoint vocabulary does not match")
	}
	if err := doc.Config.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCheckpointInvalid, "checkpoint configuration is invalid")
	}

	m := newModel(voc, doc.Config, rng, logger)
	v, h := voc.Size(), doc.Config.EmbeddingDim
	for name, pair := range map[string]struct {
		doc matrixDoc
		dst *mat.Dense
	}{
		"embedding": {doc.Embedding, m.emb},
		"output":    {doc.Output, m.out},
	} {
		if pair.doc.Rows != v || pair.doc.Cols != h || len(pair.doc.Data) != v*h {
			return nil, errors.New(errors.ErrCodeCheckpointInvalid, "checkpoint matrix has wrong shape").
				WithDetail(fmt.Sprintf("%s=%dx%d want=%dx%d", name, pair.doc.Rows, pair.doc.Cols, v, h))
		}
		copy(pair.dst.RawMatrix().Data, pair.doc.Data)
	}
	if len(doc.Bias) != v {
		return nil, errors.New(errors.ErrCodeCheckpointInvalid, "checkpoint bias has wrong length")
	}
	copy(m.bias, doc.Bias)
	return m, nil
}

// Save writes the checkpoint to path, creating parent directories.
func (m *Model) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeCheckpointSave, "failed to create checkpoint directory").WithDetail(path)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCheckpointSave, "failed to create checkpoint").WithDetail(path)
	}
	if err := m.Encode(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCheckpointSave, "failed to close checkpoint").WithDetail(path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, errors.ErrCodeCheckpointSave, "failed to move checkpoint into place").WithDetail(path)
	}
	return nil
}

// Load reads a checkpoint file.
func Load(path string, voc *vocabulary.Vocabulary, rng *rand.Rand, logger logging.Logger) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrCodeCheckpointNotFound, "checkpoint not found").WithDetail(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeCheckpointInvalid, "failed to open checkpoint").WithDetail(path)
	}
	defer f.Close()
	return Decode(f, voc, rng, logger)
}

//Personal.AI order the ending
