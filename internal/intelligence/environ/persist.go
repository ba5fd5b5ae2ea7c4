package environ

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/turtacn/DrugEx/internal/domain/molecule"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/pkg/errors"
)

const modelVersion = 1

type referenceDoc struct {
	SMILES string `json:"smiles"`
	Active bool   `json:"active"`
	OnBits []int  `json:"on_bits"`
}

type modelDoc struct {
	Version    int            `json:"version"`
	Kind       string         `json:"kind"`
	Config     KNNConfig      `json:"config"`
	CV         *CVReport      `json:"cv,omitempty"`
	References []referenceDoc `json:"references"`
}

// Encode writes the predictor as a JSON document.  cv, when non-nil, is
// stored alongside for reference.
func (m *KNN) Encode(w io.Writer, cv *CVReport) error {
	doc := modelDoc{Version: modelVersion, Kind: "knn", Config: m.cfg, CV: cv}
	doc.References = make([]referenceDoc, len(m.refs))
	for i, r := range m.refs {
		doc.References[i] = referenceDoc{SMILES: r.smiles, Active: r.active, OnBits: r.fp.OnBits()}
	}
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode environment model")
	}
	return nil
}

// MarshalBinary returns the encoded model without a cross-validation report.
func (m *KNN) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Encode(&buf, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a model written by Encode.
func Decode(r io.Reader, logger logging.Logger) (*KNN, error) {
	var doc modelDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEnvModelInvalid, "failed to decode environment model")
	}
	if doc.Version != modelVersion || doc.Kind != "knn" {
		return nil, errors.New(errors.ErrCodeEnvModelInvalid, "unsupported environment model").
			WithDetail(fmt.Sprintf("kind=%q version=%d", doc.Kind, doc.Version))
	}
	if len(doc.References) == 0 {
		return nil, errors.New(errors.ErrCodeEnvModelInvalid, "environment model has no references")
	}

	m, err := NewKNN(doc.Config, logger)
	if err != nil {
		return nil, err
	}
	m.refs = make([]reference, len(doc.References))
	for i, ref := range doc.References {
		for _, b := range ref.OnBits {
			if b < 0 || b >= doc.Config.Bits {
				return nil, errors.New(errors.ErrCodeEnvModelInvalid, "fingerprint bit out of range").
					WithDetail(fmt.Sprintf("reference=%d bit=%d", i, b))
			}
		}
		m.refs[i] = reference{
			smiles: ref.SMILES,
			active: ref.Active,
			fp:     molecule.FingerprintFromBits(doc.Config.Bits, ref.OnBits...),
		}
	}
	return m, nil
}

// Save writes the model to path through a temporary file.
func (m *KNN) Save(path string, cv *CVReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to create model directory").WithDetail(path)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to create model file").WithDetail(path)
	}
	if err := m.Encode(f, cv); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to close model file").WithDetail(path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to move model file into place").WithDetail(path)
	}
	return nil
}

// Load reads a model file.
func Load(path string, logger logging.Logger) (*KNN, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEnvModelInvalid, "failed to open environment model").WithDetail(path)
	}
	defer f.Close()
	return Decode(f, logger)
}

//Personal.AI order the ending
