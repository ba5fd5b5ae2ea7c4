package environ

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/turtacn/DrugEx/internal/domain/vocabulary"
	"github.com/turtacn/DrugEx/pkg/errors"
)

const (
	// PChEMBLColumn holds the measured activity.
	PChEMBLColumn = "PCHEMBL_VALUE"
	// DefaultActiveThreshold is the pChEMBL value at or above which a
	// molecule is labelled active.
	DefaultActiveThreshold = 6.5
)

// Record is one curated, labelled molecule of an environment dataset.
// Molecules without a measured value are kept as inactives with PChEMBL 0.
type Record struct {
	SMILES   string
	PChEMBL  float64
	Measured bool
	Active   bool
}

// DatasetStats counts what ReadDataset did with the input rows.
type DatasetStats struct {
	Read       int
	Rejected   int
	Duplicates int
	Actives    int
	Inactives  int
}

// ReadDataset parses a tab-separated activity table with CANONICAL_SMILES and
// PCHEMBL_VALUE columns.  Every SMILES is curated the same way as the
// generator corpus.  Duplicates after curation keep their highest measured
// value; the output keeps first-seen order.
func ReadDataset(r io.Reader, threshold float64) ([]Record, DatasetStats, error) {
	var stats DatasetStats

	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, stats, errors.Wrap(err, errors.ErrCodeEnvDatasetInvalid, "failed to read dataset header")
	}
	smilesCol, valueCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case vocabulary.SMILESColumn:
			smilesCol = i
		case PChEMBLColumn:
			valueCol = i
		}
	}
	if smilesCol < 0 || valueCol < 0 {
		return nil, stats, errors.New(errors.ErrCodeEnvDatasetInvalid, "dataset needs "+
			vocabulary.SMILESColumn+" and "+PChEMBLColumn+" columns")
	}

	index := make(map[string]int)
	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, errors.Wrap(err, errors.ErrCodeEnvDatasetInvalid, "failed to read dataset row")
		}
		if smilesCol >= len(row) || strings.TrimSpace(row[smilesCol]) == "" {
			continue
		}
		stats.Read++

		smiles, ok := vocabulary.CurateSMILES(row[smilesCol])
		if !ok || !vocabulary.IsValid(smiles) {
			stats.Rejected++
			continue
		}

		rec := Record{SMILES: smiles}
		if valueCol < len(row) {
			if raw := strings.TrimSpace(row[valueCol]); raw != "" {
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					stats.Rejected++
					continue
				}
				rec.PChEMBL, rec.Measured = v, true
			}
		}

		if at, dup := index[smiles]; dup {
			stats.Duplicates++
			prev := &records[at]
			if rec.Measured && (!prev.Measured || rec.PChEMBL > prev.PChEMBL) {
				prev.PChEMBL, prev.Measured = rec.PChEMBL, true
			}
			continue
		}
		index[smiles] = len(records)
		records = append(records, rec)
	}

	for i := range records {
		records[i].Active = records[i].Measured && records[i].PChEMBL >= threshold
		if records[i].Active {
			stats.Actives++
		} else {
			stats.Inactives++
		}
	}
	return records, stats, nil
}

// LoadDataset reads a dataset file from disk.
func LoadDataset(path string, threshold float64) ([]Record, DatasetStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, DatasetStats{}, errors.Wrap(err, errors.ErrCodeEnvDatasetInvalid, "failed to open dataset").WithDetail(path)
	}
	defer f.Close()
	return ReadDataset(f, threshold)
}

//Personal.AI order the ending
