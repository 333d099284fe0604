package scape

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"polyfit/internal/model"
)

// LoadSamplesCSV reads ground-truth samples from a CSV file. Each row holds
// kind.Inputs() input columns followed by the expected output. A header row
// is skipped when its first cell is not numeric.
func LoadSamplesCSV(path string, kind model.Kind) (model.SampleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSamplesCSV(f, kind)
}

func ReadSamplesCSV(r io.Reader, kind model.Kind) (model.SampleSet, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = kind.Inputs() + 1

	var samples model.SampleSet
	for row := 0; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read samples row %d: %w", row, err)
		}
		values := make([]float64, len(record))
		var parseErr error
		for i, cell := range record {
			values[i], parseErr = strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if parseErr != nil {
				break
			}
		}
		if parseErr != nil {
			if row == 0 {
				continue
			}
			return nil, fmt.Errorf("parse samples row %d: %w", row, parseErr)
		}
		samples = append(samples, model.Sample{
			Inputs:   values[:kind.Inputs()],
			Expected: values[kind.Inputs()],
		})
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples in csv", model.ErrDivisionByZero)
	}
	return samples, nil
}
