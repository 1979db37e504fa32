package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadCSV parses a CSV file into a dataset. The first record holds the
// headers. Blank lines are skipped and short rows are padded with nil cells;
// a row with more cells than headers is rejected.
func ReadCSV(fileName string, r io.Reader) (Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Dataset{}, fmt.Errorf("%w: %s is empty", ErrInvalidDataset, fileName)
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("%w: %s: %v", ErrInvalidDataset, fileName, err)
	}
	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	data := [][]any{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("%w: %s: %v", ErrInvalidDataset, fileName, err)
		}
		if len(rec) > len(headers) {
			line, _ := cr.FieldPos(0)
			return Dataset{}, fmt.Errorf("%w: %s line %d has %d cells, want %d", ErrInvalidDataset, fileName, line, len(rec), len(headers))
		}
		row := make([]any, len(headers))
		for i, cell := range rec {
			row[i] = cell
		}
		data = append(data, row)
	}

	d := NewDataset(fileName, headers, data)
	d.FileType = "text/csv"
	return d, d.Validate()
}
