package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DefaultDelimiter separates fields unless a Loader overrides it.
const DefaultDelimiter = ','

// ReadCSV parses delimited text whose first record is the header and every
// other cell is a number. Empty cells become NaN and raise a single
// DataConversionWarning for the whole input.
func ReadCSV(r io.Reader, delim rune) (*Frame, error) {
	const op = "dataset.ReadCSV"
	if delim == 0 {
		delim = DefaultDelimiter
	}

	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewModelError(op, "missing header", errors.ErrEmptyData)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV header")
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	var (
		values  []float64
		rows    int
		missing int
	)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read CSV record")
		}
		rows++
		for j, cell := range record {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				values = append(values, math.NaN())
				missing++
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.NewParseError(rows, columns[j], cell)
			}
			values = append(values, v)
		}
	}
	if rows == 0 {
		return nil, errors.NewModelError(op, "no data rows", errors.ErrEmptyData)
	}
	if missing > 0 {
		errors.Warn(errors.NewDataConversionWarning("empty string", "float64",
			fmt.Sprintf("%d empty cells were read as NaN", missing)))
	}

	return NewFrame(columns, mat.NewDense(rows, len(columns), values))
}
