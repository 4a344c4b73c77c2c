// Package dataset loads delimited tabular data into numeric frames.
package dataset

import (
	"fmt"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ColumnNotFoundError is returned when a named column is missing.
type ColumnNotFoundError struct {
	Name    string
	Columns []string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("winequality: column %q not found (have %v)", e.Name, e.Columns)
}

// Frame is a named-column numeric table. It is not modified after it is
// built; Drop and Rows return new frames.
type Frame struct {
	Columns []string
	Data    *mat.Dense
	index   map[string]int
}

// NewFrame builds a frame over data. len(columns) must equal the column count
// of data and names must be unique.
func NewFrame(columns []string, data *mat.Dense) (*Frame, error) {
	_, c := data.Dims()
	if len(columns) != c {
		return nil, errors.NewDimensionError("dataset.NewFrame", c, len(columns), 1)
	}
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if _, dup := index[name]; dup {
			return nil, errors.NewValidationError("columns", "duplicate column name", name)
		}
		index[name] = i
	}
	return &Frame{
		Columns: append([]string(nil), columns...),
		Data:    data,
		index:   index,
	}, nil
}

// Dims returns the number of rows and columns.
func (f *Frame) Dims() (rows, cols int) {
	if f.Data == nil || f.Data.IsEmpty() {
		return 0, len(f.Columns)
	}
	return f.Data.Dims()
}

// ColumnIndex returns the position of name.
func (f *Frame) ColumnIndex(name string) (int, error) {
	i, ok := f.index[name]
	if !ok {
		return 0, errors.WithStack(&ColumnNotFoundError{Name: name, Columns: f.Columns})
	}
	return i, nil
}

// Col returns a copy of the named column.
func (f *Frame) Col(name string) (*mat.VecDense, error) {
	j, err := f.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	col := mat.Col(nil, j, f.Data)
	return mat.NewVecDense(len(col), col), nil
}

// Drop returns a frame without the named columns. Every name must exist.
func (f *Frame) Drop(names ...string) (*Frame, error) {
	drop := make(map[int]bool, len(names))
	for _, name := range names {
		j, err := f.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		drop[j] = true
	}

	rows, _ := f.Dims()
	keep := make([]string, 0, len(f.Columns)-len(drop))
	keepIdx := make([]int, 0, cap(keep))
	for j, name := range f.Columns {
		if !drop[j] {
			keep = append(keep, name)
			keepIdx = append(keepIdx, j)
		}
	}
	if len(keep) == 0 || rows == 0 {
		return nil, errors.NewModelError("dataset.Drop", "no data left", errors.ErrEmptyData)
	}

	data := mat.NewDense(rows, len(keep), nil)
	for k, j := range keepIdx {
		data.SetCol(k, mat.Col(nil, j, f.Data))
	}
	return NewFrame(keep, data)
}

// Rows returns a frame holding the given rows in order.
func (f *Frame) Rows(idx []int) (*Frame, error) {
	rows, cols := f.Dims()
	if len(idx) == 0 {
		return nil, errors.NewModelError("dataset.Rows", "no rows selected", errors.ErrEmptyData)
	}
	data := mat.NewDense(len(idx), cols, nil)
	for k, i := range idx {
		if i < 0 || i >= rows {
			return nil, errors.NewValueError("dataset.Rows", fmt.Sprintf("row index %d out of range [0,%d)", i, rows))
		}
		data.SetRow(k, f.Data.RawRowView(i))
	}
	return NewFrame(f.Columns, data)
}

// XY splits the frame into a feature frame and the target column.
func (f *Frame) XY(target string) (*Frame, *mat.VecDense, error) {
	y, err := f.Col(target)
	if err != nil {
		return nil, nil, err
	}
	X, err := f.Drop(target)
	if err != nil {
		return nil, nil, err
	}
	return X, y, nil
}
