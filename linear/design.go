package linear

import (
	"github.com/YuminosukeSato/winequality/core/parallel"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// design is X stored column-major together with y, both centered when an
// intercept is fitted.
type design struct {
	n, p  int
	cols  [][]float64
	y     []float64
	xMean []float64
	yMean float64
}

// validateXY checks shapes and values shared by every Fit.
func validateXY(op string, X, y mat.Matrix) (n, p int, err error) {
	n, p = X.Dims()
	if n == 0 || p == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	ry, cy := y.Dims()
	if ry != n {
		return 0, 0, errors.NewDimensionError(op, n, ry, 0)
	}
	if cy != 1 {
		return 0, 0, errors.NewValueError(op, "y must be a column vector")
	}
	if err := errors.CheckMatrix(op, X, 0); err != nil {
		return 0, 0, err
	}
	if err := errors.CheckMatrix(op, y, 0); err != nil {
		return 0, 0, err
	}
	return n, p, nil
}

func newDesign(X, y mat.Matrix, fitIntercept bool) *design {
	n, p := X.Dims()
	d := &design{
		n:     n,
		p:     p,
		cols:  make([][]float64, p),
		y:     make([]float64, n),
		xMean: make([]float64, p),
	}
	for j := range d.cols {
		d.cols[j] = make([]float64, n)
	}

	parallel.Rows(n, parallel.DefaultThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			d.y[i] = y.At(i, 0)
			for j := 0; j < p; j++ {
				d.cols[j][i] = X.At(i, j)
			}
		}
	})

	if !fitIntercept {
		return d
	}
	for j, col := range d.cols {
		d.xMean[j] = stat.Mean(col, nil)
		for i := range col {
			col[i] -= d.xMean[j]
		}
	}
	d.yMean = stat.Mean(d.y, nil)
	for i := range d.y {
		d.y[i] -= d.yMean
	}
	return d
}

// dense returns the design columns as an n×p matrix.
func (d *design) dense() *mat.Dense {
	m := mat.NewDense(d.n, d.p, nil)
	for j, col := range d.cols {
		m.SetCol(j, col)
	}
	return m
}

// intercept recovers b = mean(y) - mean(X)·w.
func (d *design) intercept(w []float64) float64 {
	b := d.yMean
	for j, wj := range w {
		b -= d.xMean[j] * wj
	}
	return b
}

// predictLinear computes X·w + b row by row.
func predictLinear(X mat.Matrix, w []float64, b float64) *mat.Dense {
	r, c := X.Dims()
	out := mat.NewDense(r, 1, nil)
	parallel.Rows(r, parallel.DefaultThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			v := b
			for j := 0; j < c; j++ {
				v += X.At(i, j) * w[j]
			}
			out.Set(i, 0, v)
		}
	})
	return out
}

func columnVector(y mat.Matrix) *mat.VecDense {
	if v, ok := y.(*mat.VecDense); ok {
		return v
	}
	r, _ := y.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, y.At(i, 0))
	}
	return v
}
