package errors

import (
	"math"
)

// maxReportedValues bounds how many offending values end up in an error message.
const maxReportedValues = 10

// CheckNumericalStability returns a NumericalInstabilityError listing the NaN
// and Inf entries of values.
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	var unstable []float64
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			unstable = append(unstable, v)
			if len(unstable) >= maxReportedValues {
				break
			}
		}
	}
	if len(unstable) > 0 {
		return NewNumericalInstabilityError(operation, unstable, iteration)
	}
	return nil
}

// Matrix is the read-only view CheckMatrix needs; gonum's mat.Matrix
// satisfies it.
type Matrix interface {
	Dims() (r, c int)
	At(i, j int) float64
}

// CheckMatrix is CheckNumericalStability over every entry of m.
func CheckMatrix(operation string, m Matrix, iteration int) error {
	rows, cols := m.Dims()
	var unstable []float64
	for i := 0; i < rows && len(unstable) < maxReportedValues; i++ {
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				unstable = append(unstable, v)
				if len(unstable) >= maxReportedValues {
					break
				}
			}
		}
	}
	if len(unstable) > 0 {
		return NewNumericalInstabilityError(operation, unstable, iteration)
	}
	return nil
}
