package linear

import (
	"math/rand/v2"
	"testing"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// createBenchmarkData はベンチマーク用のデータを生成する
func createBenchmarkData(rows, cols int) (*mat.Dense, *mat.Dense) {
	// シードを固定して再現性を確保
	rng := rand.New(rand.NewPCG(42, 42))

	X := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			X.Set(i, j, rng.Float64()*2.0-1.0)
		}
	}

	trueWeights := make([]float64, cols)
	for j := 0; j < cols; j++ {
		trueWeights[j] = float64(j+1) * 0.5
	}

	// y = X * weights + 1 + 小さなノイズ
	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		sum := 1.0
		for j := 0; j < cols; j++ {
			sum += X.At(i, j) * trueWeights[j]
		}
		sum += (rng.Float64() - 0.5) * 0.1
		y.Set(i, 0, sum)
	}

	return X, y
}

var benchSizes = []struct {
	name string
	rows int
	cols int
}{
	{"Small_100x11", 100, 11},
	{"Wine_1599x11", 1599, 11},
	{"Medium_5000x20", 5000, 20},
	{"Large_20000x50", 20000, 50},
}

// BenchmarkElasticNetFit はFitメソッドのベンチマークを実行する
func BenchmarkElasticNetFit(b *testing.B) {
	prev := errors.SetWarningHandler(func(error) {})
	defer errors.SetWarningHandler(prev)

	for _, size := range benchSizes {
		b.Run(size.name, func(b *testing.B) {
			X, y := createBenchmarkData(size.rows, size.cols)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				enet := NewElasticNet(WithAlpha(0.5), WithL1Ratio(0.5))
				if err := enet.Fit(X, y); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkLinearRegressionFit はQR分解による最小二乗のベンチマーク
func BenchmarkLinearRegressionFit(b *testing.B) {
	for _, size := range benchSizes {
		b.Run(size.name, func(b *testing.B) {
			X, y := createBenchmarkData(size.rows, size.cols)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				lr := NewLinearRegression()
				if err := lr.Fit(X, y); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkDesign は列優先コピーと中心化のみのベンチマーク
func BenchmarkDesign(b *testing.B) {
	for _, size := range benchSizes {
		b.Run(size.name, func(b *testing.B) {
			X, y := createBenchmarkData(size.rows, size.cols)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = newDesign(X, y, true)
			}
		})
	}
}
