package metrics

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// captureWarnings collects warnings raised during the test.
func captureWarnings(t *testing.T) *[]error {
	t.Helper()
	var got []error
	prev := errors.SetWarningHandler(func(w error) { got = append(got, w) })
	t.Cleanup(func() { errors.SetWarningHandler(prev) })
	return &got
}

func vec(v ...float64) *mat.VecDense {
	return mat.NewVecDense(len(v), v)
}

// Quality scores of five held-out wines and two sets of predictions.
var (
	qualityTrue  = vec(5, 6, 7, 5, 4)
	qualityClose = vec(5.5, 6, 6.5, 5, 4.5)
	qualityMean  = vec(5.4, 5.4, 5.4, 5.4, 5.4)
)

func TestRegressionMetrics(t *testing.T) {
	tests := []struct {
		name   string
		metric func(yTrue, yPred *mat.VecDense) (float64, error)
		yPred  *mat.VecDense
		want   float64
	}{
		{"MSE exact", MSE, qualityTrue, 0},
		// residuals 0.5, 0, -0.5, 0, 0.5
		{"MSE close", MSE, qualityClose, 0.75 / 5},
		{"RMSE close", RMSE, qualityClose, math.Sqrt(0.75 / 5)},
		{"MAE close", MAE, qualityClose, 1.5 / 5},
		{"MAE mean", MAE, qualityMean, (0.4 + 0.6 + 1.6 + 0.4 + 1.4) / 5},
		{"R2 exact", R2Score, qualityTrue, 1},
		// TSS = 0.16+0.36+2.56+0.16+1.96 = 5.2
		{"R2 close", R2Score, qualityClose, 1 - 0.75/5.2},
		{"R2 mean predictor", R2Score, qualityMean, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.metric(qualityTrue, tt.yPred)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegressionMetricsRejectBadInput(t *testing.T) {
	metrics := map[string]func(yTrue, yPred *mat.VecDense) (float64, error){
		"MSE":  MSE,
		"RMSE": RMSE,
		"MAE":  MAE,
		"R2":   R2Score,
	}
	for name, metric := range metrics {
		t.Run(name, func(t *testing.T) {
			_, err := metric(vec(1, 2, 3), vec(1, 2))
			var de *errors.DimensionError
			if !errors.As(err, &de) {
				t.Errorf("length mismatch: got %v, want DimensionError", err)
			}
			_, err = metric(&mat.VecDense{}, &mat.VecDense{})
			var ve *errors.ValueError
			if !errors.As(err, &ve) {
				t.Errorf("empty input: got %v, want ValueError", err)
			}
		})
	}
}

func TestMatrixVariants(t *testing.T) {
	yTrue := mat.NewDense(5, 1, []float64{5, 6, 7, 5, 4})
	yPred := mat.NewDense(5, 1, []float64{5.5, 6, 6.5, 5, 4.5})

	mse, err := MSEMatrix(yTrue, yPred)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(mse-0.15) > 1e-12 {
		t.Errorf("MSEMatrix = %v, want 0.15", mse)
	}
	r2, err := R2ScoreMatrix(yTrue, yPred)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(r2-(1-0.75/5.2)) > 1e-12 {
		t.Errorf("R2ScoreMatrix = %v", r2)
	}

	wide := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	if _, err := MSEMatrix(wide, wide); err == nil {
		t.Error("expected error for a multi-column matrix")
	}
}

func TestR2ScoreConstantTarget(t *testing.T) {
	captureWarnings(t)
	tests := []struct {
		name  string
		yPred *mat.VecDense
		want  float64
	}{
		{"perfect", vec(6, 6, 6), 1},
		{"imperfect", vec(6, 5, 6), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := R2Score(vec(6, 6, 6), tt.yPred)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("R2Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestR2ScoreConstantTargetWarns(t *testing.T) {
	warnings := captureWarnings(t)

	yTrue := mat.NewVecDense(4, []float64{6, 6, 6, 6})
	yPred := mat.NewVecDense(4, []float64{5.5, 6, 6.5, 6})
	if _, err := R2Score(yTrue, yPred); err != nil {
		t.Fatal(err)
	}

	if len(*warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(*warnings))
	}
	var w *errors.UndefinedMetricWarning
	if !errors.As((*warnings)[0], &w) {
		t.Fatalf("expected UndefinedMetricWarning, got %T", (*warnings)[0])
	}
	if w.Result != 0 {
		t.Errorf("warning result = %v, want 0", w.Result)
	}
}

func TestEvaluateRegression(t *testing.T) {
	yTrue := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	yPred := mat.NewDense(4, 1, []float64{1.5, 2.5, 2.5, 3.5})

	report, err := EvaluateRegression(yTrue, yPred)
	if err != nil {
		t.Fatal(err)
	}

	// The "rmse" slot carries the mean squared error.
	if math.Abs(report.RMSE-0.25) > 1e-12 {
		t.Errorf("RMSE field = %v, want MSE 0.25", report.RMSE)
	}
	if math.Abs(report.MAE-0.5) > 1e-12 {
		t.Errorf("MAE = %v, want 0.5", report.MAE)
	}
	if math.Abs(report.R2-0.8) > 1e-12 {
		t.Errorf("R2 = %v, want 0.8", report.R2)
	}

	m := report.Map()
	if len(m) != 3 || m[KeyRMSE] != report.RMSE || m[KeyMAE] != report.MAE || m[KeyR2] != report.R2 {
		t.Errorf("Map() = %v", m)
	}
}

func TestEvaluateRegressionRejectsBadShapes(t *testing.T) {
	if _, err := EvaluateRegression(mat.NewDense(3, 1, nil), mat.NewDense(2, 1, nil)); err == nil {
		t.Error("expected dimension error")
	}
	if _, err := EvaluateRegression(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil)); err == nil {
		t.Error("expected column vector error")
	}
}

// MSE is non-negative and R² never exceeds 1 for arbitrary inputs.
func TestMetricBounds(t *testing.T) {
	captureWarnings(t)
	rng := rand.New(rand.NewPCG(7, 7))
	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.IntN(50)
		yTrue := mat.NewVecDense(n, nil)
		yPred := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			yTrue.SetVec(i, rng.NormFloat64()*3+5)
			yPred.SetVec(i, rng.NormFloat64()*3+5)
		}
		mse, err := MSE(yTrue, yPred)
		if err != nil {
			t.Fatal(err)
		}
		r2, err := R2Score(yTrue, yPred)
		if err != nil {
			t.Fatal(err)
		}
		if mse < 0 {
			t.Errorf("trial %d: MSE = %v < 0", trial, mse)
		}
		if r2 > 1 {
			t.Errorf("trial %d: R2 = %v > 1", trial, r2)
		}
	}
}

func BenchmarkEvaluateRegression(b *testing.B) {
	// Roughly the size of the red wine test split.
	const n = 400
	rng := rand.New(rand.NewPCG(1, 1))
	yTrue := mat.NewDense(n, 1, nil)
	yPred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		q := float64(3 + rng.IntN(6))
		yTrue.Set(i, 0, q)
		yPred.Set(i, 0, q+rng.NormFloat64()*0.6)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = EvaluateRegression(yTrue, yPred)
	}
}
