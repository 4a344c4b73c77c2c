package linear

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func TestLinearRegressionMatchesNormalEquations(t *testing.T) {
	X, y := createBenchmarkData(150, 8)
	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	wantCoef, wantIntercept := normalEquations(t, X, y)
	assertClose(t, "coef", lr.Coef(), wantCoef, 1e-8)
	if math.Abs(lr.Intercept()-wantIntercept) > 1e-8 {
		t.Errorf("intercept = %v, want %v", lr.Intercept(), wantIntercept)
	}
	if lr.Rank() != 8 {
		t.Errorf("Rank() = %d, want 8", lr.Rank())
	}
}

func TestLinearRegressionExactFit(t *testing.T) {
	// y = 2x₁ − 3x₂ + 1
	X := mat.NewDense(5, 2, []float64{
		1, 0,
		0, 1,
		2, 1,
		1, 3,
		4, 2,
	})
	y := mat.NewDense(5, 1, nil)
	for i := 0; i < 5; i++ {
		y.Set(i, 0, 2*X.At(i, 0)-3*X.At(i, 1)+1)
	}

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	assertClose(t, "coef", lr.Coef(), []float64{2, -3}, 1e-10)
	if math.Abs(lr.Intercept()-1) > 1e-10 {
		t.Errorf("intercept = %v, want 1", lr.Intercept())
	}

	score, err := lr.Score(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(score-1) > 1e-12 {
		t.Errorf("Score() = %v, want 1", score)
	}
}

func TestLinearRegressionUnderdetermined(t *testing.T) {
	// More features than samples: the minimum norm solution still interpolates.
	X := mat.NewDense(2, 3, []float64{
		1, 2, 3,
		4, 5, 7,
	})
	y := mat.NewDense(2, 1, []float64{1, 2})

	lr := newLinearRegression(false)
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	pred, err := lr.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(pred, y, 1e-9) {
		t.Errorf("predictions %v do not interpolate y", mat.Formatted(pred))
	}
	if lr.Rank() != 2 {
		t.Errorf("Rank() = %d, want 2", lr.Rank())
	}
}

func TestLinearRegressionErrors(t *testing.T) {
	lr := NewLinearRegression()
	if _, err := lr.Predict(mat.NewDense(1, 1, nil)); err == nil {
		t.Error("expected NotFittedError")
	}

	err := lr.Fit(&mat.Dense{}, &mat.Dense{})
	if !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("expected ErrEmptyData, got %v", err)
	}
}

func TestLinearRegressionWeightsRoundTrip(t *testing.T) {
	X, y := createBenchmarkData(60, 4)
	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	w, err := lr.ExportWeights()
	if err != nil {
		t.Fatal(err)
	}

	restored := NewLinearRegression()
	if err := restored.ImportWeights(w); err != nil {
		t.Fatal(err)
	}
	want, _ := lr.Predict(X)
	got, err := restored.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(want, got, 1e-12) {
		t.Error("restored model predicts differently")
	}

	if err := NewElasticNet().ImportWeights(w); err == nil {
		t.Error("ElasticNet must reject LinearRegression weights")
	}
}
