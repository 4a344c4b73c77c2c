package linear

import (
	"context"
	"math"
	"testing"

	"github.com/YuminosukeSato/winequality/core/model"
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

// normalEquations solves [1 X]·β = y by (AᵀA)β = Aᵀy, independent of the
// package's own solvers.
func normalEquations(t *testing.T, X, y mat.Matrix) (coef []float64, intercept float64) {
	t.Helper()
	r, c := X.Dims()
	A := mat.NewDense(r, c+1, nil)
	for i := 0; i < r; i++ {
		A.Set(i, 0, 1)
		for j := 0; j < c; j++ {
			A.Set(i, j+1, X.At(i, j))
		}
	}
	var ata, aty, beta mat.Dense
	ata.Mul(A.T(), A)
	aty.Mul(A.T(), y)
	if err := beta.Solve(&ata, &aty); err != nil {
		t.Fatalf("reference solve failed: %v", err)
	}
	coef = make([]float64, c)
	for j := range coef {
		coef[j] = beta.At(j+1, 0)
	}
	return coef, beta.At(0, 0)
}

func assertClose(t *testing.T, name string, got, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: len %d, want %d", name, len(got), len(want))
	}
	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Errorf("%s[%d] = %.10f, want %.10f", name, i, got[i], want[i])
		}
	}
}

func TestElasticNetAlphaZeroMatchesLeastSquares(t *testing.T) {
	warnings := captureWarnings(t)
	X, y := createBenchmarkData(100, 11)

	enet := NewElasticNet(WithAlpha(0), WithL1Ratio(0))
	if err := enet.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	wantCoef, wantIntercept := normalEquations(t, X, y)
	assertClose(t, "coef", enet.Coef(), wantCoef, 1e-8)
	if math.Abs(enet.Intercept()-wantIntercept) > 1e-8 {
		t.Errorf("intercept = %v, want %v", enet.Intercept(), wantIntercept)
	}
	if enet.NIter() != 0 {
		t.Errorf("NIter() = %d, want 0 for the least squares path", enet.NIter())
	}
	if len(*warnings) != 1 {
		t.Errorf("expected one warning for alpha=0, got %d", len(*warnings))
	}
}

func TestElasticNetRidgeClosedForm(t *testing.T) {
	captureWarnings(t)
	X, y := createBenchmarkData(200, 5)
	const alpha = 0.3
	n, p := X.Dims()

	enet := NewElasticNet(WithAlpha(alpha), WithL1Ratio(0), WithTol(1e-12), WithMaxIter(100000))
	if err := enet.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	// With ρ = 0 the minimizer solves (XcᵀXc + nαI)w = Xcᵀyc.
	d := newDesign(X, y, true)
	Xc := d.dense()
	yc := mat.NewDense(n, 1, d.y)
	var lhs, rhs, w mat.Dense
	lhs.Mul(Xc.T(), Xc)
	for j := 0; j < p; j++ {
		lhs.Set(j, j, lhs.At(j, j)+float64(n)*alpha)
	}
	rhs.Mul(Xc.T(), yc)
	if err := w.Solve(&lhs, &rhs); err != nil {
		t.Fatal(err)
	}
	assertClose(t, "coef", enet.Coef(), mat.Col(nil, 0, &w), 1e-6)
}

func TestElasticNetSingleFeatureSoftThreshold(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := mat.NewDense(5, 1, []float64{2.1, 3.9, 6.2, 7.8, 10.0})
	const alpha, rho = 0.1, 0.5

	enet := NewElasticNet(WithAlpha(alpha), WithL1Ratio(rho))
	if err := enet.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	// Centered x = [-2..2], xᵀx = 10; w = S(xᵀy, nαρ) / (xᵀx + nα(1−ρ)).
	xc := []float64{-2, -1, 0, 1, 2}
	yMean := (2.1 + 3.9 + 6.2 + 7.8 + 10.0) / 5
	var xty float64
	for i, v := range []float64{2.1, 3.9, 6.2, 7.8, 10.0} {
		xty += xc[i] * (v - yMean)
	}
	n := 5.0
	want := (xty - n*alpha*rho) / (10 + n*alpha*(1-rho))

	if got := enet.Coef()[0]; math.Abs(got-want) > 1e-10 {
		t.Errorf("coef = %v, want %v", got, want)
	}
	if got := enet.Intercept(); math.Abs(got-(yMean-3*want)) > 1e-10 {
		t.Errorf("intercept = %v, want %v", got, yMean-3*want)
	}
}

func TestElasticNetLargeAlphaZeroesCoefficients(t *testing.T) {
	X, y := createBenchmarkData(100, 4)

	enet := NewElasticNet(WithAlpha(100), WithL1Ratio(1))
	if err := enet.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	for j, w := range enet.Coef() {
		if w != 0 {
			t.Errorf("coef[%d] = %v, want 0", j, w)
		}
	}
	var yMean float64
	for i := 0; i < 100; i++ {
		yMean += y.At(i, 0)
	}
	yMean /= 100
	if math.Abs(enet.Intercept()-yMean) > 1e-12 {
		t.Errorf("intercept = %v, want mean(y) %v", enet.Intercept(), yMean)
	}
}

func TestElasticNetDeterministic(t *testing.T) {
	X, y := createBenchmarkData(300, 11)
	for _, selection := range []string{SelectionCyclic, SelectionRandom} {
		t.Run(selection, func(t *testing.T) {
			a := NewElasticNet(WithAlpha(0.2), WithL1Ratio(0.3), WithSelection(selection))
			b := NewElasticNet(WithAlpha(0.2), WithL1Ratio(0.3), WithSelection(selection))
			if err := a.Fit(X, y); err != nil {
				t.Fatal(err)
			}
			if err := b.Fit(X, y); err != nil {
				t.Fatal(err)
			}
			assertClose(t, "coef", a.Coef(), b.Coef(), 0)
			if a.Intercept() != b.Intercept() {
				t.Errorf("intercepts differ: %v vs %v", a.Intercept(), b.Intercept())
			}
		})
	}
}

func TestElasticNetRandomSelectionConvergesToSameSolution(t *testing.T) {
	X, y := createBenchmarkData(300, 6)
	cyclic := NewElasticNet(WithAlpha(0.05), WithL1Ratio(0.7), WithTol(1e-10), WithMaxIter(10000))
	random := NewElasticNet(WithAlpha(0.05), WithL1Ratio(0.7), WithTol(1e-10), WithMaxIter(10000),
		WithSelection(SelectionRandom), WithRandomState(7))
	if err := cyclic.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := random.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	assertClose(t, "coef", random.Coef(), cyclic.Coef(), 1e-4)
}

func TestElasticNetConvergenceWarning(t *testing.T) {
	warnings := captureWarnings(t)
	X, y := createBenchmarkData(200, 11)

	enet := NewElasticNet(WithAlpha(0.001), WithL1Ratio(0.5), WithMaxIter(1), WithTol(1e-12))
	if err := enet.Fit(X, y); err != nil {
		t.Fatalf("non-convergence must not be an error: %v", err)
	}
	if enet.NIter() != 1 {
		t.Errorf("NIter() = %d, want 1", enet.NIter())
	}
	if len(*warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(*warnings))
	}
	var cw *errors.ConvergenceWarning
	if !errors.As((*warnings)[0], &cw) {
		t.Fatalf("expected ConvergenceWarning, got %T", (*warnings)[0])
	}
	if cw.Iterations != 1 {
		t.Errorf("warning iterations = %d, want 1", cw.Iterations)
	}
}

func TestElasticNetValidation(t *testing.T) {
	X, y := createBenchmarkData(20, 3)
	nanX := mat.DenseCopyOf(X)
	nanX.Set(3, 1, math.NaN())

	tests := []struct {
		name  string
		opts  []Option
		X, y  mat.Matrix
		check func(error) bool
	}{
		{"negative alpha", []Option{WithAlpha(-1)}, X, y, isValidation},
		{"l1 ratio above one", []Option{WithL1Ratio(1.5)}, X, y, isValidation},
		{"unknown selection", []Option{WithSelection("shuffle")}, X, y, isValidation},
		{"zero max iter", []Option{WithMaxIter(0)}, X, y, isValidation},
		{"feature names mismatch", []Option{WithFeatureNames([]string{"a"})}, X, y, isDimension},
		{"row mismatch", nil, X, mat.NewDense(19, 1, nil), isDimension},
		{"nan in X", nil, nanX, y, func(err error) bool {
			var ne *errors.NumericalInstabilityError
			return errors.As(err, &ne)
		}},
		{"multi-column y", nil, X, mat.NewDense(20, 2, nil), func(err error) bool {
			var ve *errors.ValueError
			return errors.As(err, &ve)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewElasticNet(tt.opts...).Fit(tt.X, tt.y)
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("unexpected error type: %v", err)
			}
		})
	}
}

func isValidation(err error) bool {
	var ve *errors.ValidationError
	return errors.As(err, &ve)
}

func isDimension(err error) bool {
	var de *errors.DimensionError
	return errors.As(err, &de)
}

func TestElasticNetNotFitted(t *testing.T) {
	enet := NewElasticNet()
	_, err := enet.Predict(mat.NewDense(2, 2, nil))
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}
	if _, err := enet.ExportWeights(); err == nil {
		t.Error("ExportWeights on an unfitted model should fail")
	}
	if enet.Coef() != nil {
		t.Error("Coef() should be nil before Fit")
	}
}

func TestElasticNetPredictAndScore(t *testing.T) {
	X, y := createBenchmarkData(500, 11)
	enet := NewElasticNet(WithAlpha(0.001), WithL1Ratio(0.5))
	if err := enet.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	pred, err := enet.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if r, c := pred.Dims(); r != 500 || c != 1 {
		t.Fatalf("prediction dims = %dx%d", r, c)
	}

	score, err := enet.Score(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if score < 0.99 || score > 1 {
		t.Errorf("R² = %v on nearly noiseless data", score)
	}

	if _, err := enet.Predict(mat.NewDense(3, 10, nil)); !isDimension(err) {
		t.Errorf("expected dimension error, got %v", err)
	}
}

func TestElasticNetWeightsRoundTrip(t *testing.T) {
	X, y := createBenchmarkData(100, 3)
	names := []string{"alcohol", "sulphates", "pH"}
	enet := NewElasticNet(WithAlpha(0.2), WithL1Ratio(0.3), WithFeatureNames(names))
	if err := enet.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	w, err := enet.ExportWeights()
	if err != nil {
		t.Fatal(err)
	}
	if w.Features[2] != "pH" || w.Hyperparameters["alpha"] != 0.2 {
		t.Errorf("unexpected exported weights: %+v", w)
	}
	data, err := w.ToJSON()
	if err != nil {
		t.Fatal(err)
	}

	var decoded model.ModelWeights
	if err := decoded.FromJSON(data); err != nil {
		t.Fatal(err)
	}
	restored := NewElasticNet()
	if err := restored.ImportWeights(&decoded); err != nil {
		t.Fatal(err)
	}

	want, _ := enet.Predict(X)
	got, err := restored.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(want, got, 1e-12) {
		t.Error("restored model predicts differently")
	}
	if restored.GetParams()["l1_ratio"] != 0.3 {
		t.Errorf("l1_ratio not restored: %v", restored.GetParams())
	}

	lrWeights := *w
	lrWeights.ModelType = "LinearRegression"
	if err := restored.ImportWeights(&lrWeights); err == nil {
		t.Error("expected model type mismatch error")
	}
}

func TestElasticNetFitContextCancelled(t *testing.T) {
	X, y := createBenchmarkData(100, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewElasticNet(WithAlpha(0.1)).FitContext(ctx, X, y)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
