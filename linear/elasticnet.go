package linear

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/YuminosukeSato/winequality/core/model"
	"github.com/YuminosukeSato/winequality/metrics"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Coordinate selection strategies.
const (
	SelectionCyclic = "cyclic"
	SelectionRandom = "random"
)

// Defaults match the scikit-learn estimator.
const (
	DefaultAlpha       = 1.0
	DefaultL1Ratio     = 0.5
	DefaultMaxIter     = 1000
	DefaultTol         = 1e-4
	DefaultRandomState = 42
)

const elasticNetName = "ElasticNet"

var (
	_ model.LinearModel     = (*ElasticNet)(nil)
	_ model.ParameterGetter = (*ElasticNet)(nil)
	_ model.Exportable      = (*ElasticNet)(nil)
	_ model.LinearModel     = (*LinearRegression)(nil)
	_ model.ParameterGetter = (*LinearRegression)(nil)
	_ model.Exportable      = (*LinearRegression)(nil)
)

// ElasticNet is a linear regression with combined L1 and L2 priors. It
// minimizes
//
//	1/(2n)·||y − Xw − b||² + α·ρ·||w||₁ + ½·α·(1−ρ)·||w||²
//
// by coordinate descent. With α = 0 the penalty vanishes and Fit delegates to
// ordinary least squares.
type ElasticNet struct {
	state *model.StateManager

	alpha        float64
	l1Ratio      float64
	fitIntercept bool
	maxIter      int
	tol          float64
	selection    string
	randomState  uint64
	featureNames []string

	coef      []float64
	intercept float64
	nIter     int
	dualGap   float64
}

// NewElasticNet creates an unfitted ElasticNet.
//
// 使用例:
//
//	enet := linear.NewElasticNet(
//	    linear.WithAlpha(0.5),
//	    linear.WithL1Ratio(0.5),
//	    linear.WithRandomState(42),
//	)
//	err := enet.Fit(X, y)
func NewElasticNet(opts ...Option) *ElasticNet {
	e := &ElasticNet{
		state:        model.NewStateManager(),
		alpha:        DefaultAlpha,
		l1Ratio:      DefaultL1Ratio,
		fitIntercept: true,
		maxIter:      DefaultMaxIter,
		tol:          DefaultTol,
		selection:    SelectionCyclic,
		randomState:  DefaultRandomState,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *ElasticNet) validateParams() error {
	if e.alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", e.alpha)
	}
	if e.l1Ratio < 0 || e.l1Ratio > 1 {
		return errors.NewValidationError("l1_ratio", "must be in [0, 1]", e.l1Ratio)
	}
	if e.maxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", e.maxIter)
	}
	if e.tol < 0 {
		return errors.NewValidationError("tol", "must be non-negative", e.tol)
	}
	if e.selection != SelectionCyclic && e.selection != SelectionRandom {
		return errors.NewValidationError("selection", "must be cyclic or random", e.selection)
	}
	return nil
}

// Fit trains the model on X (n×p) and y (n×1).
func (e *ElasticNet) Fit(X, y mat.Matrix) error {
	return e.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation checked between coordinate descent
// epochs.
func (e *ElasticNet) FitContext(ctx context.Context, X, y mat.Matrix) error {
	const op = "ElasticNet.Fit"
	if err := e.validateParams(); err != nil {
		return err
	}
	n, p, err := validateXY(op, X, y)
	if err != nil {
		return err
	}
	if e.featureNames != nil && len(e.featureNames) != p {
		return errors.NewDimensionError(op, len(e.featureNames), p, 1)
	}

	e.state.Reset()

	if e.alpha == 0 {
		errors.Warn(errors.NewConvergenceWarning(elasticNetName, 0,
			"alpha=0 has no penalty; solving ordinary least squares instead"))
		ols := newLinearRegression(e.fitIntercept)
		if err := ols.Fit(X, y); err != nil {
			return err
		}
		e.coef = ols.Coef()
		e.intercept = ols.Intercept()
		e.nIter = 0
		e.dualGap = 0
		e.state.SetFitted(p, n)
		return nil
	}

	d := newDesign(X, y, e.fitIntercept)
	pb := &cdProblem{
		cols:    d.cols,
		y:       d.y,
		l1:      e.alpha * e.l1Ratio * float64(n),
		l2:      e.alpha * (1 - e.l1Ratio) * float64(n),
		maxIter: e.maxIter,
		tol:     e.tol,
	}
	if e.selection == SelectionRandom {
		pb.rng = rand.New(rand.NewPCG(e.randomState, e.randomState))
	}

	res, err := pb.solve(ctx)
	if err != nil {
		return errors.Wrap(err, op)
	}
	if err := errors.CheckNumericalStability(op, res.w, res.nIter); err != nil {
		return err
	}
	if !res.converged {
		errors.Warn(errors.NewConvergenceWarning(elasticNetName, res.nIter,
			fmt.Sprintf("duality gap %.3e exceeds tolerance %.3e; consider increasing max_iter or alpha", res.gap, res.tol)))
	}

	e.coef = res.w
	e.intercept = 0
	if e.fitIntercept {
		e.intercept = d.intercept(res.w)
	}
	e.nIter = res.nIter
	e.dualGap = res.gap / float64(n)
	e.state.SetFitted(p, n)
	return nil
}

// Predict returns X·w + b as an n×1 matrix.
func (e *ElasticNet) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := e.state.RequireFitted(elasticNetName, "Predict"); err != nil {
		return nil, err
	}
	_, c := X.Dims()
	if err := e.state.RequireFeatures("ElasticNet.Predict", c); err != nil {
		return nil, err
	}
	return predictLinear(X, e.coef, e.intercept), nil
}

// Score returns the coefficient of determination R² of the prediction.
func (e *ElasticNet) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := e.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, yPred)
}

// Coef returns a copy of the learned coefficients, or nil before Fit.
func (e *ElasticNet) Coef() []float64 {
	if !e.state.IsFitted() {
		return nil
	}
	return append([]float64(nil), e.coef...)
}

// Intercept returns the learned intercept.
func (e *ElasticNet) Intercept() float64 {
	return e.intercept
}

// NIter returns the number of coordinate descent epochs run by the last Fit.
// It is 0 when the fit was delegated to least squares.
func (e *ElasticNet) NIter() int {
	return e.nIter
}

// DualGap returns the final duality gap of the last Fit, scaled by 1/n.
func (e *ElasticNet) DualGap() float64 {
	return e.dualGap
}

// GetParams returns the model's hyperparameters.
func (e *ElasticNet) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         e.alpha,
		"l1_ratio":      e.l1Ratio,
		"fit_intercept": e.fitIntercept,
		"max_iter":      e.maxIter,
		"tol":           e.tol,
		"selection":     e.selection,
		"random_state":  int(e.randomState),
	}
}

// ExportWeights returns the fitted model in its serializable form.
func (e *ElasticNet) ExportWeights() (*model.ModelWeights, error) {
	if err := e.state.RequireFitted(elasticNetName, "ExportWeights"); err != nil {
		return nil, err
	}
	_, nSamples := e.state.GetDimensions()
	return &model.ModelWeights{
		ModelType:       elasticNetName,
		Version:         model.WeightsFormatVersion,
		Coefficients:    e.Coef(),
		Intercept:       e.intercept,
		Features:        append([]string(nil), e.featureNames...),
		Hyperparameters: e.GetParams(),
		Metadata: map[string]interface{}{
			"n_iter":    e.nIter,
			"dual_gap":  e.dualGap,
			"n_samples": nSamples,
		},
		IsFitted: true,
	}, nil
}

// ImportWeights restores a model exported by ExportWeights.
func (e *ElasticNet) ImportWeights(w *model.ModelWeights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if w.ModelType != elasticNetName {
		return errors.NewValueError("ElasticNet.ImportWeights",
			fmt.Sprintf("cannot import %s weights", w.ModelType))
	}
	if v, ok := asFloat(w.Hyperparameters["alpha"]); ok {
		e.alpha = v
	}
	if v, ok := asFloat(w.Hyperparameters["l1_ratio"]); ok {
		e.l1Ratio = v
	}
	if v, ok := w.Hyperparameters["fit_intercept"].(bool); ok {
		e.fitIntercept = v
	}
	if v, ok := asFloat(w.Metadata["n_iter"]); ok {
		e.nIter = int(v)
	}
	e.coef = append([]float64(nil), w.Coefficients...)
	e.intercept = w.Intercept
	e.featureNames = nil
	if len(w.Features) > 0 {
		e.featureNames = append([]string(nil), w.Features...)
	}
	nSamples, _ := asFloat(w.Metadata["n_samples"])
	e.state.SetFitted(len(e.coef), int(nSamples))
	return nil
}

// asFloat accepts the numeric types produced by JSON, gob, and GetParams.
func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
