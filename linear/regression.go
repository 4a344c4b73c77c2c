package linear

import (
	"fmt"

	"github.com/YuminosukeSato/winequality/core/model"
	"github.com/YuminosukeSato/winequality/metrics"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const linearRegressionName = "LinearRegression"

// svdRcond is the relative singular value cutoff for the rank-deficient fallback.
const svdRcond = 1e-12

// LinearRegression は最小二乗法による線形回帰モデル
type LinearRegression struct {
	state        *model.StateManager
	fitIntercept bool
	coef         []float64
	intercept    float64
	rank         int
}

// NewLinearRegression は切片ありの線形回帰モデルを作成する
func NewLinearRegression() *LinearRegression {
	return newLinearRegression(true)
}

func newLinearRegression(fitIntercept bool) *LinearRegression {
	return &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: fitIntercept,
	}
}

// Fit はモデルを訓練データで学習させる
//
// 中心化した X に対して QR 分解で min ||Xw − y||² を解く。X のランクが
// 落ちている場合は SVD による最小ノルム解にフォールバックする。
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	const op = "LinearRegression.Fit"
	n, p, err := validateXY(op, X, y)
	if err != nil {
		return err
	}
	lr.state.Reset()

	d := newDesign(X, y, lr.fitIntercept)
	A := d.dense()
	b := mat.NewDense(n, 1, d.y)

	var w mat.Dense
	solved := false
	if n >= p {
		var qr mat.QR
		qr.Factorize(A)
		if err := qr.SolveTo(&w, false, b); err == nil {
			solved = true
			lr.rank = p
		}
	}
	if !solved {
		var svd mat.SVD
		if ok := svd.Factorize(A, mat.SVDThin); !ok {
			return errors.NewModelError(op, "SVD factorization failed", errors.ErrSingularMatrix)
		}
		lr.rank = svd.Rank(svdRcond)
		if lr.rank == 0 {
			return errors.NewModelError(op, "singular matrix", errors.ErrSingularMatrix)
		}
		svd.SolveTo(&w, b, lr.rank)
	}

	lr.coef = make([]float64, p)
	for j := 0; j < p; j++ {
		lr.coef[j] = w.At(j, 0)
	}
	if err := errors.CheckNumericalStability(op, lr.coef, 0); err != nil {
		return err
	}
	lr.intercept = 0
	if lr.fitIntercept {
		lr.intercept = d.intercept(lr.coef)
	}

	lr.state.SetFitted(p, n)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted(linearRegressionName, "Predict"); err != nil {
		return nil, err
	}
	_, c := X.Dims()
	if err := lr.state.RequireFeatures("LinearRegression.Predict", c); err != nil {
		return nil, err
	}
	return predictLinear(X, lr.coef, lr.intercept), nil
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, yPred)
}

// Coef は学習された重み（係数）のコピーを返す
func (lr *LinearRegression) Coef() []float64 {
	if !lr.state.IsFitted() {
		return nil
	}
	return append([]float64(nil), lr.coef...)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept
}

// Rank は学習時の計画行列のランクを返す
func (lr *LinearRegression) Rank() int {
	return lr.rank
}

// GetParams returns the model's hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
	}
}

// ExportWeights はモデルをシリアライズ可能な形式で返す
func (lr *LinearRegression) ExportWeights() (*model.ModelWeights, error) {
	if err := lr.state.RequireFitted(linearRegressionName, "ExportWeights"); err != nil {
		return nil, err
	}
	_, nSamples := lr.state.GetDimensions()
	return &model.ModelWeights{
		ModelType:       linearRegressionName,
		Version:         model.WeightsFormatVersion,
		Coefficients:    lr.Coef(),
		Intercept:       lr.intercept,
		Hyperparameters: lr.GetParams(),
		Metadata: map[string]interface{}{
			"rank":      lr.rank,
			"n_samples": nSamples,
		},
		IsFitted: true,
	}, nil
}

// ImportWeights はExportWeightsで書き出したモデルを復元する
func (lr *LinearRegression) ImportWeights(w *model.ModelWeights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if w.ModelType != linearRegressionName {
		return errors.NewValueError("LinearRegression.ImportWeights",
			fmt.Sprintf("cannot import %s weights", w.ModelType))
	}
	if v, ok := w.Hyperparameters["fit_intercept"].(bool); ok {
		lr.fitIntercept = v
	}
	lr.coef = append([]float64(nil), w.Coefficients...)
	lr.intercept = w.Intercept
	nSamples, _ := asFloat(w.Metadata["n_samples"])
	if r, ok := asFloat(w.Metadata["rank"]); ok {
		lr.rank = int(r)
	}
	lr.state.SetFitted(len(lr.coef), int(nSamples))
	return nil
}
