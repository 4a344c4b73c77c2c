// Package metrics implements the regression metrics reported after training.
package metrics

import (
	"math"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// checkPair validates a (yTrue, yPred) pair and returns its length.
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue.IsEmpty() {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.IsEmpty() || yPred.Len() != n {
		got := 0
		if !yPred.IsEmpty() {
			got = yPred.Len()
		}
		return 0, errors.NewDimensionError(op, n, got, 0)
	}
	return n, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MAE = (1/n) * Σ|yTrue - yPred|
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する
//
// yTrue が定数の場合 R² は定義されない。完全な予測なら 1.0、そうでなければ
// 0.0 を返し、UndefinedMetricWarning を発行する。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := 0; i < n; i++ {
		yTrueVal := yTrue.AtVec(i)
		diff := yTrueVal - yPred.AtVec(i)
		tss += (yTrueVal - yMean) * (yTrueVal - yMean)
		rss += diff * diff
	}

	if tss == 0 {
		result := 0.0
		if rss == 0 {
			result = 1.0
		}
		errors.Warn(errors.NewUndefinedMetricWarning("r2", "constant y_true", result))
		return result, nil
	}

	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// toVec converts an n×1 matrix into a vector.
func toVec(op string, m mat.Matrix) (*mat.VecDense, error) {
	if v, ok := m.(*mat.VecDense); ok {
		return v, nil
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	if c != 1 {
		return nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}

func matrixPair(op string, yTrue, yPred mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	t, err := toVec(op, yTrue)
	if err != nil {
		return nil, nil, err
	}
	p, err := toVec(op, yPred)
	if err != nil {
		return nil, nil, err
	}
	return t, p, nil
}

// MSEMatrix は行列形式（n×1）の入力に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := matrixPair("MSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

// R2ScoreMatrix は行列形式（n×1）の入力に対してR²を計算する
func R2ScoreMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := matrixPair("R2ScoreMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return R2Score(t, p)
}

// RegressionReport holds the metrics recorded for a trained model.
type RegressionReport struct {
	// RMSE holds the mean squared error. The square root is not taken; the
	// "rmse" name is what downstream dashboards key on.
	RMSE float64
	MAE  float64
	R2   float64
}

// Metric keys used when a report is logged to a tracking backend.
const (
	KeyRMSE = "rmse"
	KeyMAE  = "mae"
	KeyR2   = "r2"
)

// Map returns the report keyed by tracking metric name.
func (r RegressionReport) Map() map[string]float64 {
	return map[string]float64{
		KeyRMSE: r.RMSE,
		KeyR2:   r.R2,
		KeyMAE:  r.MAE,
	}
}

// MarshalZerologObject adds the report to a log event.
func (r RegressionReport) MarshalZerologObject(e *zerolog.Event) {
	e.Float64(KeyRMSE, r.RMSE).
		Float64(KeyMAE, r.MAE).
		Float64(KeyR2, r.R2)
}

// EvaluateRegression computes the report for n×1 ground truth and predictions.
func EvaluateRegression(yTrue, yPred mat.Matrix) (RegressionReport, error) {
	t, p, err := matrixPair("EvaluateRegression", yTrue, yPred)
	if err != nil {
		return RegressionReport{}, err
	}
	mse, err := MSE(t, p)
	if err != nil {
		return RegressionReport{}, err
	}
	mae, err := MAE(t, p)
	if err != nil {
		return RegressionReport{}, err
	}
	r2, err := R2Score(t, p)
	if err != nil {
		return RegressionReport{}, err
	}
	return RegressionReport{RMSE: mse, MAE: mae, R2: r2}, nil
}
