// Package model defines the interfaces shared by the regression models and the
// serializable form a fitted model takes when it is recorded as an artifact.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter learns from X (n×p) and y (n×1).
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor は学習済みモデルで X の各行に対する予測値 (n×1) を返す
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer returns the R² of the model's predictions against y.
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Regressor is a model the pipeline can train and evaluate.
type Regressor interface {
	Fitter
	Predictor
	Scorer
}

// LinearModel is a fitted y = Xw + b.
type LinearModel interface {
	Regressor
	// Coef returns a copy of w.
	Coef() []float64
	Intercept() float64
}

// ParameterGetter exposes hyperparameters for logging and for the MLmodel
// descriptor.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// WeightExporter converts a model to and from ModelWeights, the form written
// to model.json and model.gob.
type WeightExporter interface {
	ExportWeights() (*ModelWeights, error)
	ImportWeights(w *ModelWeights) error
}

// Exportable is a model that can be logged and later reloaded for inference.
type Exportable interface {
	Predictor
	WeightExporter
}
