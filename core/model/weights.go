package model

import (
	"encoding/json"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// WeightsFormatVersion is written into every exported ModelWeights.
const WeightsFormatVersion = "1.0"

// ModelWeights はモデルの重みを表す構造体（シリアライゼーション用）
type ModelWeights struct {
	// ModelType はモデルの種類（ElasticNet, LinearRegression）
	ModelType string `json:"model_type" yaml:"model_type"`

	// Version はフォーマットのバージョン（互換性チェック用）
	Version string `json:"version" yaml:"version"`

	// Coefficients は重み係数
	Coefficients []float64 `json:"coefficients" yaml:"coefficients"`

	// Intercept は切片
	Intercept float64 `json:"intercept" yaml:"intercept"`

	// Features は特徴量の名前（オプション）
	Features []string `json:"features,omitempty" yaml:"features,omitempty"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters" yaml:"hyperparameters"`

	// Metadata は追加のメタデータ（反復回数、双対ギャップ等）
	Metadata map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted" yaml:"is_fitted"`
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, mw); err != nil {
		return errors.Wrap(err, "decode model weights")
	}
	return mw.Validate()
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version != WeightsFormatVersion {
		return errors.NewValidationError("version", "unsupported weights format", mw.Version)
	}
	if !mw.IsFitted && len(mw.Coefficients) > 0 {
		return errors.NewValidationError("coefficients", "unfitted model should not have coefficients", len(mw.Coefficients))
	}
	if mw.IsFitted && len(mw.Coefficients) == 0 {
		return errors.NewValidationError("coefficients", "fitted model must have coefficients", 0)
	}
	if len(mw.Features) > 0 && len(mw.Features) != len(mw.Coefficients) {
		return errors.NewDimensionError("ModelWeights.Validate", len(mw.Coefficients), len(mw.Features), 1)
	}
	return nil
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:       mw.ModelType,
		Version:         mw.Version,
		Intercept:       mw.Intercept,
		IsFitted:        mw.IsFitted,
		Coefficients:    make([]float64, len(mw.Coefficients)),
		Hyperparameters: make(map[string]interface{}, len(mw.Hyperparameters)),
		Metadata:        make(map[string]interface{}, len(mw.Metadata)),
	}
	copy(clone.Coefficients, mw.Coefficients)
	if mw.Features != nil {
		clone.Features = append([]string(nil), mw.Features...)
	}
	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	for k, v := range mw.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}
