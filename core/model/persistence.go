package model

import (
	"encoding/gob"
	"io"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// SaveWeights はModelWeightsをgob形式でwに書き込む
//
// 使用例:
//
//	w, _ := enet.ExportWeights()
//	err := model.SaveWeights(w, file)
func SaveWeights(w *ModelWeights, dst io.Writer) error {
	if err := gob.NewEncoder(dst).Encode(w); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadWeights はgob形式のModelWeightsをrから読み込む
func LoadWeights(r io.Reader) (*ModelWeights, error) {
	var w ModelWeights
	if err := gob.NewDecoder(r).Decode(&w); err != nil {
		return nil, errors.Wrap(err, "failed to decode model")
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}
