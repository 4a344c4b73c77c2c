package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// NotFittedError は未学習のモデルで Predict などを呼んだ場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("winequality: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "NotFittedError").
		Str("model_name", e.ModelName).
		Str("method", e.Method)
}

func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError reports a shape mismatch. Axis 0 is rows, 1 is columns.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("winequality: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "DimensionError").
		Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Str("axis", e.axisName())
}

func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError は設定値やハイパーパラメータが許容範囲外の場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("winequality: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "ValidationError").
		Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value)
}

func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError is an argument that is wrong for op in a way no single
// parameter explains.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("winequality: %s: %s", e.Op, e.Message)
}

func (e *ValueError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "ValueError").
		Str("operation", e.Op).
		Str("message", e.Message)
}

func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ParseError locates a dataset cell that is not a number. Row counts data
// rows from 1, excluding the header.
type ParseError struct {
	Row    int
	Column string
	Value  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("winequality: row %d column %q: cannot parse %q as a number", e.Row, e.Column, e.Value)
}

func (e *ParseError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "ParseError").
		Int("row", e.Row).
		Str("column", e.Column).
		Str("value", e.Value)
}

func NewParseError(row int, column, value string) error {
	return errors.WithStack(&ParseError{Row: row, Column: column, Value: value})
}

// ModelError wraps a failure inside a model or data operation with the kind
// of failure it was.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("winequality: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("winequality: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

func (e *ModelError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "ModelError").
		Str("operation", e.Op).
		Str("kind", e.Kind)
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// NumericalInstabilityError は入力または学習結果に NaN / Inf が現れた場合のエラーです。
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	shown := e.Values
	if len(shown) > 5 {
		shown = shown[:5]
	}
	parts := make([]string, len(shown))
	for i, v := range shown {
		parts[i] = fmt.Sprintf("%.6g", v)
	}
	if len(e.Values) > len(shown) {
		parts = append(parts, "...")
	}
	return fmt.Sprintf("winequality: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, strings.Join(parts, ", "))
}

func (e *NumericalInstabilityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "NumericalInstabilityError").
		Str("operation", e.Operation).
		Int("iteration", e.Iteration).
		Floats64("values", e.Values)
}

func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	})
}
