package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "winequality: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "winequality: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 11, 10, 1)

	want := "winequality: Predict: dimension mismatch on axis 1 (features). Expected 11, got 10"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Fatal("Error should be castable to *DimensionError")
	}
	if dimErr.Expected != 11 || dimErr.Got != 10 {
		t.Errorf("unexpected fields: %+v", dimErr)
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("ElasticNet", "Predict")

	want := "winequality: ElasticNet: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("l1_ratio", "must be in [0, 1]", 1.5)

	want := "winequality: validation failed for parameter 'l1_ratio': must be in [0, 1] (got: 1.5)"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var valErr *ValidationError
	if !As(err, &valErr) {
		t.Error("Error should be castable to *ValidationError")
	}
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("ElasticNet", 1000, "duality gap 0.5 > tol 0.01")

	want := "ElasticNet failed to converge after 1000 iterations: duality gap 0.5 > tol 0.01"
	if warn.Error() != want {
		t.Errorf("Error() = %v, want %v", warn.Error(), want)
	}

	bare := NewConvergenceWarning("ElasticNet", 10, "")
	if !strings.Contains(bare.Error(), "Consider increasing max_iter") {
		t.Errorf("unexpected default message: %s", bare.Error())
	}
}

func TestWarnRoutesToZerologFunc(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("r2", "constant y_true", 0))

	if len(got) != 1 {
		t.Fatalf("expected 1 routed warning, got %d", len(got))
	}
	if !strings.Contains(got[0].Error(), "'r2' is ill-defined") {
		t.Errorf("unexpected warning text: %v", got[0])
	}
}

func TestWarnFallsBackToHandler(t *testing.T) {
	var got error
	prev := SetWarningHandler(func(w error) { got = w })
	defer SetWarningHandler(prev)

	w := NewDataConversionWarning("string", "float64", "empty cell")
	Warn(w)

	if got != w {
		t.Errorf("handler received %v, want %v", got, w)
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrSingularMatrix, "in LinearRegression.Fit")

	if !Is(wrapped, ErrSingularMatrix) {
		t.Error("Expected Is(wrapped, ErrSingularMatrix) to be true")
	}

	if !strings.Contains(wrapped.Error(), "in LinearRegression.Fit") {
		t.Error("Expected wrapped error to contain wrapping message")
	}
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Predict", 10, 5)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}

	expectedMsg := "in Predict: expected 10, got 5"
	if !strings.Contains(wrapped.Error(), expectedMsg) {
		t.Errorf("Expected wrapped error to contain %q", expectedMsg)
	}
}

func TestErrorChaining(t *testing.T) {
	err1 := fmt.Errorf("base error")
	err2 := Wrap(err1, "wrapped once")
	err3 := NewModelError("Operation", "failed", err2)

	if !strings.Contains(err3.Error(), "base error") {
		t.Error("Expected error chain to contain base error")
	}

	formatted := fmt.Sprintf("%+v", err3)
	if !strings.Contains(formatted, "errors_test.go") {
		t.Error("Expected detailed error to contain stack trace")
	}
}

func TestCheckNumericalStability(t *testing.T) {
	if err := CheckNumericalStability("op", []float64{1, 2, 3}, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := CheckNumericalStability("op", []float64{1, math.NaN(), math.Inf(1)}, 3)
	if err == nil {
		t.Fatal("expected instability error")
	}
	var nie *NumericalInstabilityError
	if !As(err, &nie) {
		t.Fatalf("expected *NumericalInstabilityError, got %T", err)
	}
	if len(nie.Values) != 2 || nie.Iteration != 3 {
		t.Errorf("unexpected fields: %+v", nie)
	}
}

func TestCheckMatrix(t *testing.T) {
	if err := CheckMatrix("op", constMatrix{v: math.NaN()}, 0); err == nil {
		t.Error("expected error for NaN matrix")
	}
	if err := CheckMatrix("op", constMatrix{v: 1}, 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	var nie *NumericalInstabilityError
	if err := CheckMatrix("op", constMatrix{v: math.Inf(-1)}, 2); !As(err, &nie) || len(nie.Values) != maxReportedValues {
		t.Errorf("expected %d reported values, got %v", maxReportedValues, err)
	}
}

func TestNewParseError(t *testing.T) {
	err := NewParseError(3, "pH", "acidic")

	want := `winequality: row 3 column "pH": cannot parse "acidic" as a number`
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
	var pe *ParseError
	if !As(err, &pe) || pe.Row != 3 {
		t.Errorf("unexpected ParseError: %+v", pe)
	}
}

func TestMarshalZerologObject(t *testing.T) {
	tests := []struct {
		name     string
		obj      zerolog.LogObjectMarshaler
		wantType string
	}{
		{"value", &ValueError{Op: "op", Message: "bad"}, "ValueError"},
		{"model", &ModelError{Op: "op", Kind: "k", Err: ErrEmptyData}, "ModelError"},
		{"parse", &ParseError{Row: 1, Column: "c", Value: "x"}, "ParseError"},
		{"numerical", &NumericalInstabilityError{Operation: "op", Values: []float64{1}}, "NumericalInstabilityError"},
		{"convergence", NewConvergenceWarning("ElasticNet", 1, ""), "ConvergenceWarning"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)
			logger.Log().Object("err", tt.obj).Send()

			var rec map[string]map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
				t.Fatalf("invalid JSON %q: %v", buf.String(), err)
			}
			if rec["err"]["type"] != tt.wantType {
				t.Errorf("type = %v, want %s", rec["err"]["type"], tt.wantType)
			}
		})
	}
}

func TestNumericalInstabilityErrorTruncates(t *testing.T) {
	err := &NumericalInstabilityError{Operation: "fit", Values: []float64{1, 2, 3, 4, 5, 6, 7}}
	if !strings.HasSuffix(err.Error(), "[1, 2, 3, 4, 5, ...]") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

type constMatrix struct{ v float64 }

func (c constMatrix) Dims() (int, int) { return 3, 4 }
func (c constMatrix) At(int, int) float64 { return c.v }
