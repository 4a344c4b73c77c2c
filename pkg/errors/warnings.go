package errors

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	warningMu sync.Mutex
	// 既定の出力先。pkg/log が初期化されるまではここに出る。
	warningHandler  = defaultWarningHandler(zerolog.New(os.Stderr).With().Timestamp().Logger())
	zerologWarnFunc func(warning error)
)

func defaultWarningHandler(zl zerolog.Logger) func(error) {
	return func(w error) {
		ev := zl.Warn()
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			ev = ev.Object("warning", m)
		}
		ev.Msg(w.Error())
	}
}

// SetWarningHandler replaces the fallback warning sink and returns the
// previous one.
//
//	prev := errors.SetWarningHandler(func(error) {})
//	defer errors.SetWarningHandler(prev)
func SetWarningHandler(handler func(w error)) func(w error) {
	warningMu.Lock()
	defer warningMu.Unlock()
	prev := warningHandler
	warningHandler = handler
	return prev
}

// SetZerologWarnFunc installs the structured sink used by pkg/log. It takes
// precedence over the handler; nil removes it.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMu.Lock()
	defer warningMu.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn reports a non-fatal condition. The sink runs outside the lock so it
// may itself warn.
func Warn(w error) {
	warningMu.Lock()
	sink := zerologWarnFunc
	if sink == nil {
		sink = warningHandler
	}
	warningMu.Unlock()

	if sink != nil {
		sink(w)
	}
}

// ConvergenceWarning は座標降下法が max_iter 以内に収束しなかったことを示します。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or adjusting parameters.", w.Algorithm, w.Iterations)
}

func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "ConvergenceWarning").
		Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message)
}

func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// DataConversionWarning reports values read as something other than what the
// input said, such as empty CSV cells becoming NaN.
type DataConversionWarning struct {
	FromType string
	ToType   string
	Reason   string
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("data converted from %s to %s. Reason: %s", w.FromType, w.ToType, w.Reason)
}

func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "DataConversionWarning").
		Str("from_type", w.FromType).
		Str("to_type", w.ToType).
		Str("reason", w.Reason)
}

func NewDataConversionWarning(from, to, reason string) *DataConversionWarning {
	return &DataConversionWarning{FromType: from, ToType: to, Reason: reason}
}

// UndefinedMetricWarning は評価指標が定義できず固定値を返したことを示します
// (yTrue が定数のときの R² など)。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "UndefinedMetricWarning").
		Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result)
}

func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}
