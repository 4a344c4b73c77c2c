// Package errors は学習ジョブ全体で使うエラー型と警告の仕組みを提供します。
//
// Every constructor attaches a cockroachdb/errors stack trace, and every typed
// error implements zerolog.LogObjectMarshaler so pkg/log renders it as a
// structured object. Warnings (ConvergenceWarning and friends) are not errors:
// they go through Warn to whatever sink pkg/log installed.
package errors

import (
	"github.com/cockroachdb/errors"
)

// Sentinels shared across packages.
var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix は最小二乗解が求まらない場合のエラーです。
	ErrSingularMatrix = New("singular matrix")
)

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with message and a stack trace. Wrap(nil, ...) is nil.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New returns an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf is New with a format string.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to err.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// Join combines errs into one; nil entries are dropped.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
