package log

import (
	"github.com/cockroachdb/errors"
)

// ErrorStack extracts the stack trace cockroachdb/errors attached to err.
// It is installed as zerolog.ErrorStackMarshaler, so any record logged with an
// error field carries a "stack" attribute when the error has one.
func ErrorStack(err error) interface{} {
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if st := extractStacktrace(e); st != "" {
			return st
		}
	}
	return nil
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
