// Package serving implements the inference and retrain contracts on top of
// the model registry. It knows nothing about HTTP.
package serving

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so the transport can pick a status code.
type ErrorKind string

const (
	KindModelLoad        ErrorKind = "ModelLoadError"
	KindModelUnavailable ErrorKind = "ModelUnavailable"
	KindInvalidInput     ErrorKind = "InvalidInput"
	KindTrainingFailed   ErrorKind = "TrainingFailed"
	KindInternal         ErrorKind = "Internal"
)

// Error is the error type returned by Classifier and Retrainer.
type Error struct {
	Kind    ErrorKind
	Message string
	// Detail carries diagnostics for the caller, such as trainer stderr.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the ErrorKind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func invalidInput(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func internalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}
