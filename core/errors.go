package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"message"`
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// ReferentialConflict indicates a deletion blocked because another entity
// still references the target record.
type ReferentialConflict struct {
	message string
}

func NewReferentialConflict(msg string) error {
	return &ReferentialConflict{message: msg}
}

func (err ReferentialConflict) Error() string {
	return err.message
}

func IsReferentialConflict(err error) bool {
	_, ok := errors.Cause(err).(*ReferentialConflict)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
