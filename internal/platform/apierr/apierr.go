package apierr

import (
	"fmt"
	"net/http"
)

const (
	CodeValidation   = "validation"
	CodeNotFound     = "not_found"
	CodeBusinessRule = "business_rule"
	CodeInternal     = "internal"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Validation marks malformed or missing input (400).
func Validation(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, CodeValidation, fmt.Errorf(format, args...))
}

// NotFound marks an absent referenced entity (404).
func NotFound(format string, args ...interface{}) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

// BusinessRule marks a domain rule violation (400): duplicate budget per
// plan, payment over the pending balance, double voiding.
func BusinessRule(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, CodeBusinessRule, fmt.Errorf(format, args...))
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, CodeInternal, err)
}
