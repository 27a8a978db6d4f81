// Package erruser provides errors whose Error() returns only a user-facing
// message; the cause is available via Unwrap() for Details or logs. Each
// error carries a Code so callers and tests can match on the category
// without comparing message text.
package erruser

import (
	"errors"
	"fmt"
)

// Code identifies an error category.
type Code string

const (
	CodeUnknown        Code = "UNKNOWN"
	CodeInvalidTagName Code = "INVALID_TAG_NAME"
	CodeInvalidMode    Code = "INVALID_MODE"
	CodeConfigParse    Code = "CONFIG_PARSE"
	CodeConfigValue    Code = "CONFIG_VALUE"
	CodeSyntax         Code = "TEMPLATE_SYNTAX"
	CodeIO             Code = "IO"
	CodeCodec          Code = "CODEC"
)

// Err holds a user-facing message and an optional cause for debugging.
// Error() returns only Msg so the primary line never contains internal
// detail; use Unwrap() for technical detail.
type Err struct {
	Code Code
	Msg  string
	Err  error
}

// Error returns the user-facing message only.
func (e *Err) Error() string {
	if e == nil {
		return ""
	}
	return e.Msg
}

// Unwrap returns the underlying error for Details or logging.
// Handles nil receiver (method call on nil *Err is valid in Go).
func (e *Err) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Err with the same Code, so errors.Is(err, erruser.Of(code))
// works through wrapping.
func (e *Err) Is(target error) bool {
	var t *Err
	if e == nil || !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New returns an error with the given user-facing message and no code.
// If err is nil, returns a simple error with just msg (no Unwrap).
func New(msg string, err error) error {
	if err == nil {
		return errors.New(msg)
	}
	return &Err{Code: CodeUnknown, Msg: msg, Err: err}
}

// Coded returns an *Err with code, message, and optional cause.
func Coded(code Code, msg string, err error) error {
	return &Err{Code: code, Msg: msg, Err: err}
}

// Codedf is Coded with a formatted message.
func Codedf(code Code, err error, format string, args ...any) error {
	return &Err{Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Of returns a sentinel for errors.Is comparisons against code.
func Of(code Code) error {
	return &Err{Code: code}
}

// CodeOf returns the Code of the first *Err in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Err
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	return CodeUnknown
}
