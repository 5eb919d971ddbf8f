package tsqlb

import (
	"errors"
	"fmt"
)

/*
Error codes. You probably shouldn't use this directly; instead, use the `Err`
variables with `errors.Is`.
*/
type ErrCode string

const (
	ErrCodeUnknown               ErrCode = ``
	ErrCodeInvalidInput          ErrCode = `InvalidInput`
	ErrCodeMissingArgument       ErrCode = `MissingArgument`
	ErrCodeUnsupportedExpression ErrCode = `UnsupportedExpression`
	ErrCodeEmptyProjection       ErrCode = `EmptyProjection`
	ErrCodeUnknownMember         ErrCode = `UnknownMember`
	ErrCodeParamConflict         ErrCode = `ParamConflict`
	ErrCodeInternal              ErrCode = `Internal`
)

/*
Use blank error variables to detect error types:

	if errors.Is(err, tsqlb.ErrUnsupportedExpression) {
		// Handle specific error.
	}

Errors returned by this package can't be compared via `==` because they include
additional details about the circumstances. When compared by `errors.Is`, they
compare `.Cause` and fall back on `.Code`.
*/
var (
	ErrInvalidInput          = Err{Code: ErrCodeInvalidInput, Cause: errors.New(`invalid input`)}
	ErrMissingArgument       = Err{Code: ErrCodeMissingArgument, Cause: errors.New(`missing argument`)}
	ErrUnsupportedExpression = Err{Code: ErrCodeUnsupportedExpression, Cause: errors.New(`unsupported expression`)}
	ErrEmptyProjection       = Err{Code: ErrCodeEmptyProjection, Cause: errors.New(`empty projection`)}
	ErrUnknownMember         = Err{Code: ErrCodeUnknownMember, Cause: errors.New(`unknown member`)}
	ErrParamConflict         = Err{Code: ErrCodeParamConflict, Cause: errors.New(`parameter conflict`)}
	ErrInternal              = Err{Code: ErrCodeInternal, Cause: errors.New(`internal error`)}
)

// Type of errors returned by this package.
type Err struct {
	Code  ErrCode
	While string
	Cause error
}

// Implement `error`.
func (self Err) Error() string {
	if self == (Err{}) {
		return ``
	}
	msg := `[tsqlb]`
	if self.Code != ErrCodeUnknown {
		msg += ` ` + string(self.Code)
	} else {
		msg += ` error`
	}
	if self.While != `` {
		msg += ` while ` + self.While
	}
	if self.Cause != nil {
		msg += `: ` + self.Cause.Error()
	}
	return msg
}

// Implement a hidden interface in "errors".
func (self Err) Is(other error) bool {
	if self.Cause != nil && errors.Is(self.Cause, other) {
		return true
	}
	err, ok := other.(Err)
	return ok && err.Code == self.Code && err.Code != ErrCodeUnknown
}

// Implement a hidden interface in "errors".
func (self Err) Unwrap() error {
	return self.Cause
}

func (self Err) while(while string) Err {
	self.While = while
	return self
}

func (self Err) because(cause error) Err {
	self.Cause = cause
	return self
}

func errf(pat string, args ...any) error { return fmt.Errorf(pat, args...) }

func errMissing(while, what string) Err {
	return ErrMissingArgument.while(while).because(errf(`%v is required`, what))
}

func errUnsupported(while string, cause error) Err {
	return ErrUnsupportedExpression.while(while).because(cause)
}

func errUnknownMember(while string, typ fmt.Stringer, name string) Err {
	return ErrUnknownMember.while(while).because(errf(`%v has no member %q`, typ, name))
}
