// Package zerror defines classified application errors.
//
// A ZError carries a Status describing the kind of failure, a stable machine-readable code
// such as PRODUCT_NOT_FOUND, a human message and an optional parent error. Transports map
// the Status to their own status codes.
package zerror

import (
	"fmt"
)

type ZError struct {
	parent error
	status Status
	code   string
	msg    string
}

func NewZError(parent error, status Status, code, msg string) ZError {
	return ZError{
		parent: parent,
		status: status,
		code:   code,
		msg:    msg,
	}
}

func (e ZError) Error() string {
	if e.parent == nil {
		return fmt.Sprintf("Code=%s, Msg=%s", e.code, e.msg)
	}
	return fmt.Sprintf("Code=%s, Msg=%s, Parent=(%v)", e.code, e.msg, e.parent)
}

// WrapParent returns a copy of e with parent attached. A nil parent returns e unchanged.
func (e ZError) WrapParent(parent error) ZError {
	if parent != nil {
		e.parent = parent
	}
	return e
}

func (e ZError) Unwrap() error { return e.parent }

// Is reports whether target is a ZError with the same status and code, regardless of parent.
func (e ZError) Is(target error) bool {
	t, ok := target.(ZError)
	return ok && t.status == e.status && t.code == e.code
}

func (e ZError) Status() Status { return e.status }
func (e ZError) Code() string   { return e.code }
func (e ZError) Msg() string    { return e.msg }
func (e ZError) Parent() error  { return e.parent }

func NewNotFound(code, msg string) ZError {
	return NewZError(nil, StatusNotFound, code, msg)
}

func NewBadRequest(code, msg string) ZError {
	return NewZError(nil, StatusBadRequest, code, msg)
}

func NewValidationFailed(code, msg string) ZError {
	return NewZError(nil, StatusValidationFailed, code, msg)
}

func NewInternalServerError(code, msg string) ZError {
	return NewZError(nil, StatusInternalServerError, code, msg)
}
