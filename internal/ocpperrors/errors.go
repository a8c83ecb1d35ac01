// Package ocpperrors defines the OCPP 1.6 CallError code taxonomy and the
// typed Go errors handlers use to signal them. The repository-level
// Transient/Permanent classification lives in internal/store.
package ocpperrors

import "fmt"

// Code is one of the closed set of OCPP 1.6 CallError codes.
type Code string

const (
	NotImplemented               Code = "NotImplemented"
	NotSupported                 Code = "NotSupported"
	InternalError                Code = "InternalError"
	ProtocolError                Code = "ProtocolError"
	SecurityError                Code = "SecurityError"
	FormationViolation            Code = "FormationViolation"
	PropertyConstraintViolation  Code = "PropertyConstraintViolation"
	OccurenceConstraintViolation Code = "OccurenceConstraintViolation"
	TypeConstraintViolation      Code = "TypeConstraintViolation"
	GenericError                 Code = "GenericError"
)

// CallError is returned by a handler or the codec when an inbound Call
// cannot be satisfied; the Session converts it to a wire CallError frame
// without closing the socket.
type CallError struct {
	Code    Code
	Desc    string
	Details map[string]interface{}
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Desc)
}

// New builds a CallError with empty details.
func New(code Code, desc string) *CallError {
	return &CallError{Code: code, Desc: desc, Details: map[string]interface{}{}}
}

// Internal wraps an arbitrary Go error as an OCPP InternalError CallError,
// per the propagation policy: handler panics/unexpected errors never kill
// the session, they become an InternalError response.
func Internal(err error) *CallError {
	return &CallError{Code: InternalError, Desc: err.Error(), Details: map[string]interface{}{}}
}
