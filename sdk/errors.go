package sdk

import (
	"errors"
	"fmt"
)

// Error represents an API error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %d, msg: %s", e.Code, e.Msg)
}

// Is matches API errors by code
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new error
func NewError(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Common error codes
const (
	CodeSuccess = 0

	// Common errors (1xxx)
	CodeInvalidParam    = 1001
	CodeInternalServer  = 1002
	CodeUnauthorized    = 1003
	CodeForbidden       = 1004
	CodeNotFound        = 1005
	CodeTooManyRequests = 1006
	CodeNoPermission    = 1007

	// Auth errors (2xxx)
	CodeTokenInvalid  = 2001
	CodeTokenExpired  = 2002
	CodeTokenMissing  = 2003
	CodeTokenMismatch = 2004

	// Ledger errors (4xxx)
	CodeMessageNotFound = 4001
	CodeConvNotFound    = 4003
	CodeContactNotFound = 4007
	CodeNotMember       = 4008
	CodeSelfContact     = 4009
	CodePingPongLimit   = 4010
	CodeBlocked         = 4011
	CodeInvalidTrigger  = 4012
	CodeProfileNotFound = 4013
	CodeInvalidNumber   = 4014

	// Push errors (5xxx)
	CodeConnOverLimit   = 5001
	CodeConnClosed      = 5002
	CodeInvalidProtocol = 5003

	// Call errors (6xxx)
	CodeCallNotFound     = 6001
	CodeCallPlaceFailed  = 6002
	CodeCallGateway      = 6003
	CodeCallNoPhone      = 6004
	CodeCallProviderData = 6005
)

// Predefined errors, compare with errors.Is
var (
	ErrInvalidParam    = NewError(CodeInvalidParam, "invalid parameter")
	ErrUnauthorized    = NewError(CodeUnauthorized, "unauthorized")
	ErrNoPermission    = NewError(CodeNoPermission, "no permission to access this resource")
	ErrTokenInvalid    = NewError(CodeTokenInvalid, "token invalid")
	ErrTokenMissing    = NewError(CodeTokenMissing, "token missing")
	ErrContactNotFound = NewError(CodeContactNotFound, "contact not found")
	ErrPingPongLimit   = NewError(CodePingPongLimit, "wait for a reply or call before sending more messages")
	ErrBlocked         = NewError(CodeBlocked, "you have been blocked by the other side")
	ErrCallNoPhone     = NewError(CodeCallNoPhone, "phone number not bound")
	ErrCallPlaceFailed = NewError(CodeCallPlaceFailed, "call failed, please retry")
)
