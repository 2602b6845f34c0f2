package errcode

import (
	"errors"
	"fmt"
)

// Error represents a business error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode: %d, msg: %s", e.Code, e.Msg)
}

// New creates a new error with code and message
func New(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap wraps an error with additional context
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e
	}
	return &Error{
		Code: e.Code,
		Msg:  fmt.Sprintf("%s: %v", e.Msg, err),
	}
}

// Is matches errors by code so wrapped copies compare equal to their sentinel
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// As extracts a business error from err
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Common error codes
var (
	// Success
	ErrSuccess = New(0, "success")

	// Common errors (1xxx)
	ErrInvalidParam    = New(1001, "invalid parameter")
	ErrInternalServer  = New(1002, "internal server error")
	ErrUnauthorized    = New(1003, "unauthorized")
	ErrForbidden       = New(1004, "forbidden")
	ErrNotFound        = New(1005, "not found")
	ErrTooManyRequests = New(1006, "too many requests")
	ErrNoPermission    = New(1007, "no permission to access this resource")

	// Auth errors (2xxx)
	ErrTokenInvalid  = New(2001, "token invalid")
	ErrTokenExpired  = New(2002, "token expired")
	ErrTokenMissing  = New(2003, "token missing")
	ErrTokenMismatch = New(2004, "token user mismatch")

	// Ledger errors (4xxx)
	ErrMessageNotFound = New(4001, "message not found")
	ErrConvNotFound    = New(4003, "conversation not found")
	ErrSendFailed      = New(4005, "message send failed")
	ErrPullFailed      = New(4006, "message pull failed")
	ErrContactNotFound = New(4007, "contact not found")
	ErrNotMember       = New(4008, "not a conversation member")
	ErrSelfContact     = New(4009, "cannot contact yourself")
	ErrPingPongLimit   = New(4010, "wait for a reply or call before sending more messages")
	ErrBlocked         = New(4011, "you have been blocked by the other side")
	ErrInvalidTrigger  = New(4012, "unknown trigger kind")
	ErrProfileNotFound = New(4013, "profile not found")
	ErrInvalidNumber   = New(4014, "invalid phone number")

	// WebSocket errors (5xxx)
	ErrConnOverLimit   = New(5001, "connection over max limit")
	ErrConnClosed      = New(5002, "connection closed")
	ErrInvalidProtocol = New(5003, "invalid protocol")
	ErrPushFailed      = New(5004, "push message failed")

	// Call errors (6xxx)
	ErrCallNotFound     = New(6001, "call record not found")
	ErrCallPlaceFailed  = New(6002, "call failed, please retry")
	ErrCallGateway      = New(6003, "call provider request failed")
	ErrCallNoPhone      = New(6004, "phone number not bound")
	ErrCallProviderData = New(6005, "call provider data mismatch")
)
