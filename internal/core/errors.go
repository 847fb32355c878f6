package core

import "errors"

// Error codes for domain errors. Faults reported by a channel session keep
// their own codes (see sails.CodeOf).
const (
	ErrCodeAlreadySubscribed = "already_subscribed"
	ErrCodeNotSubscribed     = "not_subscribed"
	ErrCodeBadRequest        = "bad_request"
	ErrCodeSession           = "session_error"
)

var (
	ErrAlreadySubscribed = errors.New("already subscribed")
	ErrNotSubscribed     = errors.New("not subscribed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
