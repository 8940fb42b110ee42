package messages

import "errors"

// ValidationError rejects a send-intent before anything touches the
// messages table (empty content, unknown identity keys).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// AuthorizationError rejects an operation the caller is not allowed to
// perform, such as marking somebody else's message as read.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return e.Reason }

var ErrNotFound = errors.New("message not found")

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}
