package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a failed call by how the caller should react to it.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindNetwork    Kind = "network"
)

// GenericMessage is shown when the server sent no usable message.
const GenericMessage = "Something went wrong. Please try again."

// Error is returned by every Client call that does not succeed.
type Error struct {
	Kind      Kind
	Status    int
	Code      string
	Message   string
	Field     string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Code != "":
		return fmt.Sprintf("%s (%d %s): %s", e.Kind, e.Status, e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// KindOf reports the kind of err, or "" when err did not come from a Client.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// RequiresSignIn reports whether err should send the user back to the login
// page instead of being shown inline.
func RequiresSignIn(err error) bool {
	return KindOf(err) == KindAuth
}

// Toast returns the transient message to show for err. It returns false for
// nil errors and for auth failures, which redirect instead.
func Toast(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var ce *Error
	if !errors.As(err, &ce) {
		return GenericMessage, true
	}
	if ce.Kind == KindAuth {
		return "", false
	}
	if ce.Message == "" {
		return GenericMessage, true
	}
	return ce.Message, true
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	default:
		return KindNetwork
	}
}

func statusError(status int, code, message string) *Error {
	e := &Error{
		Kind:    kindForStatus(status),
		Status:  status,
		Code:    code,
		Message: message,
	}
	if status == http.StatusTooManyRequests {
		e.Retryable = true
	}
	if e.Kind == KindNetwork && status >= 500 && message == "" {
		e.Message = GenericMessage
	}
	return e
}

func transportError(err error) *Error {
	msg := "The server could not be reached. Check your connection and try again."
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		msg = "The request timed out. Please try again."
	}
	return &Error{Kind: KindNetwork, Message: msg, Err: err}
}
