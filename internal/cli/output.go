package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/client"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/client/moderation"
)

const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitUsage   = 2
	ExitAuth    = 3
)

const signInHint = "not signed in or the session expired, run `nurseryctl login`"

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns ExitFailure for errors that carry no code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// describe turns a client failure into what the operator should read.
func describe(err error) error {
	var exitErr *ExitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &exitErr):
		return err
	case client.RequiresSignIn(err):
		return NewExitError(ExitAuth, signInHint)
	case errors.Is(err, moderation.ErrBusy):
		return NewExitError(ExitFailure, "another action for this review is still running")
	case client.KindOf(err) == client.KindValidation:
		var ce *client.Error
		errors.As(err, &ce)
		return NewExitError(ExitUsage, ce.Message)
	}
	msg, _ := client.Toast(err)
	return NewExitError(ExitFailure, msg)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
