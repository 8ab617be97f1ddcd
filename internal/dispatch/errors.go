package dispatch

import (
	"errors"
	"fmt"
)

// AuthErrorCode is the machine-readable reason a sign-in failed.
type AuthErrorCode string

const (
	CodeMissingFields     AuthErrorCode = "auth/missing-fields"
	CodeInvalidCredential AuthErrorCode = "auth/invalid-credential"
	CodeUnavailable       AuthErrorCode = "auth/unavailable"
)

// ErrMissingFields is wrapped by the AuthError for an incomplete sign-in form.
var ErrMissingFields = errors.New("email and password are required")

// AuthError is a failed SignIn. It is never retried.
type AuthError struct {
	Code AuthErrorCode
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("sign in %s: %v", e.Code, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown next to the sign-in form.
func (e *AuthError) UserMessage() string {
	if e.Code == CodeMissingFields {
		return "Please fill in both email and password."
	}
	return "Login failed: " + string(e.Code)
}

// MutationError is a failed catalog command. It is reported only to the
// caller that issued the command.
type MutationError struct {
	Op  Op
	ID  string
	Err error
}

func (e *MutationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// UserMessage is the alert text for the failed command.
func (e *MutationError) UserMessage() string {
	switch e.Op {
	case OpAddProduct:
		return "Failed to add product."
	case OpSetStock, OpToggleStock:
		return "Failed to update stock status."
	case OpDeleteProduct:
		return "Failed to delete product."
	default:
		return "Request failed."
	}
}
