package engine

import (
	"errors"
	"fmt"
)

// SubscriptionErrorCode categorizes catalog subscription failures.
type SubscriptionErrorCode string

const (
	// ErrCodeSubscriptionFailed indicates a live subscription reported an error.
	ErrCodeSubscriptionFailed SubscriptionErrorCode = "SUBSCRIPTION_FAILED"

	// ErrCodeSubscribeRejected indicates the catalog refused to open a subscription.
	ErrCodeSubscribeRejected SubscriptionErrorCode = "SUBSCRIBE_REJECTED"
)

// UnavailableMessage is the user-facing text of an unavailable view.
const UnavailableMessage = "Could not load store items. Please try again later."

// SubscriptionError is a catalog failure observed by the reconciler. It is
// surfaced as an unavailable view and never retried automatically.
type SubscriptionError struct {
	Code  SubscriptionErrorCode
	Mode  ViewMode
	Token int64
	Err   error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("%s: %s subscription %d: %v", e.Code, e.Mode, e.Token, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}

// IsSubscriptionError reports whether err is, or wraps, a SubscriptionError.
func IsSubscriptionError(err error) bool {
	var se *SubscriptionError
	return errors.As(err, &se)
}
