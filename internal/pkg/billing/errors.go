package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrPlanNotFound is returned when the requested plan does not exist.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrSubscriptionNotFound is returned when the caller holds no
	// subscription in a cancelable state.
	ErrSubscriptionNotFound = errors.New("no cancelable subscription found")
	// ErrDuplicateSubscription is returned when the (user, plan) pair already
	// holds a non-terminal subscription.
	ErrDuplicateSubscription = errors.New("duplicate active subscription")
	// ErrUnsupportedMethod is returned for a payment method outside the
	// supported set.
	ErrUnsupportedMethod = errors.New("unsupported payment method")
	// ErrMalformedPayload is returned when a webhook body cannot be decoded
	// or is missing required identifiers. Nothing is persisted on this path,
	// so a corrected resend is not treated as a duplicate.
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// GatewayError reports a failed call to the billing gateway. Uncertain marks
// calls where the request may have reached the gateway (timeouts, dropped
// responses): no local state was written, but the caller must not blindly
// retry because a duplicate charge or cancellation could result. When
// Uncertain is false the gateway rejected the call and a retry is safe.
type GatewayError struct {
	Op        string
	Uncertain bool
	Err       error
}

func (e *GatewayError) Error() string {
	if e.Uncertain {
		return fmt.Sprintf("billing gateway %s: outcome uncertain: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("billing gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
