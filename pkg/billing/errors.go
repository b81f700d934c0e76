package billing

import "errors"

var (
	ErrRecordNotFound = errors.New("billing: subscription record not found")

	// Domain reference errors: redelivery of the same event cannot succeed
	// without manual data correction, so the webhook transport acknowledges
	// these as non-retryable.
	ErrMissingUserReference = errors.New("billing: event carries no user reference")
	ErrUnknownPrice         = errors.New("billing: price is not mapped to any plan")
	ErrOrphanSubscription   = errors.New("billing: event references an unknown subscription")

	ErrInvalidCatalog = errors.New("billing: invalid plan catalog configuration")

	ErrMissingUserID     = errors.New("billing: user ID is required")
	ErrMissingUserEmail  = errors.New("billing: user email is required")
	ErrMissingPriceID    = errors.New("billing: price ID is required")
	ErrMissingCustomerID = errors.New("billing: customer ID is required")

	ErrWebhookVerificationFailed = errors.New("billing: webhook signature verification failed")
	ErrMalformedEvent            = errors.New("billing: malformed webhook payload")
	ErrNoCheckoutURL             = errors.New("billing: no checkout URL returned from provider")
	ErrNoPortalURL               = errors.New("billing: no portal URL returned from provider")
)

// IsNotFound reports whether err indicates a missing subscription record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// IsDomainError reports whether err is a non-retryable domain reference error.
// The webhook endpoint uses this to acknowledge the event with a 4xx-style
// rejection instead of provoking provider redelivery.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrMissingUserReference) ||
		errors.Is(err, ErrUnknownPrice) ||
		errors.Is(err, ErrOrphanSubscription)
}
