package payment

import "errors"

var (
	// ErrInvalidSignature indicates the webhook signature did not verify.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrUnresolvedAccount indicates the event could not be mapped to an
	// account. Such events are logged and dropped, not retried.
	ErrUnresolvedAccount = errors.New("event references no resolvable account")
	// ErrUnknownTier indicates a checkout request for a tier outside the
	// catalog.
	ErrUnknownTier = errors.New("unknown credit tier")
)
