package patron

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("patron: not found")
	ErrAlreadyExists = errors.New("patron: already exists")
	ErrInvalidInput  = errors.New("patron: invalid input")

	// NotFoundOrUnauthorized deliberately conflates "does not exist" with
	// "not yours" so callers cannot probe for other users' resources.
	ErrNotFoundOrUnauthorized = errors.New("patron: not found or unauthorized")

	// Tier errors
	ErrTierNotFound       = errors.New("patron: tier not found")
	ErrTierInactive       = errors.New("patron: tier is inactive")
	ErrTierHasSubscribers = errors.New("patron: tier has active subscribers")
	ErrTierNotFree        = errors.New("patron: tier is not free")

	// Revenue errors
	ErrUnsupportedCurrency = errors.New("patron: unsupported currency")

	// Payout errors
	ErrInsufficientBalance  = errors.New("patron: insufficient balance")
	ErrBelowMinimumPayout   = errors.New("patron: amount below minimum payout")
	ErrNoBankingInfo        = errors.New("patron: no banking info on file")
	ErrPayoutAlreadyPending = errors.New("patron: payout already pending")
	ErrPayoutNotFound       = errors.New("patron: payout not found")
	ErrPayoutSettled        = errors.New("patron: payout already settled")
	ErrUnsupportedSchedule  = errors.New("patron: unsupported payout schedule")

	// Subscription errors
	ErrAlreadySubscribed    = errors.New("patron: already subscribed")
	ErrSubscriptionNotFound = errors.New("patron: subscription not found")
	ErrAlreadyCancelled     = errors.New("patron: subscription already cancelled")
	ErrSubscriptionInactive = errors.New("patron: subscription is not active")

	// Store errors
	ErrStoreUnavailable = errors.New("patron: store unavailable")
	ErrStoreConflict    = errors.New("patron: store conflict")
	ErrMigrationFailed  = errors.New("patron: migration failed")

	// Cache errors
	ErrCacheMiss = errors.New("patron: cache miss")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("patron: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrNotFoundOrUnauthorized) ||
		errors.Is(err, ErrTierNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrPayoutNotFound)
}

// IsConflict returns true if the error means a concurrent writer won a race
// or an invariant would be violated by the write.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrAlreadySubscribed) ||
		errors.Is(err, ErrPayoutAlreadyPending) ||
		errors.Is(err, ErrPayoutSettled) ||
		errors.Is(err, ErrStoreConflict)
}

// IsRetryable returns true if the operation may be retried. Only a lost
// atomic race qualifies; an unavailable store surfaces to the caller
// without retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreConflict)
}
