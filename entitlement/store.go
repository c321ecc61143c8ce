package entitlement

import (
	"context"
	"time"
)

// Store caches access-check results. Mutating a subscription must
// invalidate the subscriber's cached results for that creator.
type Store interface {
	GetCached(ctx context.Context, userID, creatorID, requiredTierID string) (*Result, error)
	SetCached(ctx context.Context, userID, creatorID, requiredTierID string, result *Result, ttl time.Duration) error
	Invalidate(ctx context.Context, userID, creatorID string) error
}
