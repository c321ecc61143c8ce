package subscription

import (
	"context"

	"github.com/xraph/patron/id"
)

type Store interface {
	// Create inserts a new subscription. Implementations must atomically
	// reject the insert when the (subscriber, creator) pair already has an
	// active or pending subscription.
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, subID id.SubscriptionID) (*Subscription, error)
	// GetCountable returns the subscriber's active or pending subscription
	// to the creator, if any.
	GetCountable(ctx context.Context, subscriberID, creatorID string) (*Subscription, error)
	GetByExternalRef(ctx context.Context, externalSubscriptionRef string) (*Subscription, error)
	List(ctx context.Context, opts ListOpts) ([]*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	Stats(ctx context.Context, creatorID string) (*CreatorStats, error)
	CountActiveForTier(ctx context.Context, tierID id.TierID) (int64, error)
	// AdjustCreatorSubscribers atomically changes the creator's denormalized
	// subscriber count.
	AdjustCreatorSubscribers(ctx context.Context, creatorID string, delta int64) error
}

type ListOpts struct {
	SubscriberID string
	CreatorID    string
	Status       Status
	Limit        int
	Offset       int
}
