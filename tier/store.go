package tier

import (
	"context"

	"github.com/xraph/patron/id"
)

type Store interface {
	Create(ctx context.Context, t *Tier) error
	Get(ctx context.Context, tierID id.TierID) (*Tier, error)
	List(ctx context.Context, creatorID string, opts ListOpts) ([]*Tier, error)
	// Update persists changes to a tier owned by creatorID. Implementations
	// must match both the tier ID and the owner.
	Update(ctx context.Context, t *Tier) error
	// Deactivate soft-deletes a tier owned by creatorID.
	Deactivate(ctx context.Context, tierID id.TierID, creatorID string) error
	// AdjustSubscribers atomically changes the denormalized subscriber count.
	AdjustSubscribers(ctx context.Context, tierID id.TierID, delta int64) error
}

type ListOpts struct {
	IncludeInactive bool
	Limit           int
	Offset          int
}
