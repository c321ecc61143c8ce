package payout

import (
	"context"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/types"
)

// Store persists payouts and payout settings.
type Store interface {
	// Create inserts a new pending payout. Implementations must atomically
	// reject the insert when the creator already has an in-flight payout.
	Create(ctx context.Context, p *Payout) error
	Get(ctx context.Context, payoutID id.PayoutID) (*Payout, error)
	// GetInFlight returns the creator's pending or processing payout, if any.
	GetInFlight(ctx context.Context, creatorID string) (*Payout, error)
	List(ctx context.Context, creatorID string, opts ListOpts) ([]*Payout, error)
	// SetResult applies a terminal transition. It must only succeed when the
	// payout is currently in flight.
	SetResult(ctx context.Context, payoutID id.PayoutID, result Result) error
	// SumCompleted and SumInFlight aggregate payout amounts for the balance
	// calculation.
	SumCompleted(ctx context.Context, creatorID string, currency string) (types.Money, error)
	SumInFlight(ctx context.Context, creatorID string, currency string) (types.Money, error)

	GetSettings(ctx context.Context, creatorID string) (*Settings, error)
	PutSettings(ctx context.Context, s *Settings) error
	// ListAutoPayout returns settings rows with automatic payouts enabled.
	ListAutoPayout(ctx context.Context) ([]*Settings, error)
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
