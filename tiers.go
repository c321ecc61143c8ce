package patron

import (
	"context"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/tier"
	"github.com/xraph/patron/types"
)

// ──────────────────────────────────────────────────
// Tier Catalog
// ──────────────────────────────────────────────────

// CreateTier adds a new tier to a creator's catalog.
func (l *Ledger) CreateTier(ctx context.Context, t *tier.Tier) error {
	if t.CreatorID == "" {
		return ValidationError{Field: "creator_id", Message: "required"}
	}
	if t.Name == "" {
		return ValidationError{Field: "name", Message: "required"}
	}
	if t.Price.IsNegative() {
		return ValidationError{Field: "price", Message: "must not be negative"}
	}
	if !l.supportedCurrency(t.Price.Currency) {
		return ErrUnsupportedCurrency
	}

	if t.ID == (id.TierID{}) {
		t.ID = id.NewTierID()
	}
	t.Entity = types.NewEntity()
	t.Active = true
	t.SubscriberCount = 0

	if err := l.store.CreateTier(ctx, t); err != nil {
		return err
	}

	l.plugins.EmitTierCreated(ctx, t)
	return nil
}

// CreateTierFromTemplate instantiates a suggested template for a creator.
func (l *Ledger) CreateTierFromTemplate(ctx context.Context, creatorID string, tpl tier.Template, order int) (*tier.Tier, error) {
	t := &tier.Tier{
		CreatorID:   creatorID,
		Name:        tpl.Name,
		Description: tpl.Description,
		Price:       tpl.Price,
		Benefits:    append([]string(nil), tpl.Benefits...),
		Order:       order,
	}
	if err := l.CreateTier(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// CreateDefaultFreeTier creates the standard free tier for a new creator.
func (l *Ledger) CreateDefaultFreeTier(ctx context.Context, creatorID string) (*tier.Tier, error) {
	return l.CreateTierFromTemplate(ctx, creatorID, tier.DefaultFreeTier(), 0)
}

// GetTier retrieves a tier by ID.
func (l *Ledger) GetTier(ctx context.Context, tierID id.TierID) (*tier.Tier, error) {
	return l.store.GetTier(ctx, tierID)
}

// ListTiers returns a creator's tiers sorted for display.
func (l *Ledger) ListTiers(ctx context.Context, creatorID string, opts tier.ListOpts) ([]*tier.Tier, error) {
	return l.store.ListTiers(ctx, creatorID, opts)
}

// UpdateTier updates a tier. The store enforces that the tier belongs to
// t.CreatorID; a mismatch surfaces as ErrNotFoundOrUnauthorized.
func (l *Ledger) UpdateTier(ctx context.Context, t *tier.Tier) error {
	if t.Price.IsNegative() {
		return ValidationError{Field: "price", Message: "must not be negative"}
	}
	if !l.supportedCurrency(t.Price.Currency) {
		return ErrUnsupportedCurrency
	}

	old, err := l.store.GetTier(ctx, t.ID)
	if err != nil {
		return err
	}
	t.Touch()

	if err := l.store.UpdateTier(ctx, t); err != nil {
		return err
	}

	l.plugins.EmitTierUpdated(ctx, old, t)
	return nil
}

// DeactivateTier soft-deletes a tier. Tiers with active subscribers cannot
// be deactivated; cancel or migrate the subscribers first.
func (l *Ledger) DeactivateTier(ctx context.Context, tierID id.TierID, creatorID string) error {
	active, err := l.store.CountActiveForTier(ctx, tierID)
	if err != nil {
		return err
	}
	if active > 0 {
		return ErrTierHasSubscribers
	}

	if err := l.store.DeactivateTier(ctx, tierID, creatorID); err != nil {
		return err
	}

	l.plugins.EmitTierDeactivated(ctx, tierID.String())
	return nil
}

// ReorderTiers rewrites the display order of a creator's tiers to match
// the given ID sequence.
func (l *Ledger) ReorderTiers(ctx context.Context, creatorID string, order []id.TierID) error {
	for i, tierID := range order {
		t, err := l.store.GetTier(ctx, tierID)
		if err != nil {
			return err
		}
		if t.CreatorID != creatorID {
			return ErrNotFoundOrUnauthorized
		}
		t.Order = i
		t.Touch()
		if err := l.store.UpdateTier(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
