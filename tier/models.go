// Package tier defines creator subscription tiers: named price points a
// creator offers to their subscribers.
package tier

import (
	"sort"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/types"
)

// Tier is a subscription tier offered by a creator.
// Price is the monthly amount in the smallest currency unit; a zero price
// marks a free tier. Tiers are soft-deleted by clearing Active.
type Tier struct {
	types.Entity
	ID              id.TierID   `json:"id"`
	CreatorID       string      `json:"creator_id"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	Price           types.Money `json:"price"`
	Benefits        []string    `json:"benefits"`
	Order           int         `json:"order"`
	Active          bool        `json:"active"`
	SubscriberCount int64       `json:"subscriber_count"`
}

// IsFree reports whether this tier costs nothing.
func (t *Tier) IsFree() bool {
	return t.Price.IsZero()
}

// SortForDisplay orders tiers by display order, then price ascending.
func SortForDisplay(tiers []*Tier) {
	sort.SliceStable(tiers, func(i, j int) bool {
		if tiers[i].Order != tiers[j].Order {
			return tiers[i].Order < tiers[j].Order
		}
		return tiers[i].Price.Amount < tiers[j].Price.Amount
	})
}
