// Package memory provides an in-process Store implementation. All writes
// happen under a single mutex, so every atomicity requirement of the
// unified store contract holds trivially. Used in tests and small deploys.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xraph/patron"
	"github.com/xraph/patron/earnings"
	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/payout"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/tier"
	"github.com/xraph/patron/types"
)

type Store struct {
	mu sync.RWMutex

	// Tier storage
	tiers map[string]*tier.Tier

	// Earnings storage
	periods      map[string]*earnings.Period // key: creatorID + period start
	transactions []*earnings.Transaction

	// Payout storage
	payouts        map[string]*payout.Payout
	payoutSettings map[string]*payout.Settings // key: creatorID

	// Subscription storage
	subscriptions    map[string]*subscription.Subscription
	creatorSubCounts map[string]int64

	// Access cache
	accessCache map[string]*entitlement.Result
	cacheExpiry map[string]time.Time
}

func New() *Store {
	return &Store{
		tiers:            make(map[string]*tier.Tier),
		periods:          make(map[string]*earnings.Period),
		transactions:     make([]*earnings.Transaction, 0),
		payouts:          make(map[string]*payout.Payout),
		payoutSettings:   make(map[string]*payout.Settings),
		subscriptions:    make(map[string]*subscription.Subscription),
		creatorSubCounts: make(map[string]int64),
		accessCache:      make(map[string]*entitlement.Result),
		cacheExpiry:      make(map[string]time.Time),
	}
}

func periodKey(creatorID string, periodStart time.Time) string {
	return creatorID + ":" + periodStart.UTC().Format("2006-01")
}

// Tier Store implementation

func (s *Store) CreateTier(_ context.Context, t *tier.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tiers[t.ID.String()]; exists {
		return patron.ErrAlreadyExists
	}
	cp := *t
	s.tiers[t.ID.String()] = &cp
	return nil
}

func (s *Store) GetTier(_ context.Context, tierID id.TierID) (*tier.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.tiers[tierID.String()]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, patron.ErrTierNotFound
}

func (s *Store) ListTiers(_ context.Context, creatorID string, opts tier.ListOpts) ([]*tier.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*tier.Tier, 0)
	for _, t := range s.tiers {
		if t.CreatorID != creatorID {
			continue
		}
		if !opts.IncludeInactive && !t.Active {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}
	tier.SortForDisplay(result)

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateTier(_ context.Context, t *tier.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tiers[t.ID.String()]
	if !ok || existing.CreatorID != t.CreatorID {
		return patron.ErrNotFoundOrUnauthorized
	}
	cp := *t
	cp.SubscriberCount = existing.SubscriberCount
	s.tiers[t.ID.String()] = &cp
	return nil
}

func (s *Store) DeactivateTier(_ context.Context, tierID id.TierID, creatorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tiers[tierID.String()]
	if !ok || t.CreatorID != creatorID {
		return patron.ErrNotFoundOrUnauthorized
	}
	t.Active = false
	t.Touch()
	return nil
}

func (s *Store) AdjustTierSubscribers(_ context.Context, tierID id.TierID, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tiers[tierID.String()]
	if !ok {
		return patron.ErrTierNotFound
	}
	t.SubscriberCount += delta
	if t.SubscriberCount < 0 {
		t.SubscriberCount = 0
	}
	t.Touch()
	return nil
}

// Earnings Store implementation

// RecordRevenue applies the period increment and appends the transaction
// under one lock section, so concurrent revenue for the same month lands
// in a single period row and no partial state is observable.
func (s *Store) RecordRevenue(_ context.Context, txn *earnings.Transaction, periodStart, periodEnd time.Time, delta earnings.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := periodKey(txn.CreatorID, periodStart)
	p, ok := s.periods[key]
	if !ok {
		currency := delta.Gross.Currency
		p = &earnings.Period{
			Entity:              types.NewEntity(),
			ID:                  id.NewEarningsPeriodID(),
			CreatorID:           txn.CreatorID,
			PeriodStart:         periodStart,
			PeriodEnd:           periodEnd,
			SubscriptionRevenue: types.Zero(currency),
			TipsRevenue:         types.Zero(currency),
			GrossRevenue:        types.Zero(currency),
			PlatformFee:         types.Zero(currency),
			NetRevenue:          types.Zero(currency),
			Status:              earnings.PeriodPending,
		}
		s.periods[key] = p
	}

	p.SubscriptionRevenue = p.SubscriptionRevenue.Add(delta.Subscription)
	p.TipsRevenue = p.TipsRevenue.Add(delta.Tips)
	p.GrossRevenue = p.GrossRevenue.Add(delta.Gross)
	p.PlatformFee = p.PlatformFee.Add(delta.Fee)
	p.NetRevenue = p.NetRevenue.Add(delta.Net)
	p.Touch()

	cp := *txn
	s.transactions = append(s.transactions, &cp)
	return nil
}

func (s *Store) GetPeriod(_ context.Context, creatorID string, periodStart time.Time) (*earnings.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.periods[periodKey(creatorID, periodStart)]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, patron.ErrNotFound
}

func (s *Store) ListPeriods(_ context.Context, creatorID string, opts earnings.ListOpts) ([]*earnings.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*earnings.Period, 0)
	for _, p := range s.periods {
		if p.CreatorID == creatorID {
			cp := *p
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PeriodStart.After(result[j].PeriodStart)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) TotalsAllTime(_ context.Context, creatorID string, currency string) (earnings.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := earnings.Totals{
		Gross: types.Zero(currency),
		Fee:   types.Zero(currency),
		Net:   types.Zero(currency),
	}
	for _, p := range s.periods {
		if p.CreatorID == creatorID && p.GrossRevenue.Currency == currency {
			totals.Gross = totals.Gross.Add(p.GrossRevenue)
			totals.Fee = totals.Fee.Add(p.PlatformFee)
			totals.Net = totals.Net.Add(p.NetRevenue)
		}
	}
	return totals, nil
}

func (s *Store) ListTransactions(_ context.Context, creatorID string, opts earnings.ListOpts) ([]*earnings.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*earnings.Transaction, 0)
	for _, t := range s.transactions {
		if t.CreatorID == creatorID {
			cp := *t
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// Payout Store implementation

// CreatePayout performs the check-no-in-flight-then-insert as one unit.
func (s *Store) CreatePayout(_ context.Context, p *payout.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.payouts {
		if existing.CreatorID == p.CreatorID && existing.Status.InFlight() {
			return patron.ErrPayoutAlreadyPending
		}
	}
	cp := *p
	s.payouts[p.ID.String()] = &cp
	return nil
}

func (s *Store) GetPayout(_ context.Context, payoutID id.PayoutID) (*payout.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.payouts[payoutID.String()]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, patron.ErrPayoutNotFound
}

func (s *Store) GetInFlightPayout(_ context.Context, creatorID string) (*payout.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.payouts {
		if p.CreatorID == creatorID && p.Status.InFlight() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, patron.ErrPayoutNotFound
}

func (s *Store) ListPayouts(_ context.Context, creatorID string, opts payout.ListOpts) ([]*payout.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payout.Payout, 0)
	for _, p := range s.payouts {
		if p.CreatorID != creatorID {
			continue
		}
		if opts.Status != "" && p.Status != opts.Status {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RequestedAt.After(result[j].RequestedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) SetPayoutResult(_ context.Context, payoutID id.PayoutID, result payout.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payouts[payoutID.String()]
	if !ok {
		return patron.ErrPayoutNotFound
	}
	if p.Status.Terminal() {
		return patron.ErrPayoutSettled
	}

	now := time.Now().UTC()
	p.ProcessedAt = &now
	if result.Success {
		p.Status = payout.StatusCompleted
		p.TransferRef = result.TransferRef
	} else {
		p.Status = payout.StatusFailed
		p.Error = result.Error
	}
	p.Touch()
	return nil
}

func (s *Store) SumCompletedPayouts(_ context.Context, creatorID string, currency string) (types.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sumPayoutsLocked(creatorID, currency, func(st payout.Status) bool {
		return st == payout.StatusCompleted
	}), nil
}

func (s *Store) SumInFlightPayouts(_ context.Context, creatorID string, currency string) (types.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sumPayoutsLocked(creatorID, currency, payout.Status.InFlight), nil
}

func (s *Store) sumPayoutsLocked(creatorID, currency string, match func(payout.Status) bool) types.Money {
	total := types.Zero(currency)
	for _, p := range s.payouts {
		if p.CreatorID == creatorID && p.Amount.Currency == currency && match(p.Status) {
			total = total.Add(p.Amount)
		}
	}
	return total
}

func (s *Store) GetPayoutSettings(_ context.Context, creatorID string) (*payout.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if settings, ok := s.payoutSettings[creatorID]; ok {
		cp := *settings
		return &cp, nil
	}
	return nil, patron.ErrNotFound
}

func (s *Store) PutPayoutSettings(_ context.Context, settings *payout.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *settings
	s.payoutSettings[settings.CreatorID] = &cp
	return nil
}

func (s *Store) ListAutoPayoutSettings(_ context.Context) ([]*payout.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payout.Settings, 0)
	for _, settings := range s.payoutSettings {
		if settings.AutoPayout {
			cp := *settings
			result = append(result, &cp)
		}
	}
	return result, nil
}

// Subscription Store implementation

// CreateSubscription performs the one-countable-per-pair check and insert
// as one unit.
func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subscriptions {
		if existing.SubscriberID == sub.SubscriberID &&
			existing.CreatorID == sub.CreatorID &&
			existing.Status.Countable() {
			return patron.ErrAlreadySubscribed
		}
	}
	cp := *sub
	s.subscriptions[sub.ID.String()] = &cp
	return nil
}

func (s *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subscriptions[subID.String()]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, patron.ErrSubscriptionNotFound
}

func (s *Store) GetCountableSubscription(_ context.Context, subscriberID, creatorID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscriptions {
		if sub.SubscriberID == subscriberID && sub.CreatorID == creatorID && sub.Status.Countable() {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, patron.ErrSubscriptionNotFound
}

func (s *Store) GetSubscriptionByExternalRef(_ context.Context, externalSubscriptionRef string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscriptions {
		if sub.ExternalSubscriptionRef == externalSubscriptionRef && externalSubscriptionRef != "" {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, patron.ErrSubscriptionNotFound
}

func (s *Store) ListSubscriptions(_ context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if opts.SubscriberID != "" && sub.SubscriberID != opts.SubscriberID {
			continue
		}
		if opts.CreatorID != "" && sub.CreatorID != opts.CreatorID {
			continue
		}
		if opts.Status != "" && sub.Status != opts.Status {
			continue
		}
		cp := *sub
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartDate.After(result[j].StartDate)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[sub.ID.String()]; !ok {
		return patron.ErrSubscriptionNotFound
	}
	cp := *sub
	s.subscriptions[sub.ID.String()] = &cp
	return nil
}

func (s *Store) SubscriptionStats(_ context.Context, creatorID string) (*subscription.CreatorStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &subscription.CreatorStats{CreatorID: creatorID}
	for _, sub := range s.subscriptions {
		if sub.CreatorID != creatorID {
			continue
		}
		switch sub.Status {
		case subscription.StatusActive:
			stats.Active++
			if sub.Free {
				stats.Free++
			} else {
				stats.Paid++
			}
		case subscription.StatusPastDue:
			stats.PastDue++
		case subscription.StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

func (s *Store) CountActiveForTier(_ context.Context, tierID id.TierID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, sub := range s.subscriptions {
		if sub.TierID.String() == tierID.String() && sub.Status == subscription.StatusActive {
			count++
		}
	}
	return count, nil
}

func (s *Store) AdjustCreatorSubscribers(_ context.Context, creatorID string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creatorSubCounts[creatorID] += delta
	if s.creatorSubCounts[creatorID] < 0 {
		s.creatorSubCounts[creatorID] = 0
	}
	return nil
}

// Access cache implementation

func accessKey(userID, creatorID, requiredTierID string) string {
	return fmt.Sprintf("%s:%s:%s", userID, creatorID, requiredTierID)
}

func (s *Store) GetCachedAccess(_ context.Context, userID, creatorID, requiredTierID string) (*entitlement.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := accessKey(userID, creatorID, requiredTierID)
	if expiry, ok := s.cacheExpiry[key]; ok {
		if time.Now().Before(expiry) {
			if result, ok := s.accessCache[key]; ok {
				return result, nil
			}
		}
	}
	return nil, patron.ErrCacheMiss
}

func (s *Store) SetCachedAccess(_ context.Context, userID, creatorID, requiredTierID string, result *entitlement.Result, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := accessKey(userID, creatorID, requiredTierID)
	s.accessCache[key] = result
	s.cacheExpiry[key] = time.Now().Add(ttl)
	return nil
}

func (s *Store) InvalidateAccess(_ context.Context, userID, creatorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := fmt.Sprintf("%s:%s:", userID, creatorID)
	for key := range s.accessCache {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(s.accessCache, key)
			delete(s.cacheExpiry, key)
		}
	}
	return nil
}

// Store management

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

// Helper functions

// paginate clamps offset into range and treats a non-positive limit as
// "no limit", matching the mongo backend's guards.
func paginate[T any](items []T, offset, limit int) []T {
	start := offset
	if start < 0 {
		start = 0
	}
	if start > len(items) {
		start = len(items)
	}
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}
