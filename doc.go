// Package patron provides a creator monetization ledger for Go applications.
//
// Patron is designed as a library, not a service. Import it directly into your
// Go application and wire it behind your routing and webhook layers. It
// provides:
//
//   - Integer-only revenue recording with platform commission (15% default)
//   - Monthly earnings periods with lazy upserts and an immutable transaction log
//   - Balance calculation and a strict payout state machine
//   - Fan subscriptions to creator tiers with tier-change and cancellation flows
//   - Price-ordered tier access checks with TTL caching
//   - Pluggable lifecycle hooks (audit, metrics, transfer executors)
//
// # Quick Start
//
// Create a patron instance with your preferred store:
//
//	import (
//	    "github.com/xraph/patron"
//	    "github.com/xraph/patron/store/mongo"
//	)
//
//	// Initialize store
//	store, err := mongo.New(mongoURI, "patron")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create the engine
//	l := patron.New(store,
//	    patron.WithCommissionRate(0.15),
//	    patron.WithBankingInfo(bankingAdapter),
//	)
//
//	// Start (migrates and begins background workers)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Core Concepts
//
// Tiers define what a creator offers and at what price:
//
//	t := &tier.Tier{
//	    CreatorID: creatorID,
//	    Name:      "Gold",
//	    Price:     patron.USD(1999),
//	    Benefits:  []string{"All Silver benefits", "Custom requests"},
//	}
//	err := l.CreateTier(ctx, t)
//
// Revenue is reported after money moves; Patron books the split:
//
//	receipt, err := l.RecordTip(ctx, creatorID, tipperID,
//	    patron.USD(1000), postID, "great post!", paymentRef)
//	// receipt.Fee = $1.50, receipt.Net = $8.50
//
// Access checks gate content by tier price ordering:
//
//	result, err := l.CheckTierAccess(ctx, userID, creatorID, requiredTierID)
//	if result.HasAccess {
//	    // Serve the post
//	}
//
// Payouts move through a strict state machine:
//
//	p, err := l.RequestPayout(ctx, creatorID, summary.AvailableBalance)
//	// ... external transfer happens ...
//	err = l.ProcessPayout(ctx, p.ID, payout.Result{Success: true, TransferRef: ref})
//
// # Money
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Money type represents amounts in the smallest
// currency unit (cents for USD, yen for JPY). Commission is applied in
// basis points with half-up rounding.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	tier_01h2xcejqtf2nbrexx3vqjhp41  // Tier ID
//	sub_01h2xcejqtf2nbrexx3vqjhp41   // Subscription ID
//	pout_01h455vb4pex5vsknk084sn02q  // Payout ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package patron
