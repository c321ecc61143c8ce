// Package mongo provides a MongoDB-backed Store. Cross-document atomicity
// (RecordRevenue) uses server transactions, so the deployment must be a
// replica set; the uniqueness rules (one in-flight payout per creator, one
// countable subscription per pair) are enforced with partial unique
// indexes created by Migrate.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/patron"
	"github.com/xraph/patron/earnings"
	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/payout"
	patronstore "github.com/xraph/patron/store"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/tier"
	"github.com/xraph/patron/types"
)

// Collection name constants.
const (
	colTiers           = "patron_tiers"
	colPeriods         = "patron_earnings_periods"
	colTransactions    = "patron_transactions"
	colPayouts         = "patron_payouts"
	colPayoutSettings  = "patron_payout_settings"
	colSubscriptions   = "patron_subscriptions"
	colAccessCache     = "patron_access_cache"
	colCreatorCounters = "patron_creator_counters"
)

// compile-time interface check
var _ patronstore.Store = (*Store)(nil)

// Store implements store.Store on MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB and returns a store using the named database.
func New(uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("patron/mongo: connect: %w", err)
	}
	return &Store{client: client, db: client.Database(dbName)}, nil
}

// NewWithClient wraps an existing client. Close will disconnect it.
func NewWithClient(client *mongo.Client, dbName string) *Store {
	return &Store{client: client, db: client.Database(dbName)}
}

// Database returns the underlying database for direct access.
func (s *Store) Database() *mongo.Database { return s.db }

// Migrate creates indexes for all patron collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("patron/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects from the database.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// ==================== Tier Store ====================

func (s *Store) CreateTier(ctx context.Context, t *tier.Tier) error {
	_, err := s.db.Collection(colTiers).InsertOne(ctx, toTierModel(t))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return patron.ErrAlreadyExists
		}
		return fmt.Errorf("patron/mongo: create tier: %w", err)
	}
	return nil
}

func (s *Store) GetTier(ctx context.Context, tierID id.TierID) (*tier.Tier, error) {
	var m tierModel
	err := s.db.Collection(colTiers).
		FindOne(ctx, bson.M{"_id": tierID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, patron.ErrTierNotFound
		}
		return nil, fmt.Errorf("patron/mongo: get tier: %w", err)
	}
	return fromTierModel(&m)
}

func (s *Store) ListTiers(ctx context.Context, creatorID string, opts tier.ListOpts) ([]*tier.Tier, error) {
	filter := bson.M{"creator_id": creatorID}
	if !opts.IncludeInactive {
		filter["active"] = true
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "order", Value: 1}, {Key: "price_cents", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colTiers).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("patron/mongo: list tiers: %w", err)
	}
	defer cursor.Close(ctx)

	var models []tierModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("patron/mongo: list tiers decode: %w", err)
	}

	result := make([]*tier.Tier, len(models))
	for i := range models {
		t, err := fromTierModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

func (s *Store) UpdateTier(ctx context.Context, t *tier.Tier) error {
	// subscriber_count is deliberately excluded: only AdjustTierSubscribers
	// moves it.
	update := bson.M{"$set": bson.M{
		"name":           t.Name,
		"description":    t.Description,
		"price_cents":    t.Price.Amount,
		"price_currency": t.Price.Currency,
		"benefits":       t.Benefits,
		"order":          t.Order,
		"active":         t.Active,
		"updated_at":     now(),
	}}

	res, err := s.db.Collection(colTiers).UpdateOne(ctx,
		bson.M{"_id": t.ID.String(), "creator_id": t.CreatorID},
		update,
	)
	if err != nil {
		return fmt.Errorf("patron/mongo: update tier: %w", err)
	}
	if res.MatchedCount == 0 {
		return patron.ErrNotFoundOrUnauthorized
	}
	return nil
}

func (s *Store) DeactivateTier(ctx context.Context, tierID id.TierID, creatorID string) error {
	res, err := s.db.Collection(colTiers).UpdateOne(ctx,
		bson.M{"_id": tierID.String(), "creator_id": creatorID},
		bson.M{"$set": bson.M{"active": false, "updated_at": now()}},
	)
	if err != nil {
		return fmt.Errorf("patron/mongo: deactivate tier: %w", err)
	}
	if res.MatchedCount == 0 {
		return patron.ErrNotFoundOrUnauthorized
	}
	return nil
}

func (s *Store) AdjustTierSubscribers(ctx context.Context, tierID id.TierID, delta int64) error {
	res, err := s.db.Collection(colTiers).UpdateOne(ctx,
		bson.M{"_id": tierID.String()},
		bson.M{
			"$inc": bson.M{"subscriber_count": delta},
			"$set": bson.M{"updated_at": now()},
		},
	)
	if err != nil {
		return fmt.Errorf("patron/mongo: adjust tier subscribers: %w", err)
	}
	if res.MatchedCount == 0 {
		return patron.ErrTierNotFound
	}

	// Clamp drift below zero.
	if delta < 0 {
		_, err = s.db.Collection(colTiers).UpdateOne(ctx,
			bson.M{"_id": tierID.String(), "subscriber_count": bson.M{"$lt": 0}},
			bson.M{"$set": bson.M{"subscriber_count": 0}},
		)
		if err != nil {
			return fmt.Errorf("patron/mongo: clamp tier subscribers: %w", err)
		}
	}
	return nil
}

// ==================== Earnings Store ====================

// RecordRevenue upserts the monthly period with $inc and appends the
// transaction inside one server transaction, so either both writes land
// or neither does. The $inc upsert makes concurrent first-of-month
// payments converge on a single period row; the unique (creator_id,
// period_start) index turns the losing insert into a retryable conflict.
func (s *Store) RecordRevenue(ctx context.Context, txn *earnings.Transaction, periodStart, periodEnd time.Time, delta earnings.Delta) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("patron/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		filter := bson.M{"creator_id": txn.CreatorID, "period_start": periodStart}
		update := bson.M{
			"$inc": bson.M{
				"subscription_cents": delta.Subscription.Amount,
				"tips_cents":         delta.Tips.Amount,
				"gross_cents":        delta.Gross.Amount,
				"fee_cents":          delta.Fee.Amount,
				"net_cents":          delta.Net.Amount,
			},
			"$set": bson.M{"updated_at": now()},
			"$setOnInsert": bson.M{
				"_id":        id.NewEarningsPeriodID().String(),
				"period_end": periodEnd,
				"currency":   delta.Gross.Currency,
				"status":     string(earnings.PeriodPending),
				"created_at": now(),
			},
		}

		_, err := s.db.Collection(colPeriods).UpdateOne(ctx, filter, update,
			options.UpdateOne().SetUpsert(true))
		if err != nil {
			return nil, err
		}

		_, err = s.db.Collection(colTransactions).InsertOne(ctx, toTransactionModel(txn))
		return nil, err
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return patron.ErrStoreConflict
		}
		return fmt.Errorf("patron/mongo: record revenue: %w", err)
	}
	return nil
}

func (s *Store) GetPeriod(ctx context.Context, creatorID string, periodStart time.Time) (*earnings.Period, error) {
	var m periodModel
	err := s.db.Collection(colPeriods).
		FindOne(ctx, bson.M{"creator_id": creatorID, "period_start": periodStart}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, patron.ErrNotFound
		}
		return nil, fmt.Errorf("patron/mongo: get period: %w", err)
	}
	return fromPeriodModel(&m)
}

func (s *Store) ListPeriods(ctx context.Context, creatorID string, opts earnings.ListOpts) ([]*earnings.Period, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "period_start", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colPeriods).Find(ctx, bson.M{"creator_id": creatorID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("patron/mongo: list periods: %w", err)
	}
	defer cursor.Close(ctx)

	var models []periodModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("patron/mongo: list periods decode: %w", err)
	}

	result := make([]*earnings.Period, len(models))
	for i := range models {
		p, err := fromPeriodModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) TotalsAllTime(ctx context.Context, creatorID string, currency string) (earnings.Totals, error) {
	zero := earnings.Totals{
		Gross: types.Zero(currency),
		Fee:   types.Zero(currency),
		Net:   types.Zero(currency),
	}

	pipeline := bson.A{
		bson.M{"$match": bson.M{"creator_id": creatorID, "currency": currency}},
		bson.M{"$group": bson.M{
			"_id":   nil,
			"gross": bson.M{"$sum": "$gross_cents"},
			"fee":   bson.M{"$sum": "$fee_cents"},
			"net":   bson.M{"$sum": "$net_cents"},
		}},
	}

	cursor, err := s.db.Collection(colPeriods).Aggregate(ctx, pipeline)
	if err != nil {
		return zero, fmt.Errorf("patron/mongo: totals all time: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Gross int64 `bson:"gross"`
		Fee   int64 `bson:"fee"`
		Net   int64 `bson:"net"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return zero, fmt.Errorf("patron/mongo: totals decode: %w", err)
	}
	if len(results) == 0 {
		return zero, nil
	}

	return earnings.Totals{
		Gross: types.Money{Amount: results[0].Gross, Currency: currency},
		Fee:   types.Money{Amount: results[0].Fee, Currency: currency},
		Net:   types.Money{Amount: results[0].Net, Currency: currency},
	}, nil
}

func (s *Store) ListTransactions(ctx context.Context, creatorID string, opts earnings.ListOpts) ([]*earnings.Transaction, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colTransactions).Find(ctx, bson.M{"creator_id": creatorID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("patron/mongo: list transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var models []transactionModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("patron/mongo: list transactions decode: %w", err)
	}

	result := make([]*earnings.Transaction, len(models))
	for i := range models {
		t, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

// ==================== Payout Store ====================

var inFlightStatuses = bson.A{string(payout.StatusPending), string(payout.StatusProcessing)}

// CreatePayout relies on the partial unique index over in-flight payouts:
// a second in-flight payout for the same creator fails the insert with a
// duplicate key error regardless of interleaving.
func (s *Store) CreatePayout(ctx context.Context, p *payout.Payout) error {
	_, err := s.db.Collection(colPayouts).InsertOne(ctx, toPayoutModel(p))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return patron.ErrPayoutAlreadyPending
		}
		return fmt.Errorf("patron/mongo: create payout: %w", err)
	}
	return nil
}

func (s *Store) GetPayout(ctx context.Context, payoutID id.PayoutID) (*payout.Payout, error) {
	var m payoutModel
	err := s.db.Collection(colPayouts).
		FindOne(ctx, bson.M{"_id": payoutID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, patron.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("patron/mongo: get payout: %w", err)
	}
	return fromPayoutModel(&m)
}

func (s *Store) GetInFlightPayout(ctx context.Context, creatorID string) (*payout.Payout, error) {
	var m payoutModel
	err := s.db.Collection(colPayouts).
		FindOne(ctx, bson.M{"creator_id": creatorID, "status": bson.M{"$in": inFlightStatuses}}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, patron.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("patron/mongo: get in-flight payout: %w", err)
	}
	return fromPayoutModel(&m)
}

func (s *Store) ListPayouts(ctx context.Context, creatorID string, opts payout.ListOpts) ([]*payout.Payout, error) {
	filter := bson.M{"creator_id": creatorID}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "requested_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colPayouts).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("patron/mongo: list payouts: %w", err)
	}
	defer cursor.Close(ctx)

	var models []payoutModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("patron/mongo: list payouts decode: %w", err)
	}

	result := make([]*payout.Payout, len(models))
	for i := range models {
		p, err := fromPayoutModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// SetPayoutResult settles a payout by matching only in-flight statuses in
// the update filter, so a payout that already reached a terminal state is
// never rewritten.
func (s *Store) SetPayoutResult(ctx context.Context, payoutID id.PayoutID, result payout.Result) error {
	t := now()
	set := bson.M{
		"processed_at": t,
		"updated_at":   t,
	}
	if result.Success {
		set["status"] = string(payout.StatusCompleted)
		set["transfer_ref"] = result.TransferRef
	} else {
		set["status"] = string(payout.StatusFailed)
		set["error"] = result.Error
	}

	res, err := s.db.Collection(colPayouts).UpdateOne(ctx,
		bson.M{"_id": payoutID.String(), "status": bson.M{"$in": inFlightStatuses}},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("patron/mongo: set payout result: %w", err)
	}
	if res.MatchedCount == 0 {
		// Either the payout is already terminal or it never existed.
		if _, err := s.GetPayout(ctx, payoutID); err != nil {
			return err
		}
		return patron.ErrPayoutSettled
	}
	return nil
}

func (s *Store) SumCompletedPayouts(ctx context.Context, creatorID string, currency string) (types.Money, error) {
	return s.sumPayouts(ctx, creatorID, currency, bson.A{string(payout.StatusCompleted)})
}

func (s *Store) SumInFlightPayouts(ctx context.Context, creatorID string, currency string) (types.Money, error) {
	return s.sumPayouts(ctx, creatorID, currency, inFlightStatuses)
}

func (s *Store) sumPayouts(ctx context.Context, creatorID, currency string, statuses bson.A) (types.Money, error) {
	zero := types.Zero(currency)

	pipeline := bson.A{
		bson.M{"$match": bson.M{
			"creator_id":      creatorID,
			"amount_currency": currency,
			"status":          bson.M{"$in": statuses},
		}},
		bson.M{"$group": bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$amount_cents"},
		}},
	}

	cursor, err := s.db.Collection(colPayouts).Aggregate(ctx, pipeline)
	if err != nil {
		return zero, fmt.Errorf("patron/mongo: sum payouts: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return zero, fmt.Errorf("patron/mongo: sum payouts decode: %w", err)
	}
	if len(results) == 0 {
		return zero, nil
	}
	return types.Money{Amount: results[0].Total, Currency: currency}, nil
}

func (s *Store) GetPayoutSettings(ctx context.Context, creatorID string) (*payout.Settings, error) {
	var m payoutSettingsModel
	err := s.db.Collection(colPayoutSettings).
		FindOne(ctx, bson.M{"_id": creatorID}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, patron.ErrNotFound
		}
		return nil, fmt.Errorf("patron/mongo: get payout settings: %w", err)
	}
	return fromPayoutSettingsModel(&m)
}

func (s *Store) PutPayoutSettings(ctx context.Context, settings *payout.Settings) error {
	m := toPayoutSettingsModel(settings)
	_, err := s.db.Collection(colPayoutSettings).ReplaceOne(ctx,
		bson.M{"_id": m.CreatorID}, m,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("patron/mongo: put payout settings: %w", err)
	}
	return nil
}

func (s *Store) ListAutoPayoutSettings(ctx context.Context) ([]*payout.Settings, error) {
	cursor, err := s.db.Collection(colPayoutSettings).Find(ctx, bson.M{"auto_payout": true})
	if err != nil {
		return nil, fmt.Errorf("patron/mongo: list auto-payout settings: %w", err)
	}
	defer cursor.Close(ctx)

	var models []payoutSettingsModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("patron/mongo: list auto-payout settings decode: %w", err)
	}

	result := make([]*payout.Settings, len(models))
	for i := range models {
		s, err := fromPayoutSettingsModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = s
	}
	return result, nil
}

// ==================== Subscription Store ====================

var countableStatuses = bson.A{string(subscription.StatusActive), string(subscription.StatusPending)}

// CreateSubscription relies on the partial unique index over countable
// subscriptions: a racing duplicate for the same (subscriber, creator)
// pair fails the insert with a duplicate key error.
func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	_, err := s.db.Collection(colSubscriptions).InsertOne(ctx, toSubscriptionModel(sub))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return patron.ErrAlreadySubscribed
		}
		return fmt.Errorf("patron/mongo: create subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.db.Collection(colSubscriptions).
		FindOne(ctx, bson.M{"_id": subID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, patron.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("patron/mongo: get subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) GetCountableSubscription(ctx context.Context, subscriberID, creatorID string) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.db.Collection(colSubscriptions).
		FindOne(ctx, bson.M{
			"subscriber_id": subscriberID,
			"creator_id":    creatorID,
			"status":        bson.M{"$in": countableStatuses},
		}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, patron.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("patron/mongo: get countable subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) GetSubscriptionByExternalRef(ctx context.Context, externalSubscriptionRef string) (*subscription.Subscription, error) {
	if externalSubscriptionRef == "" {
		return nil, patron.ErrSubscriptionNotFound
	}

	var m subscriptionModel
	err := s.db.Collection(colSubscriptions).
		FindOne(ctx, bson.M{"external_subscription_ref": externalSubscriptionRef}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, patron.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("patron/mongo: get subscription by external ref: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	filter := bson.M{}
	if opts.SubscriberID != "" {
		filter["subscriber_id"] = opts.SubscriberID
	}
	if opts.CreatorID != "" {
		filter["creator_id"] = opts.CreatorID
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "start_date", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colSubscriptions).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("patron/mongo: list subscriptions: %w", err)
	}
	defer cursor.Close(ctx)

	var models []subscriptionModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("patron/mongo: list subscriptions decode: %w", err)
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	m.UpdatedAt = now()

	res, err := s.db.Collection(colSubscriptions).ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		// Reviving a subscription while another countable one exists for
		// the pair trips the partial unique index.
		if mongo.IsDuplicateKeyError(err) {
			return patron.ErrAlreadySubscribed
		}
		return fmt.Errorf("patron/mongo: update subscription: %w", err)
	}
	if res.MatchedCount == 0 {
		return patron.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) SubscriptionStats(ctx context.Context, creatorID string) (*subscription.CreatorStats, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{"creator_id": creatorID}},
		bson.M{"$group": bson.M{
			"_id":   bson.M{"status": "$status", "free": "$free"},
			"count": bson.M{"$sum": 1},
		}},
	}

	cursor, err := s.db.Collection(colSubscriptions).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("patron/mongo: subscription stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID struct {
			Status string `bson:"status"`
			Free   bool   `bson:"free"`
		} `bson:"_id"`
		Count int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("patron/mongo: subscription stats decode: %w", err)
	}

	stats := &subscription.CreatorStats{CreatorID: creatorID}
	for _, row := range rows {
		switch subscription.Status(row.ID.Status) {
		case subscription.StatusActive:
			stats.Active += row.Count
			if row.ID.Free {
				stats.Free += row.Count
			} else {
				stats.Paid += row.Count
			}
		case subscription.StatusPastDue:
			stats.PastDue += row.Count
		case subscription.StatusCancelled:
			stats.Cancelled += row.Count
		}
	}
	return stats, nil
}

func (s *Store) CountActiveForTier(ctx context.Context, tierID id.TierID) (int64, error) {
	count, err := s.db.Collection(colSubscriptions).CountDocuments(ctx, bson.M{
		"tier_id": tierID.String(),
		"status":  string(subscription.StatusActive),
	})
	if err != nil {
		return 0, fmt.Errorf("patron/mongo: count active for tier: %w", err)
	}
	return count, nil
}

func (s *Store) AdjustCreatorSubscribers(ctx context.Context, creatorID string, delta int64) error {
	_, err := s.db.Collection(colCreatorCounters).UpdateOne(ctx,
		bson.M{"_id": creatorID},
		bson.M{
			"$inc": bson.M{"subscriber_count": delta},
			"$set": bson.M{"updated_at": now()},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("patron/mongo: adjust creator subscribers: %w", err)
	}

	if delta < 0 {
		_, err = s.db.Collection(colCreatorCounters).UpdateOne(ctx,
			bson.M{"_id": creatorID, "subscriber_count": bson.M{"$lt": 0}},
			bson.M{"$set": bson.M{"subscriber_count": 0}},
		)
		if err != nil {
			return fmt.Errorf("patron/mongo: clamp creator subscribers: %w", err)
		}
	}
	return nil
}

// ==================== Access Cache Store ====================

func (s *Store) GetCachedAccess(ctx context.Context, userID, creatorID, requiredTierID string) (*entitlement.Result, error) {
	cacheKey := userID + ":" + creatorID + ":" + requiredTierID

	var m accessCacheModel
	err := s.db.Collection(colAccessCache).
		FindOne(ctx, bson.M{
			"_id":        cacheKey,
			"expires_at": bson.M{"$gt": time.Now().UTC()},
		}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, patron.ErrCacheMiss
		}
		return nil, fmt.Errorf("patron/mongo: get cached access: %w", err)
	}
	return fromAccessCacheModel(&m), nil
}

func (s *Store) SetCachedAccess(ctx context.Context, userID, creatorID, requiredTierID string, result *entitlement.Result, ttl time.Duration) error {
	m := toAccessCacheModel(userID, creatorID, requiredTierID, result, time.Now().UTC().Add(ttl))

	_, err := s.db.Collection(colAccessCache).ReplaceOne(ctx,
		bson.M{"_id": m.CacheKey}, m,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("patron/mongo: set cached access: %w", err)
	}
	return nil
}

func (s *Store) InvalidateAccess(ctx context.Context, userID, creatorID string) error {
	_, err := s.db.Collection(colAccessCache).DeleteMany(ctx, bson.M{
		"user_id":    userID,
		"creator_id": creatorID,
	})
	if err != nil {
		return fmt.Errorf("patron/mongo: invalidate access: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all patron collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colTiers: {
			{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "active", Value: 1}}},
			{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "order", Value: 1}}},
		},
		colPeriods: {
			{
				Keys:    bson.D{{Key: "creator_id", Value: 1}, {Key: "period_start", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "payment_ref", Value: 1}}},
		},
		colPayouts: {
			// At most one in-flight payout per creator.
			{
				Keys: bson.D{{Key: "creator_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{
					"status": bson.M{"$in": []string{string(payout.StatusPending), string(payout.StatusProcessing)}},
				}),
			},
			{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "requested_at", Value: -1}}},
		},
		colSubscriptions: {
			// At most one countable subscription per (subscriber, creator).
			{
				Keys: bson.D{{Key: "subscriber_id", Value: 1}, {Key: "creator_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{
					"status": bson.M{"$in": []string{string(subscription.StatusActive), string(subscription.StatusPending)}},
				}),
			},
			{
				Keys:    bson.D{{Key: "external_subscription_ref", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
			{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "tier_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		colAccessCache: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "creator_id", Value: 1}}},
			{
				Keys:    bson.D{{Key: "expires_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(0),
			},
		},
	}
}
