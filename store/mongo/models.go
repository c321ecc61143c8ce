package mongo

import (
	"time"

	"github.com/xraph/patron/earnings"
	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/payout"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/tier"
	"github.com/xraph/patron/types"
)

// ==================== Tier models ====================

type tierModel struct {
	ID              string    `bson:"_id"`
	CreatorID       string    `bson:"creator_id"`
	Name            string    `bson:"name"`
	Description     string    `bson:"description"`
	PriceCents      int64     `bson:"price_cents"`
	PriceCurrency   string    `bson:"price_currency"`
	Benefits        []string  `bson:"benefits,omitempty"`
	Order           int       `bson:"order"`
	Active          bool      `bson:"active"`
	SubscriberCount int64     `bson:"subscriber_count"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func toTierModel(t *tier.Tier) *tierModel {
	return &tierModel{
		ID:              t.ID.String(),
		CreatorID:       t.CreatorID,
		Name:            t.Name,
		Description:     t.Description,
		PriceCents:      t.Price.Amount,
		PriceCurrency:   t.Price.Currency,
		Benefits:        t.Benefits,
		Order:           t.Order,
		Active:          t.Active,
		SubscriberCount: t.SubscriberCount,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func fromTierModel(m *tierModel) (*tier.Tier, error) {
	tierID, err := id.ParseTierID(m.ID)
	if err != nil {
		return nil, err
	}

	return &tier.Tier{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              tierID,
		CreatorID:       m.CreatorID,
		Name:            m.Name,
		Description:     m.Description,
		Price:           types.Money{Amount: m.PriceCents, Currency: m.PriceCurrency},
		Benefits:        m.Benefits,
		Order:           m.Order,
		Active:          m.Active,
		SubscriberCount: m.SubscriberCount,
	}, nil
}

// ==================== Earnings models ====================

// periodModel keeps a single currency column: every Money field of a
// period shares it, so the cents columns can be $inc'd atomically.
type periodModel struct {
	ID                string    `bson:"_id"`
	CreatorID         string    `bson:"creator_id"`
	PeriodStart       time.Time `bson:"period_start"`
	PeriodEnd         time.Time `bson:"period_end"`
	Currency          string    `bson:"currency"`
	SubscriptionCents int64     `bson:"subscription_cents"`
	TipsCents         int64     `bson:"tips_cents"`
	GrossCents        int64     `bson:"gross_cents"`
	FeeCents          int64     `bson:"fee_cents"`
	NetCents          int64     `bson:"net_cents"`
	Status            string    `bson:"status"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

func fromPeriodModel(m *periodModel) (*earnings.Period, error) {
	periodID, err := id.ParseEarningsPeriodID(m.ID)
	if err != nil {
		return nil, err
	}

	return &earnings.Period{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                  periodID,
		CreatorID:           m.CreatorID,
		PeriodStart:         m.PeriodStart,
		PeriodEnd:           m.PeriodEnd,
		SubscriptionRevenue: types.Money{Amount: m.SubscriptionCents, Currency: m.Currency},
		TipsRevenue:         types.Money{Amount: m.TipsCents, Currency: m.Currency},
		GrossRevenue:        types.Money{Amount: m.GrossCents, Currency: m.Currency},
		PlatformFee:         types.Money{Amount: m.FeeCents, Currency: m.Currency},
		NetRevenue:          types.Money{Amount: m.NetCents, Currency: m.Currency},
		Status:              earnings.PeriodStatus(m.Status),
	}, nil
}

type transactionModel struct {
	ID             string    `bson:"_id"`
	CreatorID      string    `bson:"creator_id"`
	CounterpartyID string    `bson:"counterparty_id"`
	Type           string    `bson:"type"`
	GrossCents     int64     `bson:"gross_cents"`
	FeeCents       int64     `bson:"fee_cents"`
	NetCents       int64     `bson:"net_cents"`
	Currency       string    `bson:"currency"`
	TierID         string    `bson:"tier_id,omitempty"`
	PostID         string    `bson:"post_id,omitempty"`
	Message        string    `bson:"message,omitempty"`
	PaymentRef     string    `bson:"payment_ref"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func toTransactionModel(t *earnings.Transaction) *transactionModel {
	m := &transactionModel{
		ID:             t.ID.String(),
		CreatorID:      t.CreatorID,
		CounterpartyID: t.CounterpartyID,
		Type:           string(t.Type),
		GrossCents:     t.Gross.Amount,
		FeeCents:       t.Fee.Amount,
		NetCents:       t.Net.Amount,
		Currency:       t.Gross.Currency,
		PostID:         t.PostID,
		Message:        t.Message,
		PaymentRef:     t.PaymentRef,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if !t.TierID.IsNil() {
		m.TierID = t.TierID.String()
	}
	return m
}

func fromTransactionModel(m *transactionModel) (*earnings.Transaction, error) {
	txnID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}

	t := &earnings.Transaction{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             txnID,
		CreatorID:      m.CreatorID,
		CounterpartyID: m.CounterpartyID,
		Type:           earnings.TransactionType(m.Type),
		Gross:          types.Money{Amount: m.GrossCents, Currency: m.Currency},
		Fee:            types.Money{Amount: m.FeeCents, Currency: m.Currency},
		Net:            types.Money{Amount: m.NetCents, Currency: m.Currency},
		PostID:         m.PostID,
		Message:        m.Message,
		PaymentRef:     m.PaymentRef,
		CreatedAt:      m.CreatedAt,
	}
	if m.TierID != "" {
		tierID, err := id.ParseTierID(m.TierID)
		if err != nil {
			return nil, err
		}
		t.TierID = tierID
	}
	return t, nil
}

// ==================== Payout models ====================

type payoutModel struct {
	ID              string     `bson:"_id"`
	CreatorID       string     `bson:"creator_id"`
	AmountCents     int64      `bson:"amount_cents"`
	AmountCurrency  string     `bson:"amount_currency"`
	Status          string     `bson:"status"`
	PaymentMethodID string     `bson:"payment_method_id"`
	RequestedAt     time.Time  `bson:"requested_at"`
	ProcessedAt     *time.Time `bson:"processed_at,omitempty"`
	TransferRef     string     `bson:"transfer_ref,omitempty"`
	Error           string     `bson:"error,omitempty"`
	CreatedAt       time.Time  `bson:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at"`
}

func toPayoutModel(p *payout.Payout) *payoutModel {
	return &payoutModel{
		ID:              p.ID.String(),
		CreatorID:       p.CreatorID,
		AmountCents:     p.Amount.Amount,
		AmountCurrency:  p.Amount.Currency,
		Status:          string(p.Status),
		PaymentMethodID: p.PaymentMethodID,
		RequestedAt:     p.RequestedAt,
		ProcessedAt:     p.ProcessedAt,
		TransferRef:     p.TransferRef,
		Error:           p.Error,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func fromPayoutModel(m *payoutModel) (*payout.Payout, error) {
	payoutID, err := id.ParsePayoutID(m.ID)
	if err != nil {
		return nil, err
	}

	return &payout.Payout{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              payoutID,
		CreatorID:       m.CreatorID,
		Amount:          types.Money{Amount: m.AmountCents, Currency: m.AmountCurrency},
		Status:          payout.Status(m.Status),
		PaymentMethodID: m.PaymentMethodID,
		RequestedAt:     m.RequestedAt,
		ProcessedAt:     m.ProcessedAt,
		TransferRef:     m.TransferRef,
		Error:           m.Error,
	}, nil
}

// payoutSettingsModel is keyed by creator ID; a creator has at most one
// settings document.
type payoutSettingsModel struct {
	CreatorID       string    `bson:"_id"`
	SettingsID      string    `bson:"settings_id"`
	MinimumCents    int64     `bson:"minimum_cents"`
	MinimumCurrency string    `bson:"minimum_currency"`
	Schedule        string    `bson:"schedule"`
	AutoPayout      bool      `bson:"auto_payout"`
	Currency        string    `bson:"currency"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func toPayoutSettingsModel(s *payout.Settings) *payoutSettingsModel {
	return &payoutSettingsModel{
		CreatorID:       s.CreatorID,
		SettingsID:      s.ID.String(),
		MinimumCents:    s.MinimumPayout.Amount,
		MinimumCurrency: s.MinimumPayout.Currency,
		Schedule:        string(s.Schedule),
		AutoPayout:      s.AutoPayout,
		Currency:        s.Currency,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func fromPayoutSettingsModel(m *payoutSettingsModel) (*payout.Settings, error) {
	settingsID, err := id.ParsePayoutSettingsID(m.SettingsID)
	if err != nil {
		return nil, err
	}

	return &payout.Settings{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            settingsID,
		CreatorID:     m.CreatorID,
		MinimumPayout: types.Money{Amount: m.MinimumCents, Currency: m.MinimumCurrency},
		Schedule:      payout.Schedule(m.Schedule),
		AutoPayout:    m.AutoPayout,
		Currency:      m.Currency,
	}, nil
}

// ==================== Subscription models ====================

type subscriptionModel struct {
	ID                 string     `bson:"_id"`
	SubscriberID       string     `bson:"subscriber_id"`
	CreatorID          string     `bson:"creator_id"`
	TierID             string     `bson:"tier_id"`
	Status             string     `bson:"status"`
	StartDate          time.Time  `bson:"start_date"`
	CurrentPeriodStart time.Time  `bson:"current_period_start"`
	CurrentPeriodEnd   time.Time  `bson:"current_period_end"`
	CancelledAt        *time.Time `bson:"cancelled_at,omitempty"`
	CancelAtPeriodEnd  bool       `bson:"cancel_at_period_end"`
	Free               bool       `bson:"free"`
	ExternalCustomer   string     `bson:"external_customer_ref,omitempty"`
	ExternalSub        string     `bson:"external_subscription_ref,omitempty"`
	ExternalPrice      string     `bson:"external_price_ref,omitempty"`
	CreatedAt          time.Time  `bson:"created_at"`
	UpdatedAt          time.Time  `bson:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:                 s.ID.String(),
		SubscriberID:       s.SubscriberID,
		CreatorID:          s.CreatorID,
		TierID:             s.TierID.String(),
		Status:             string(s.Status),
		StartDate:          s.StartDate,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		CancelledAt:        s.CancelledAt,
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		Free:               s.Free,
		ExternalCustomer:   s.ExternalCustomerRef,
		ExternalSub:        s.ExternalSubscriptionRef,
		ExternalPrice:      s.ExternalPriceRef,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}
	tierID, err := id.ParseTierID(m.TierID)
	if err != nil {
		return nil, err
	}

	return &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                      subID,
		SubscriberID:            m.SubscriberID,
		CreatorID:               m.CreatorID,
		TierID:                  tierID,
		Status:                  subscription.Status(m.Status),
		StartDate:               m.StartDate,
		CurrentPeriodStart:      m.CurrentPeriodStart,
		CurrentPeriodEnd:        m.CurrentPeriodEnd,
		CancelledAt:             m.CancelledAt,
		CancelAtPeriodEnd:       m.CancelAtPeriodEnd,
		Free:                    m.Free,
		ExternalCustomerRef:     m.ExternalCustomer,
		ExternalSubscriptionRef: m.ExternalSub,
		ExternalPriceRef:        m.ExternalPrice,
	}, nil
}

// ==================== Access Cache models ====================

type accessCacheModel struct {
	CacheKey     string    `bson:"_id"`
	UserID       string    `bson:"user_id"`
	CreatorID    string    `bson:"creator_id"`
	RequiredTier string    `bson:"required_tier_id"`
	HasAccess    bool      `bson:"has_access"`
	Reason       string    `bson:"reason"`
	UserTierName string    `bson:"user_tier_name,omitempty"`
	ReqTierName  string    `bson:"required_tier_name,omitempty"`
	ExpiresAt    time.Time `bson:"expires_at"`
	CreatedAt    time.Time `bson:"created_at"`
}

func toAccessCacheModel(userID, creatorID, requiredTierID string, result *entitlement.Result, expiresAt time.Time) *accessCacheModel {
	return &accessCacheModel{
		CacheKey:     userID + ":" + creatorID + ":" + requiredTierID,
		UserID:       userID,
		CreatorID:    creatorID,
		RequiredTier: requiredTierID,
		HasAccess:    result.HasAccess,
		Reason:       string(result.Reason),
		UserTierName: result.UserTier,
		ReqTierName:  result.RequiredTier,
		ExpiresAt:    expiresAt,
		CreatedAt:    time.Now().UTC(),
	}
}

func fromAccessCacheModel(m *accessCacheModel) *entitlement.Result {
	return &entitlement.Result{
		HasAccess:    m.HasAccess,
		Reason:       entitlement.Reason(m.Reason),
		UserTier:     m.UserTierName,
		RequiredTier: m.ReqTierName,
	}
}
