package patron

import (
	"context"
	"time"

	"github.com/xraph/patron/earnings"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/types"
)

// ──────────────────────────────────────────────────
// Revenue Recording
// ──────────────────────────────────────────────────

// RecordSubscriptionPayment credits a creator for a confirmed subscription
// payment. The caller reports money that already moved; this method only
// books it: fee = commission of gross (rounded half-up), net = gross - fee,
// and the current month's period plus an immutable transaction are written
// as one atomic unit.
func (l *Ledger) RecordSubscriptionPayment(ctx context.Context, creatorID, subscriberID string, amount types.Money, tierID id.TierID, paymentRef string) (*earnings.Receipt, error) {
	txn := &earnings.Transaction{
		CreatorID:      creatorID,
		CounterpartyID: subscriberID,
		Type:           earnings.TransactionSubscription,
		TierID:         tierID,
		PaymentRef:     paymentRef,
	}
	return l.recordRevenue(ctx, txn, amount)
}

// RecordTip credits a creator for a confirmed one-off tip. PostID and
// message are optional context carried on the transaction.
func (l *Ledger) RecordTip(ctx context.Context, creatorID, tipperID string, amount types.Money, postID, message, paymentRef string) (*earnings.Receipt, error) {
	txn := &earnings.Transaction{
		CreatorID:      creatorID,
		CounterpartyID: tipperID,
		Type:           earnings.TransactionTip,
		PostID:         postID,
		Message:        message,
		PaymentRef:     paymentRef,
	}
	return l.recordRevenue(ctx, txn, amount)
}

func (l *Ledger) recordRevenue(ctx context.Context, txn *earnings.Transaction, amount types.Money) (*earnings.Receipt, error) {
	if txn.CreatorID == "" {
		return nil, ValidationError{Field: "creator_id", Message: "required"}
	}
	if txn.CounterpartyID == "" {
		return nil, ValidationError{Field: "counterparty_id", Message: "required"}
	}
	if !amount.IsPositive() {
		return nil, ValidationError{Field: "amount", Message: "must be positive"}
	}
	if !l.supportedCurrency(amount.Currency) {
		return nil, ErrUnsupportedCurrency
	}

	fee := amount.ApplyBps(l.commissionRateBps)
	net := amount.Subtract(fee)

	now := time.Now().UTC()
	periodStart, periodEnd := earnings.CurrentWindow(now)

	txn.ID = id.NewTransactionID()
	txn.Entity = types.NewEntity()
	txn.Gross = amount
	txn.Fee = fee
	txn.Net = net
	txn.CreatedAt = now

	delta := earnings.Delta{
		Subscription: types.Zero(amount.Currency),
		Tips:         types.Zero(amount.Currency),
		Gross:        amount,
		Fee:          fee,
		Net:          net,
	}
	if txn.Type == earnings.TransactionSubscription {
		delta.Subscription = amount
	} else {
		delta.Tips = amount
	}

	err := l.withConflictRetry(ctx, func() error {
		return l.store.RecordRevenue(ctx, txn, periodStart, periodEnd, delta)
	})
	if err != nil {
		return nil, err
	}

	l.plugins.EmitRevenueRecorded(ctx, txn)

	l.logger.Debug("revenue recorded",
		"creator_id", txn.CreatorID,
		"type", txn.Type,
		"gross", txn.Gross.String(),
		"fee", txn.Fee.String(),
		"net", txn.Net.String(),
	)

	return &earnings.Receipt{
		TransactionID: txn.ID,
		Gross:         amount,
		Fee:           fee,
		Net:           net,
	}, nil
}

// ──────────────────────────────────────────────────
// Earnings & Balance
// ──────────────────────────────────────────────────

// GetCreatorEarnings returns the earnings dashboard for a creator:
// all-time totals, the current month, payout sums and the available
// balance. A creator with no revenue history gets a zeroed summary, not an
// error. Read-only; all amounts are in the creator's payout currency.
func (l *Ledger) GetCreatorEarnings(ctx context.Context, creatorID string) (*earnings.Summary, error) {
	if creatorID == "" {
		return nil, ValidationError{Field: "creator_id", Message: "required"}
	}

	currency := l.payoutCurrency(ctx, creatorID)

	allTime, err := l.store.TotalsAllTime(ctx, creatorID, currency)
	if err != nil {
		return nil, err
	}

	periodStart, _ := earnings.CurrentWindow(time.Now())
	currentMonth := earnings.Totals{
		Gross: types.Zero(currency),
		Fee:   types.Zero(currency),
		Net:   types.Zero(currency),
	}
	if p, err := l.store.GetPeriod(ctx, creatorID, periodStart); err == nil {
		currentMonth = earnings.Totals{Gross: p.GrossRevenue, Fee: p.PlatformFee, Net: p.NetRevenue}
	} else if !IsNotFound(err) {
		return nil, err
	}

	paidOut, err := l.store.SumCompletedPayouts(ctx, creatorID, currency)
	if err != nil {
		return nil, err
	}
	inFlight, err := l.store.SumInFlightPayouts(ctx, creatorID, currency)
	if err != nil {
		return nil, err
	}

	// Available balance never goes negative even if history is
	// inconsistent (e.g. a refund recorded out of band).
	available := allTime.Net.Subtract(paidOut).Subtract(inFlight)
	available = available.Max(types.Zero(currency))

	minimum := l.effectiveMinimum(ctx, creatorID, currency)

	return &earnings.Summary{
		CreatorID:         creatorID,
		AllTime:           allTime,
		CurrentMonth:      currentMonth,
		TotalPaidOut:      paidOut,
		PendingPayout:     inFlight,
		AvailableBalance:  available,
		CanRequestPayout:  !available.LessThan(minimum) && available.IsPositive(),
		MinimumPayout:     minimum,
		CommissionRateBps: l.commissionRateBps,
	}, nil
}

// MonthlyBreakdown returns the last n months of earnings, newest first,
// zero-filled for months with no revenue.
func (l *Ledger) MonthlyBreakdown(ctx context.Context, creatorID string, months int) ([]earnings.MonthlyRow, error) {
	if months <= 0 {
		return nil, ValidationError{Field: "months", Message: "must be positive"}
	}

	currency := l.payoutCurrency(ctx, creatorID)
	start, _ := earnings.CurrentWindow(time.Now())

	rows := make([]earnings.MonthlyRow, 0, months)
	for i := 0; i < months; i++ {
		month := start.AddDate(0, -i, 0)
		row := earnings.MonthlyRow{
			Month: month,
			Totals: earnings.Totals{
				Gross: types.Zero(currency),
				Fee:   types.Zero(currency),
				Net:   types.Zero(currency),
			},
		}
		if p, err := l.store.GetPeriod(ctx, creatorID, month); err == nil {
			row.Totals = earnings.Totals{Gross: p.GrossRevenue, Fee: p.PlatformFee, Net: p.NetRevenue}
		} else if !IsNotFound(err) {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ListTransactions returns a creator's revenue history, newest first.
func (l *Ledger) ListTransactions(ctx context.Context, creatorID string, opts earnings.ListOpts) ([]*earnings.Transaction, error) {
	return l.store.ListTransactions(ctx, creatorID, opts)
}

// ListPeriods returns a creator's monthly earnings periods, newest first.
func (l *Ledger) ListPeriods(ctx context.Context, creatorID string, opts earnings.ListOpts) ([]*earnings.Period, error) {
	return l.store.ListPeriods(ctx, creatorID, opts)
}

// payoutCurrency resolves the currency a creator's balance is kept in:
// their payout settings currency, falling back to usd.
func (l *Ledger) payoutCurrency(ctx context.Context, creatorID string) string {
	if s, err := l.store.GetPayoutSettings(ctx, creatorID); err == nil && s.Currency != "" {
		return s.Currency
	}
	return "usd"
}
