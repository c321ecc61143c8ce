package patron_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/patron"
	"github.com/xraph/patron/earnings"
	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/payout"
	"github.com/xraph/patron/store"
	"github.com/xraph/patron/store/memory"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/tier"
	"github.com/xraph/patron/types"
)

// ──────────────────────────────────────────────────
// Test Helpers
// ──────────────────────────────────────────────────

func testBanking() payout.BankingInfo {
	return payout.BankingInfoFunc(func(_ context.Context, _ string) (string, bool, error) {
		return "pm_test", true, nil
	})
}

func newTestLedger(t *testing.T, opts ...patron.Option) *patron.Ledger {
	t.Helper()
	base := []patron.Option{patron.WithBankingInfo(testBanking())}
	return patron.New(memory.New(), append(base, opts...)...)
}

func mustTier(t *testing.T, l *patron.Ledger, creatorID, name string, priceCents int64, order int) *tier.Tier {
	t.Helper()
	tr := &tier.Tier{
		CreatorID: creatorID,
		Name:      name,
		Price:     types.USD(priceCents),
		Order:     order,
	}
	if err := l.CreateTier(context.Background(), tr); err != nil {
		t.Fatalf("CreateTier(%s): %v", name, err)
	}
	return tr
}

func mustSubscribe(t *testing.T, l *patron.Ledger, subscriberID, creatorID string, tierID id.TierID, status subscription.Status) *subscription.Subscription {
	t.Helper()
	sub := &subscription.Subscription{
		SubscriberID: subscriberID,
		CreatorID:    creatorID,
		TierID:       tierID,
		Status:       status,
	}
	if err := l.CreateSubscription(context.Background(), sub); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	return sub
}

// revenueFaultStore fails RecordRevenue with scripted errors before
// delegating to the wrapped store, and counts every attempt.
type revenueFaultStore struct {
	store.Store

	mu    sync.Mutex
	calls int
	errs  []error
}

func (s *revenueFaultStore) RecordRevenue(ctx context.Context, txn *earnings.Transaction, periodStart, periodEnd time.Time, delta earnings.Delta) error {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	if n <= len(s.errs) {
		return s.errs[n-1]
	}
	return s.Store.RecordRevenue(ctx, txn, periodStart, periodEnd, delta)
}

func (s *revenueFaultStore) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// ──────────────────────────────────────────────────
// Revenue Recording
// ──────────────────────────────────────────────────

func TestRecordRevenueRetryPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("unavailable store surfaces without retry", func(t *testing.T) {
		fs := &revenueFaultStore{
			Store: memory.New(),
			errs:  []error{patron.ErrStoreUnavailable, patron.ErrStoreUnavailable, patron.ErrStoreUnavailable},
		}
		l := patron.New(fs, patron.WithBankingInfo(testBanking()))

		_, err := l.RecordTip(ctx, "creator_1", "fan_1", types.USD(1000), "", "", "pi_down")
		if !errors.Is(err, patron.ErrStoreUnavailable) {
			t.Fatalf("RecordTip = %v, want ErrStoreUnavailable", err)
		}
		if got := fs.attempts(); got != 1 {
			t.Errorf("store called %d times, want 1", got)
		}
	})

	t.Run("lost race is retried", func(t *testing.T) {
		fs := &revenueFaultStore{
			Store: memory.New(),
			errs:  []error{patron.ErrStoreConflict, patron.ErrStoreConflict},
		}
		l := patron.New(fs, patron.WithBankingInfo(testBanking()))

		receipt, err := l.RecordTip(ctx, "creator_1", "fan_1", types.USD(1000), "", "", "pi_race")
		if err != nil {
			t.Fatalf("RecordTip = %v, want success after retries", err)
		}
		if receipt.Net.Amount != 850 {
			t.Errorf("net = %d, want 850", receipt.Net.Amount)
		}
		if got := fs.attempts(); got != 3 {
			t.Errorf("store called %d times, want 3", got)
		}
	})

	t.Run("persistent race gives up", func(t *testing.T) {
		fs := &revenueFaultStore{
			Store: memory.New(),
			errs:  []error{patron.ErrStoreConflict, patron.ErrStoreConflict, patron.ErrStoreConflict, patron.ErrStoreConflict},
		}
		l := patron.New(fs, patron.WithBankingInfo(testBanking()))

		_, err := l.RecordTip(ctx, "creator_1", "fan_1", types.USD(1000), "", "", "pi_hot")
		if !errors.Is(err, patron.ErrStoreConflict) {
			t.Fatalf("RecordTip = %v, want ErrStoreConflict", err)
		}
		if got := fs.attempts(); got != 3 {
			t.Errorf("store called %d times, want 3", got)
		}
	})
}

func TestRecordRevenueFeeMath(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		gross   int64
		wantFee int64
		wantNet int64
	}{
		{"round up at half", 999, 150, 849},
		{"exact", 1000, 150, 850},
		{"tiny amount rounds down", 1, 0, 1},
		{"round up", 997, 150, 847},
		{"large", 123456, 18518, 104938},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipt, err := l.RecordTip(ctx, "creator_1", "fan_1", types.USD(tt.gross), "", "", "pi_"+tt.name)
			if err != nil {
				t.Fatalf("RecordTip: %v", err)
			}
			if receipt.Fee.Amount != tt.wantFee {
				t.Errorf("fee = %d, want %d", receipt.Fee.Amount, tt.wantFee)
			}
			if receipt.Net.Amount != tt.wantNet {
				t.Errorf("net = %d, want %d", receipt.Net.Amount, tt.wantNet)
			}
			if receipt.Gross.Amount != tt.gross {
				t.Errorf("gross = %d, want %d", receipt.Gross.Amount, tt.gross)
			}
			if receipt.TransactionID.IsNil() {
				t.Error("expected transaction ID on receipt")
			}
		})
	}
}

func TestRecordRevenueValidation(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	t.Run("missing creator", func(t *testing.T) {
		_, err := l.RecordTip(ctx, "", "fan_1", types.USD(1000), "", "", "pi_1")
		var verr patron.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("missing counterparty", func(t *testing.T) {
		_, err := l.RecordSubscriptionPayment(ctx, "creator_1", "", types.USD(1000), id.TierID{}, "pi_2")
		var verr patron.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("zero amount", func(t *testing.T) {
		_, err := l.RecordTip(ctx, "creator_1", "fan_1", types.USD(0), "", "", "pi_3")
		var verr patron.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("negative amount", func(t *testing.T) {
		_, err := l.RecordTip(ctx, "creator_1", "fan_1", types.USD(-500), "", "", "pi_4")
		var verr patron.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("unsupported currency", func(t *testing.T) {
		_, err := l.RecordTip(ctx, "creator_1", "fan_1", types.Money{Amount: 1000, Currency: "xyz"}, "", "", "pi_5")
		if !errors.Is(err, patron.ErrUnsupportedCurrency) {
			t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
		}
	})
}

func TestRevenuePeriodBucketing(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	// Two payments in the same calendar month land in one period.
	if _, err := l.RecordTip(ctx, "creator_1", "fan_1", types.USD(1000), "", "", "pi_1"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.RecordSubscriptionPayment(ctx, "creator_1", "fan_2", types.USD(999), id.NewTierID(), "pi_2"); err != nil {
		t.Fatal(err)
	}

	periods, err := l.ListPeriods(ctx, "creator_1", earnings.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(periods) != 1 {
		t.Fatalf("expected 1 period, got %d", len(periods))
	}

	p := periods[0]
	if p.GrossRevenue.Amount != 1999 {
		t.Errorf("gross = %d, want 1999", p.GrossRevenue.Amount)
	}
	if p.TipsRevenue.Amount != 1000 {
		t.Errorf("tips = %d, want 1000", p.TipsRevenue.Amount)
	}
	if p.SubscriptionRevenue.Amount != 999 {
		t.Errorf("subscription = %d, want 999", p.SubscriptionRevenue.Amount)
	}
	if p.PlatformFee.Amount != 300 {
		t.Errorf("fee = %d, want 300", p.PlatformFee.Amount)
	}
	if p.NetRevenue.Amount != 1699 {
		t.Errorf("net = %d, want 1699", p.NetRevenue.Amount)
	}
	if !p.PeriodEnd.After(p.PeriodStart) {
		t.Error("period end must be after period start")
	}

	txns, err := l.ListTransactions(ctx, "creator_1", earnings.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(txns) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txns))
	}
}

// ──────────────────────────────────────────────────
// Earnings & Balance
// ──────────────────────────────────────────────────

func TestGetCreatorEarningsZeroHistory(t *testing.T) {
	l := newTestLedger(t)

	summary, err := l.GetCreatorEarnings(context.Background(), "creator_unknown")
	if err != nil {
		t.Fatalf("GetCreatorEarnings: %v", err)
	}
	if !summary.AllTime.Net.IsZero() {
		t.Errorf("all-time net = %s, want zero", summary.AllTime.Net)
	}
	if !summary.AvailableBalance.IsZero() {
		t.Errorf("available = %s, want zero", summary.AvailableBalance)
	}
	if summary.CanRequestPayout {
		t.Error("zero balance must not allow payout")
	}
	if summary.MinimumPayout.Amount != patron.DefaultMinimumPayout {
		t.Errorf("minimum = %d, want %d", summary.MinimumPayout.Amount, patron.DefaultMinimumPayout)
	}
	if summary.CommissionRateBps != patron.DefaultCommissionRateBps {
		t.Errorf("commission = %d, want %d", summary.CommissionRateBps, patron.DefaultCommissionRateBps)
	}
}

func TestEarningsLifecycle(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	// $100.00 tip: fee $15.00, net $85.00.
	if _, err := l.RecordTip(ctx, "creator_1", "fan_1", types.USD(10000), "post_1", "thanks!", "pi_1"); err != nil {
		t.Fatal(err)
	}

	summary, err := l.GetCreatorEarnings(ctx, "creator_1")
	if err != nil {
		t.Fatal(err)
	}
	if summary.AllTime.Net.Amount != 8500 {
		t.Fatalf("net = %d, want 8500", summary.AllTime.Net.Amount)
	}
	if summary.AvailableBalance.Amount != 8500 {
		t.Fatalf("available = %d, want 8500", summary.AvailableBalance.Amount)
	}
	if summary.CurrentMonth.Gross.Amount != 10000 {
		t.Errorf("current month gross = %d, want 10000", summary.CurrentMonth.Gross.Amount)
	}
	if !summary.CanRequestPayout {
		t.Fatal("balance above minimum must allow payout")
	}

	// A pending payout reserves the balance.
	p, err := l.RequestPayout(ctx, "creator_1", types.USD(8500))
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}

	summary, err = l.GetCreatorEarnings(ctx, "creator_1")
	if err != nil {
		t.Fatal(err)
	}
	if summary.PendingPayout.Amount != 8500 {
		t.Errorf("pending = %d, want 8500", summary.PendingPayout.Amount)
	}
	if !summary.AvailableBalance.IsZero() {
		t.Errorf("available = %d, want 0 while payout pending", summary.AvailableBalance.Amount)
	}

	// Settlement moves the reservation into paid-out.
	if err := l.ProcessPayout(ctx, p.ID, payout.Result{Success: true, TransferRef: "tr_1"}); err != nil {
		t.Fatalf("ProcessPayout: %v", err)
	}

	summary, err = l.GetCreatorEarnings(ctx, "creator_1")
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalPaidOut.Amount != 8500 {
		t.Errorf("paid out = %d, want 8500", summary.TotalPaidOut.Amount)
	}
	if !summary.PendingPayout.IsZero() {
		t.Errorf("pending = %d, want 0 after settlement", summary.PendingPayout.Amount)
	}
	if !summary.AvailableBalance.IsZero() {
		t.Errorf("available = %d, want 0 after settlement", summary.AvailableBalance.Amount)
	}
}

func TestMonthlyBreakdown(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.RecordTip(ctx, "creator_1", "fan_1", types.USD(2000), "", "", "pi_1"); err != nil {
		t.Fatal(err)
	}

	rows, err := l.MonthlyBreakdown(ctx, "creator_1", 6)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows, got %d", len(rows))
	}

	// Newest first: row 0 is the current month.
	if rows[0].Totals.Gross.Amount != 2000 {
		t.Errorf("current month gross = %d, want 2000", rows[0].Totals.Gross.Amount)
	}
	for i := 1; i < len(rows); i++ {
		if !rows[i].Totals.Gross.IsZero() {
			t.Errorf("month -%d gross = %d, want 0", i, rows[i].Totals.Gross.Amount)
		}
		if !rows[i].Month.Before(rows[i-1].Month) {
			t.Errorf("months must be newest first, row %d not before row %d", i, i-1)
		}
	}

	if _, err := l.MonthlyBreakdown(ctx, "creator_1", 0); err == nil {
		t.Error("expected error for zero months")
	}
}

// ──────────────────────────────────────────────────
// Payouts
// ──────────────────────────────────────────────────

func TestRequestPayoutChecks(t *testing.T) {
	ctx := context.Background()

	t.Run("insufficient balance", func(t *testing.T) {
		l := newTestLedger(t)
		_, err := l.RequestPayout(ctx, "creator_1", types.USD(10000))
		if !errors.Is(err, patron.ErrInsufficientBalance) {
			t.Fatalf("expected ErrInsufficientBalance, got %v", err)
		}
	})

	t.Run("below minimum", func(t *testing.T) {
		l := newTestLedger(t)
		if _, err := l.RecordTip(ctx, "creator_1", "fan_1", types.USD(10000), "", "", "pi_1"); err != nil {
			t.Fatal(err)
		}
		_, err := l.RequestPayout(ctx, "creator_1", types.USD(100))
		if !errors.Is(err, patron.ErrBelowMinimumPayout) {
			t.Fatalf("expected ErrBelowMinimumPayout, got %v", err)
		}
	})

	t.Run("no banking info", func(t *testing.T) {
		l := patron.New(memory.New())
		if _, err := l.RecordTip(ctx, "creator_1", "fan_1", types.USD(10000), "", "", "pi_1"); err != nil {
			t.Fatal(err)
		}
		_, err := l.RequestPayout(ctx, "creator_1", types.USD(8500))
		if !errors.Is(err, patron.ErrNoBankingInfo) {
			t.Fatalf("expected ErrNoBankingInfo, got %v", err)
		}
	})

	t.Run("no active payment method", func(t *testing.T) {
		banking := payout.BankingInfoFunc(func(_ context.Context, _ string) (string, bool, error) {
			return "", false, nil
		})
		l := patron.New(memory.New(), patron.WithBankingInfo(banking))
		if _, err := l.RecordTip(ctx, "creator_1", "fan_1", types.USD(10000), "", "", "pi_1"); err != nil {
			t.Fatal(err)
		}
		_, err := l.RequestPayout(ctx, "creator_1", types.USD(8500))
		if !errors.Is(err, patron.ErrNoBankingInfo) {
			t.Fatalf("expected ErrNoBankingInfo, got %v", err)
		}
	})

	t.Run("already pending", func(t *testing.T) {
		l := newTestLedger(t)
		if _, err := l.RecordTip(ctx, "creator_1", "fan_1", types.USD(100000), "", "", "pi_1"); err != nil {
			t.Fatal(err)
		}
		if _, err := l.RequestPayout(ctx, "creator_1", types.USD(5000)); err != nil {
			t.Fatal(err)
		}
		_, err := l.RequestPayout(ctx, "creator_1", types.USD(5000))
		if !errors.Is(err, patron.ErrPayoutAlreadyPending) {
			t.Fatalf("expected ErrPayoutAlreadyPending, got %v", err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		l := newTestLedger(t)
		var verr patron.ValidationError
		if _, err := l.RequestPayout(ctx, "", types.USD(5000)); !errors.As(err, &verr) {
			t.Errorf("empty creator: expected ValidationError, got %v", err)
		}
		if _, err := l.RequestPayout(ctx, "creator_1", types.USD(0)); !errors.As(err, &verr) {
			t.Errorf("zero amount: expected ValidationError, got %v", err)
		}
	})
}

func TestProcessPayout(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.RecordTip(ctx, "creator_1", "fan_1", types.USD(100000), "", "", "pi_1"); err != nil {
		t.Fatal(err)
	}

	t.Run("failure releases reservation", func(t *testing.T) {
		p, err := l.RequestPayout(ctx, "creator_1", types.USD(8000))
		if err != nil {
			t.Fatal(err)
		}

		if err := l.ProcessPayout(ctx, p.ID, payout.Result{Success: false, Error: "transfer declined"}); err != nil {
			t.Fatalf("ProcessPayout: %v", err)
		}

		got, err := l.GetPayout(ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != payout.StatusFailed {
			t.Errorf("status = %s, want failed", got.Status)
		}
		if got.Error != "transfer declined" {
			t.Errorf("error = %q, want declined message", got.Error)
		}
		if got.ProcessedAt == nil {
			t.Error("expected ProcessedAt after settlement")
		}

		// Failed payout no longer reserves the balance.
		summary, err := l.GetCreatorEarnings(ctx, "creator_1")
		if err != nil {
			t.Fatal(err)
		}
		if !summary.PendingPayout.IsZero() {
			t.Errorf("pending = %d after failure, want 0", summary.PendingPayout.Amount)
		}
	})

	t.Run("terminal states are final", func(t *testing.T) {
		p, err := l.RequestPayout(ctx, "creator_1", types.USD(8000))
		if err != nil {
			t.Fatal(err)
		}
		if err := l.ProcessPayout(ctx, p.ID, payout.Result{Success: true, TransferRef: "tr_1"}); err != nil {
			t.Fatal(err)
		}

		err = l.ProcessPayout(ctx, p.ID, payout.Result{Success: false, Error: "late failure"})
		if !patron.IsConflict(err) {
			t.Fatalf("expected conflict settling a settled payout, got %v", err)
		}

		got, err := l.GetPayout(ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != payout.StatusCompleted {
			t.Errorf("status = %s, settled payout must not change", got.Status)
		}
		if got.TransferRef != "tr_1" {
			t.Errorf("transfer ref = %q, want tr_1", got.TransferRef)
		}
	})

	t.Run("result validation", func(t *testing.T) {
		var verr patron.ValidationError
		if err := l.ProcessPayout(ctx, id.NewPayoutID(), payout.Result{Success: true}); !errors.As(err, &verr) {
			t.Errorf("success without ref: expected ValidationError, got %v", err)
		}
		if err := l.ProcessPayout(ctx, id.NewPayoutID(), payout.Result{Success: false}); !errors.As(err, &verr) {
			t.Errorf("failure without error: expected ValidationError, got %v", err)
		}
	})

	t.Run("unknown payout", func(t *testing.T) {
		err := l.ProcessPayout(ctx, id.NewPayoutID(), payout.Result{Success: true, TransferRef: "tr_x"})
		if !patron.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestConcurrentPayoutRequests(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.RecordTip(ctx, "creator_1", "fan_1", types.USD(1000000), "", "", "pi_1"); err != nil {
		t.Fatal(err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.RequestPayout(ctx, "creator_1", types.USD(5000))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, patron.ErrPayoutAlreadyPending):
		default:
			t.Errorf("worker %d: unexpected error %v", i, err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d concurrent requests succeeded, want exactly 1", succeeded)
	}
}

func TestPayoutSettings(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	t.Run("defaults when unset", func(t *testing.T) {
		s, err := l.GetPayoutSettings(ctx, "creator_1")
		if err != nil {
			t.Fatal(err)
		}
		if s.MinimumPayout.Amount != patron.DefaultMinimumPayout {
			t.Errorf("minimum = %d, want platform default", s.MinimumPayout.Amount)
		}
		if s.Schedule != payout.ScheduleMonthly {
			t.Errorf("schedule = %s, want monthly", s.Schedule)
		}
		if s.AutoPayout {
			t.Error("auto payout must default off")
		}
	})

	t.Run("update and raised minimum", func(t *testing.T) {
		err := l.UpdatePayoutSettings(ctx, &payout.Settings{
			CreatorID:     "creator_1",
			MinimumPayout: types.USD(10000),
			Schedule:      payout.ScheduleWeekly,
			Currency:      "usd",
		})
		if err != nil {
			t.Fatal(err)
		}

		s, err := l.GetPayoutSettings(ctx, "creator_1")
		if err != nil {
			t.Fatal(err)
		}
		if s.MinimumPayout.Amount != 10000 {
			t.Errorf("minimum = %d, want 10000", s.MinimumPayout.Amount)
		}

		// The raised minimum now gates payout requests.
		if _, err := l.RecordTip(ctx, "creator_1", "fan_1", types.USD(10000), "", "", "pi_1"); err != nil {
			t.Fatal(err)
		}
		_, err = l.RequestPayout(ctx, "creator_1", types.USD(8500))
		if !errors.Is(err, patron.ErrBelowMinimumPayout) {
			t.Fatalf("expected ErrBelowMinimumPayout under raised floor, got %v", err)
		}
	})

	t.Run("rejections", func(t *testing.T) {
		err := l.UpdatePayoutSettings(ctx, &payout.Settings{
			CreatorID:     "creator_2",
			MinimumPayout: types.USD(10000),
			Schedule:      "hourly",
			Currency:      "usd",
		})
		if !errors.Is(err, patron.ErrUnsupportedSchedule) {
			t.Errorf("bad schedule: expected ErrUnsupportedSchedule, got %v", err)
		}

		err = l.UpdatePayoutSettings(ctx, &payout.Settings{
			CreatorID:     "creator_2",
			MinimumPayout: types.Money{Amount: 10000, Currency: "xyz"},
			Schedule:      payout.ScheduleMonthly,
			Currency:      "xyz",
		})
		if !errors.Is(err, patron.ErrUnsupportedCurrency) {
			t.Errorf("bad currency: expected ErrUnsupportedCurrency, got %v", err)
		}

		err = l.UpdatePayoutSettings(ctx, &payout.Settings{
			CreatorID:     "creator_2",
			MinimumPayout: types.USD(100),
			Schedule:      payout.ScheduleMonthly,
			Currency:      "usd",
		})
		var verr patron.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("below floor: expected ValidationError, got %v", err)
		}
	})
}

func TestAutoPayoutSweep(t *testing.T) {
	store := memory.New()
	l := patron.New(store,
		patron.WithBankingInfo(testBanking()),
		patron.WithAutoPayout(20*time.Millisecond),
	)
	ctx := context.Background()

	if _, err := l.RecordTip(ctx, "creator_1", "fan_1", types.USD(100000), "", "", "pi_1"); err != nil {
		t.Fatal(err)
	}
	err := l.UpdatePayoutSettings(ctx, &payout.Settings{
		CreatorID:     "creator_1",
		MinimumPayout: types.USD(5000),
		Schedule:      payout.ScheduleMonthly,
		AutoPayout:    true,
		Currency:      "usd",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := l.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer l.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		payouts, err := l.ListPayouts(ctx, "creator_1", payout.ListOpts{})
		if err != nil {
			t.Fatal(err)
		}
		if len(payouts) == 1 {
			if payouts[0].Amount.Amount != 85000 {
				t.Fatalf("swept amount = %d, want full balance 85000", payouts[0].Amount.Amount)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("auto-payout sweep never requested a payout")
}

// ──────────────────────────────────────────────────
// Tiers
// ──────────────────────────────────────────────────

func TestTierCatalog(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	bronze := mustTier(t, l, "creator_1", "Bronze", 499, 0)
	silver := mustTier(t, l, "creator_1", "Silver", 999, 1)
	gold := mustTier(t, l, "creator_1", "Gold", 1999, 2)

	t.Run("list sorted for display", func(t *testing.T) {
		tiers, err := l.ListTiers(ctx, "creator_1", tier.ListOpts{})
		if err != nil {
			t.Fatal(err)
		}
		if len(tiers) != 3 {
			t.Fatalf("expected 3 tiers, got %d", len(tiers))
		}
		want := []string{"Bronze", "Silver", "Gold"}
		for i, name := range want {
			if tiers[i].Name != name {
				t.Errorf("tier %d = %s, want %s", i, tiers[i].Name, name)
			}
		}
	})

	t.Run("update owner mismatch", func(t *testing.T) {
		stolen := *silver
		stolen.CreatorID = "creator_2"
		stolen.Name = "Hijacked"
		err := l.UpdateTier(ctx, &stolen)
		if !errors.Is(err, patron.ErrNotFoundOrUnauthorized) {
			t.Fatalf("expected ErrNotFoundOrUnauthorized, got %v", err)
		}
	})

	t.Run("deactivate blocked by subscribers", func(t *testing.T) {
		sub := mustSubscribe(t, l, "fan_1", "creator_1", gold.ID, subscription.StatusActive)

		err := l.DeactivateTier(ctx, gold.ID, "creator_1")
		if !errors.Is(err, patron.ErrTierHasSubscribers) {
			t.Fatalf("expected ErrTierHasSubscribers, got %v", err)
		}

		if err := l.CancelSubscription(ctx, sub.ID, "fan_1", true); err != nil {
			t.Fatal(err)
		}
		if err := l.DeactivateTier(ctx, gold.ID, "creator_1"); err != nil {
			t.Fatalf("DeactivateTier after cancel: %v", err)
		}

		// Deactivated tiers accept no new subscribers.
		err = l.CreateSubscription(ctx, &subscription.Subscription{
			SubscriberID: "fan_2",
			CreatorID:    "creator_1",
			TierID:       gold.ID,
		})
		if !errors.Is(err, patron.ErrTierInactive) {
			t.Fatalf("expected ErrTierInactive, got %v", err)
		}

		// And are hidden from the default listing.
		tiers, err := l.ListTiers(ctx, "creator_1", tier.ListOpts{})
		if err != nil {
			t.Fatal(err)
		}
		if len(tiers) != 2 {
			t.Errorf("expected 2 active tiers, got %d", len(tiers))
		}
		all, err := l.ListTiers(ctx, "creator_1", tier.ListOpts{IncludeInactive: true})
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 tiers including inactive, got %d", len(all))
		}
	})

	t.Run("reorder", func(t *testing.T) {
		if err := l.ReorderTiers(ctx, "creator_1", []id.TierID{silver.ID, bronze.ID}); err != nil {
			t.Fatal(err)
		}
		tiers, err := l.ListTiers(ctx, "creator_1", tier.ListOpts{})
		if err != nil {
			t.Fatal(err)
		}
		if tiers[0].Name != "Silver" {
			t.Errorf("first tier = %s, want Silver after reorder", tiers[0].Name)
		}
	})

	t.Run("reorder foreign tier", func(t *testing.T) {
		foreign := mustTier(t, l, "creator_2", "Other", 999, 0)
		err := l.ReorderTiers(ctx, "creator_1", []id.TierID{foreign.ID})
		if !errors.Is(err, patron.ErrNotFoundOrUnauthorized) {
			t.Fatalf("expected ErrNotFoundOrUnauthorized, got %v", err)
		}
	})
}

func TestTierTemplates(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	free, err := l.CreateDefaultFreeTier(ctx, "creator_1")
	if err != nil {
		t.Fatal(err)
	}
	if !free.IsFree() {
		t.Error("default free tier must be free")
	}

	tpls := tier.Templates("en")
	if len(tpls) != 3 {
		t.Fatalf("expected 3 templates, got %d", len(tpls))
	}
	for i, tpl := range tpls {
		if _, err := l.CreateTierFromTemplate(ctx, "creator_1", tpl, i+1); err != nil {
			t.Fatalf("CreateTierFromTemplate(%s): %v", tpl.Name, err)
		}
	}

	// Free tier subscriptions activate immediately.
	sub, err := l.SubscribeToFreeTier(ctx, "fan_1", "creator_1", free.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Status != subscription.StatusActive {
		t.Errorf("status = %s, want active", sub.Status)
	}
	if !sub.Free {
		t.Error("expected free flag on free-tier subscription")
	}

	// Paid tiers refuse the free-tier path.
	paid := mustTier(t, l, "creator_1", "Paid", 999, 9)
	if _, err := l.SubscribeToFreeTier(ctx, "fan_2", "creator_1", paid.ID); !errors.Is(err, patron.ErrTierNotFree) {
		t.Fatalf("expected ErrTierNotFree, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Subscriptions
// ──────────────────────────────────────────────────

func TestCreateSubscription(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	gold := mustTier(t, l, "creator_1", "Gold", 1999, 0)

	t.Run("defaults", func(t *testing.T) {
		sub := mustSubscribe(t, l, "fan_1", "creator_1", gold.ID, "")
		if sub.Status != subscription.StatusPending {
			t.Errorf("status = %s, want pending default", sub.Status)
		}
		if sub.ID.IsNil() {
			t.Error("expected generated subscription ID")
		}
		if sub.CurrentPeriodEnd.Before(sub.CurrentPeriodStart) {
			t.Error("period end before period start")
		}
	})

	t.Run("one countable per pair", func(t *testing.T) {
		err := l.CreateSubscription(ctx, &subscription.Subscription{
			SubscriberID: "fan_1",
			CreatorID:    "creator_1",
			TierID:       gold.ID,
		})
		if !errors.Is(err, patron.ErrAlreadySubscribed) {
			t.Fatalf("expected ErrAlreadySubscribed, got %v", err)
		}
	})

	t.Run("self subscribe", func(t *testing.T) {
		err := l.CreateSubscription(ctx, &subscription.Subscription{
			SubscriberID: "creator_1",
			CreatorID:    "creator_1",
			TierID:       gold.ID,
		})
		var verr patron.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("foreign tier", func(t *testing.T) {
		err := l.CreateSubscription(ctx, &subscription.Subscription{
			SubscriberID: "fan_2",
			CreatorID:    "creator_2",
			TierID:       gold.ID,
		})
		var verr patron.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("unknown tier", func(t *testing.T) {
		err := l.CreateSubscription(ctx, &subscription.Subscription{
			SubscriberID: "fan_2",
			CreatorID:    "creator_1",
			TierID:       id.NewTierID(),
		})
		if !patron.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("counter moves", func(t *testing.T) {
		got, err := l.GetTier(ctx, gold.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.SubscriberCount != 1 {
			t.Errorf("subscriber count = %d, want 1", got.SubscriberCount)
		}
	})
}

func TestConcurrentSubscriptions(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	gold := mustTier(t, l, "creator_1", "Gold", 1999, 0)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = l.CreateSubscription(ctx, &subscription.Subscription{
				SubscriberID: "fan_1",
				CreatorID:    "creator_1",
				TierID:       gold.ID,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, patron.ErrAlreadySubscribed):
		default:
			t.Errorf("worker %d: unexpected error %v", i, err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d concurrent subscriptions succeeded, want exactly 1", succeeded)
	}
}

func TestCancelSubscription(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	gold := mustTier(t, l, "creator_1", "Gold", 1999, 0)

	t.Run("unauthorized is indistinguishable from missing", func(t *testing.T) {
		sub := mustSubscribe(t, l, "fan_1", "creator_1", gold.ID, subscription.StatusActive)

		err := l.CancelSubscription(ctx, sub.ID, "someone_else", true)
		if !errors.Is(err, patron.ErrNotFoundOrUnauthorized) {
			t.Fatalf("wrong requester: expected ErrNotFoundOrUnauthorized, got %v", err)
		}
		err = l.CancelSubscription(ctx, id.NewSubscriptionID(), "fan_1", true)
		if !errors.Is(err, patron.ErrNotFoundOrUnauthorized) {
			t.Fatalf("missing sub: expected ErrNotFoundOrUnauthorized, got %v", err)
		}

		if err := l.CancelSubscription(ctx, sub.ID, "fan_1", true); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("immediate", func(t *testing.T) {
		sub := mustSubscribe(t, l, "fan_2", "creator_1", gold.ID, subscription.StatusActive)

		if err := l.CancelSubscription(ctx, sub.ID, "fan_2", true); err != nil {
			t.Fatal(err)
		}

		got, err := l.GetSubscription(ctx, sub.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != subscription.StatusCancelled {
			t.Errorf("status = %s, want cancelled", got.Status)
		}
		if got.CancelledAt == nil {
			t.Error("expected CancelledAt timestamp")
		}

		// Cancel is not idempotent; a second attempt reports the state.
		err = l.CancelSubscription(ctx, sub.ID, "fan_2", true)
		if !errors.Is(err, patron.ErrAlreadyCancelled) {
			t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
		}

		// The pair is free again for a new subscription.
		mustSubscribe(t, l, "fan_2", "creator_1", gold.ID, subscription.StatusActive)
	})

	t.Run("at period end", func(t *testing.T) {
		sub := mustSubscribe(t, l, "fan_3", "creator_1", gold.ID, subscription.StatusActive)

		if err := l.CancelSubscription(ctx, sub.ID, "fan_3", false); err != nil {
			t.Fatal(err)
		}

		got, err := l.GetSubscription(ctx, sub.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != subscription.StatusActive {
			t.Errorf("status = %s, want active until period end", got.Status)
		}
		if !got.CancelAtPeriodEnd {
			t.Error("expected cancel-at-period-end flag")
		}
	})
}

func TestChangeTier(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	bronze := mustTier(t, l, "creator_1", "Bronze", 499, 0)
	gold := mustTier(t, l, "creator_1", "Gold", 1999, 1)
	foreign := mustTier(t, l, "creator_2", "Other", 999, 0)

	sub := mustSubscribe(t, l, "fan_1", "creator_1", bronze.ID, subscription.StatusActive)

	t.Run("upgrade moves counters", func(t *testing.T) {
		if err := l.ChangeTier(ctx, sub.ID, gold.ID, "fan_1"); err != nil {
			t.Fatal(err)
		}

		got, err := l.GetSubscription(ctx, sub.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.TierID.String() != gold.ID.String() {
			t.Errorf("tier = %s, want gold", got.TierID)
		}

		b, _ := l.GetTier(ctx, bronze.ID)
		g, _ := l.GetTier(ctx, gold.ID)
		if b.SubscriberCount != 0 {
			t.Errorf("bronze count = %d, want 0", b.SubscriberCount)
		}
		if g.SubscriberCount != 1 {
			t.Errorf("gold count = %d, want 1", g.SubscriberCount)
		}
	})

	t.Run("same tier is a no-op", func(t *testing.T) {
		if err := l.ChangeTier(ctx, sub.ID, gold.ID, "fan_1"); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("foreign tier", func(t *testing.T) {
		err := l.ChangeTier(ctx, sub.ID, foreign.ID, "fan_1")
		var verr patron.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		err := l.ChangeTier(ctx, sub.ID, bronze.ID, "someone_else")
		if !errors.Is(err, patron.ErrNotFoundOrUnauthorized) {
			t.Fatalf("expected ErrNotFoundOrUnauthorized, got %v", err)
		}
	})

	t.Run("inactive subscription", func(t *testing.T) {
		other := mustSubscribe(t, l, "fan_2", "creator_1", bronze.ID, subscription.StatusPending)
		err := l.ChangeTier(ctx, other.ID, gold.ID, "fan_2")
		if !errors.Is(err, patron.ErrSubscriptionInactive) {
			t.Fatalf("expected ErrSubscriptionInactive, got %v", err)
		}
	})
}

func TestApplyExternalStatus(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	gold := mustTier(t, l, "creator_1", "Gold", 1999, 0)

	sub := &subscription.Subscription{
		SubscriberID:            "fan_1",
		CreatorID:               "creator_1",
		TierID:                  gold.ID,
		ExternalSubscriptionRef: "es_1",
	}
	if err := l.CreateSubscription(ctx, sub); err != nil {
		t.Fatal(err)
	}

	t.Run("activation updates period", func(t *testing.T) {
		start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)
		err := l.ApplyExternalStatus(ctx, subscription.BillingEvent{
			ExternalSubscriptionRef: "es_1",
			ExternalStatus:          "active",
			CurrentPeriodStart:      start,
			CurrentPeriodEnd:        end,
		})
		if err != nil {
			t.Fatal(err)
		}

		got, err := l.GetSubscription(ctx, sub.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != subscription.StatusActive {
			t.Errorf("status = %s, want active", got.Status)
		}
		if !got.CurrentPeriodStart.Equal(start) || !got.CurrentPeriodEnd.Equal(end) {
			t.Error("period window not updated from event")
		}
	})

	t.Run("past_due drops the counter", func(t *testing.T) {
		err := l.ApplyExternalStatus(ctx, subscription.BillingEvent{
			ExternalSubscriptionRef: "es_1",
			ExternalStatus:          "past_due",
		})
		if err != nil {
			t.Fatal(err)
		}
		g, _ := l.GetTier(ctx, gold.ID)
		if g.SubscriberCount != 0 {
			t.Errorf("count = %d after past_due, want 0", g.SubscriberCount)
		}
	})

	t.Run("recovery restores the counter", func(t *testing.T) {
		err := l.ApplyExternalStatus(ctx, subscription.BillingEvent{
			ExternalSubscriptionRef: "es_1",
			ExternalStatus:          "active",
		})
		if err != nil {
			t.Fatal(err)
		}
		g, _ := l.GetTier(ctx, gold.ID)
		if g.SubscriberCount != 1 {
			t.Errorf("count = %d after recovery, want 1", g.SubscriberCount)
		}
	})

	t.Run("cancellation stamps CancelledAt", func(t *testing.T) {
		err := l.ApplyExternalStatus(ctx, subscription.BillingEvent{
			ExternalSubscriptionRef: "es_1",
			ExternalStatus:          "canceled",
		})
		if err != nil {
			t.Fatal(err)
		}
		got, err := l.GetSubscription(ctx, sub.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != subscription.StatusCancelled {
			t.Errorf("status = %s, want cancelled", got.Status)
		}
		if got.CancelledAt == nil {
			t.Error("expected CancelledAt")
		}
	})

	t.Run("provider event revives a cancelled subscription", func(t *testing.T) {
		err := l.ApplyExternalStatus(ctx, subscription.BillingEvent{
			ExternalSubscriptionRef: "es_1",
			ExternalStatus:          "active",
		})
		if err != nil {
			t.Fatal(err)
		}
		got, err := l.GetSubscription(ctx, sub.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != subscription.StatusActive {
			t.Errorf("status = %s, want active after provider revival", got.Status)
		}
		g, _ := l.GetTier(ctx, gold.ID)
		if g.SubscriberCount != 1 {
			t.Errorf("count = %d after revival, want 1", g.SubscriberCount)
		}
	})

	t.Run("unknown ref", func(t *testing.T) {
		err := l.ApplyExternalStatus(ctx, subscription.BillingEvent{
			ExternalSubscriptionRef: "es_unknown",
			ExternalStatus:          "active",
		})
		if !patron.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestCreatorSubscriptionStats(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	free := mustTier(t, l, "creator_1", "Free", 0, 0)
	gold := mustTier(t, l, "creator_1", "Gold", 1999, 1)

	mustSubscribe(t, l, "fan_1", "creator_1", gold.ID, subscription.StatusActive)
	mustSubscribe(t, l, "fan_2", "creator_1", free.ID, subscription.StatusActive)
	s3 := mustSubscribe(t, l, "fan_3", "creator_1", gold.ID, subscription.StatusActive)
	if err := l.CancelSubscription(ctx, s3.ID, "fan_3", true); err != nil {
		t.Fatal(err)
	}

	stats, err := l.CreatorSubscriptionStats(ctx, "creator_1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Active != 2 {
		t.Errorf("active = %d, want 2", stats.Active)
	}
	if stats.Paid != 1 {
		t.Errorf("paid = %d, want 1", stats.Paid)
	}
	if stats.Free != 1 {
		t.Errorf("free = %d, want 1", stats.Free)
	}
	if stats.Cancelled != 1 {
		t.Errorf("cancelled = %d, want 1", stats.Cancelled)
	}
}

// ──────────────────────────────────────────────────
// Tier Access
// ──────────────────────────────────────────────────

func TestCheckTierAccess(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	bronze := mustTier(t, l, "creator_1", "Bronze", 499, 0)
	silver := mustTier(t, l, "creator_1", "Silver", 999, 1)
	gold := mustTier(t, l, "creator_1", "Gold", 1999, 2)

	mustSubscribe(t, l, "fan_silver", "creator_1", silver.ID, subscription.StatusActive)
	mustSubscribe(t, l, "fan_pending", "creator_1", gold.ID, subscription.StatusPending)

	tests := []struct {
		name       string
		userID     string
		required   id.TierID
		wantAccess bool
		wantReason entitlement.Reason
	}{
		{"ungated content", "anyone", id.TierID{}, true, entitlement.ReasonFreeContent},
		{"owner", "creator_1", gold.ID, true, entitlement.ReasonOwner},
		{"not subscribed", "stranger", bronze.ID, false, entitlement.ReasonNotSubscribed},
		{"pending is not active", "fan_pending", bronze.ID, false, entitlement.ReasonNotSubscribed},
		{"lower tier unlocks", "fan_silver", bronze.ID, true, entitlement.ReasonSufficientTier},
		{"exact tier unlocks", "fan_silver", silver.ID, true, entitlement.ReasonSufficientTier},
		{"higher tier stays locked", "fan_silver", gold.ID, false, entitlement.ReasonInsufficientTier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := l.CheckTierAccess(ctx, tt.userID, "creator_1", tt.required)
			if err != nil {
				t.Fatalf("CheckTierAccess: %v", err)
			}
			if result.HasAccess != tt.wantAccess {
				t.Errorf("access = %v, want %v", result.HasAccess, tt.wantAccess)
			}
			if result.Reason != tt.wantReason {
				t.Errorf("reason = %s, want %s", result.Reason, tt.wantReason)
			}
		})
	}

	t.Run("tier names on price comparison", func(t *testing.T) {
		result, err := l.CheckTierAccess(ctx, "fan_silver", "creator_1", gold.ID)
		if err != nil {
			t.Fatal(err)
		}
		if result.UserTier != "Silver" || result.RequiredTier != "Gold" {
			t.Errorf("tiers = %q/%q, want Silver/Gold", result.UserTier, result.RequiredTier)
		}
	})
}

func TestCheckTierAccessMissingTierPolicy(t *testing.T) {
	run := func(t *testing.T, policy entitlement.MissingTierPolicy, wantAccess bool) {
		t.Helper()
		l := newTestLedger(t, patron.WithMissingTierPolicy(policy))
		ctx := context.Background()

		silver := mustTier(t, l, "creator_1", "Silver", 999, 0)
		mustSubscribe(t, l, "fan_1", "creator_1", silver.ID, subscription.StatusActive)

		// Gate on a tier ID that never existed.
		result, err := l.CheckTierAccess(ctx, "fan_1", "creator_1", id.NewTierID())
		if err != nil {
			t.Fatal(err)
		}
		if result.Reason != entitlement.ReasonTierNotFound {
			t.Errorf("reason = %s, want tier_not_found", result.Reason)
		}
		if result.HasAccess != wantAccess {
			t.Errorf("access = %v, want %v", result.HasAccess, wantAccess)
		}
	}

	t.Run("fail open", func(t *testing.T) { run(t, entitlement.FailOpen, true) })
	t.Run("fail closed", func(t *testing.T) { run(t, entitlement.FailClosed, false) })
}

func TestCheckTierAccessSubscriberTierVanished(t *testing.T) {
	st := memory.New()
	l := patron.New(st, patron.WithBankingInfo(testBanking()))
	ctx := context.Background()

	gold := mustTier(t, l, "creator_1", "Gold", 1999, 0)

	// An active subscription whose tier record no longer exists. Without a
	// price to compare, the subscription must not unlock the gate — even
	// under the default fail-open policy, which covers the gating tier only.
	orphan := &subscription.Subscription{
		Entity:       types.NewEntity(),
		ID:           id.NewSubscriptionID(),
		SubscriberID: "fan_1",
		CreatorID:    "creator_1",
		TierID:       id.NewTierID(),
		Status:       subscription.StatusActive,
		StartDate:    time.Now().UTC(),
	}
	if err := st.CreateSubscription(ctx, orphan); err != nil {
		t.Fatal(err)
	}

	result, err := l.CheckTierAccess(ctx, "fan_1", "creator_1", gold.ID)
	if err != nil {
		t.Fatal(err)
	}
	if result.HasAccess {
		t.Error("expected access denied when the subscriber's tier is gone")
	}
	if result.Reason != entitlement.ReasonInsufficientTier {
		t.Errorf("reason = %s, want insufficient_tier", result.Reason)
	}
	if result.RequiredTier != "Gold" {
		t.Errorf("required tier = %q, want Gold", result.RequiredTier)
	}
}

func TestCheckTierAccessCacheInvalidation(t *testing.T) {
	l := newTestLedger(t, patron.WithAccessCacheTTL(time.Hour))
	ctx := context.Background()

	gold := mustTier(t, l, "creator_1", "Gold", 1999, 0)
	sub := mustSubscribe(t, l, "fan_1", "creator_1", gold.ID, subscription.StatusActive)

	result, err := l.CheckTierAccess(ctx, "fan_1", "creator_1", gold.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !result.HasAccess {
		t.Fatal("expected access before cancel")
	}

	// Cancellation must invalidate the cached grant despite the long TTL.
	if err := l.CancelSubscription(ctx, sub.ID, "fan_1", true); err != nil {
		t.Fatal(err)
	}

	result, err = l.CheckTierAccess(ctx, "fan_1", "creator_1", gold.ID)
	if err != nil {
		t.Fatal(err)
	}
	if result.HasAccess {
		t.Error("expected access revoked after immediate cancel")
	}
	if result.Reason != entitlement.ReasonNotSubscribed {
		t.Errorf("reason = %s, want not_subscribed", result.Reason)
	}
}

// ──────────────────────────────────────────────────
// End to End
// ──────────────────────────────────────────────────

func TestEndToEndCreatorFlow(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if err := l.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer l.Stop()

	// Creator onboards with a free tier and the suggested paid tiers.
	if _, err := l.CreateDefaultFreeTier(ctx, "creator_1"); err != nil {
		t.Fatal(err)
	}
	var gold *tier.Tier
	for i, tpl := range tier.Templates("en") {
		tr, err := l.CreateTierFromTemplate(ctx, "creator_1", tpl, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if tr.Name == "Gold" {
			gold = tr
		}
	}
	if gold == nil {
		t.Fatal("templates did not include a Gold tier")
	}

	// A fan subscribes and the provider confirms the first charge.
	sub := &subscription.Subscription{
		SubscriberID:            "fan_1",
		CreatorID:               "creator_1",
		TierID:                  gold.ID,
		ExternalSubscriptionRef: "es_1",
	}
	if err := l.CreateSubscription(ctx, sub); err != nil {
		t.Fatal(err)
	}
	if err := l.ApplyExternalStatus(ctx, subscription.BillingEvent{
		ExternalSubscriptionRef: "es_1",
		ExternalStatus:          "active",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := l.RecordSubscriptionPayment(ctx, "creator_1", "fan_1", gold.Price, gold.ID, "pi_1"); err != nil {
		t.Fatal(err)
	}

	// Another fan tips $99.90.
	receipt, err := l.RecordTip(ctx, "creator_1", "fan_2", types.USD(9990), "post_1", "keep it up", "pi_2")
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Fee.Amount != 1499 || receipt.Net.Amount != 8491 {
		t.Fatalf("tip split = %d/%d, want 1499/8491", receipt.Fee.Amount, receipt.Net.Amount)
	}

	// Subscriber can view gold-gated content; tipper cannot.
	access, err := l.CheckTierAccess(ctx, "fan_1", "creator_1", gold.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !access.HasAccess {
		t.Error("active gold subscriber must have access")
	}
	access, err = l.CheckTierAccess(ctx, "fan_2", "creator_1", gold.ID)
	if err != nil {
		t.Fatal(err)
	}
	if access.HasAccess {
		t.Error("tipping alone must not grant access")
	}

	// Gold price 1999: fee 300, net 1699. Tip 9990: fee 1499, net 8491.
	summary, err := l.GetCreatorEarnings(ctx, "creator_1")
	if err != nil {
		t.Fatal(err)
	}
	wantNet := int64(1699 + 8491)
	if summary.AvailableBalance.Amount != wantNet {
		t.Fatalf("available = %d, want %d", summary.AvailableBalance.Amount, wantNet)
	}

	// The creator withdraws everything.
	p, err := l.RequestPayout(ctx, "creator_1", summary.AvailableBalance)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.ProcessPayout(ctx, p.ID, payout.Result{Success: true, TransferRef: "tr_1"}); err != nil {
		t.Fatal(err)
	}

	summary, err = l.GetCreatorEarnings(ctx, "creator_1")
	if err != nil {
		t.Fatal(err)
	}
	if !summary.AvailableBalance.IsZero() {
		t.Errorf("available = %d after full payout, want 0", summary.AvailableBalance.Amount)
	}
	if summary.TotalPaidOut.Amount != wantNet {
		t.Errorf("paid out = %d, want %d", summary.TotalPaidOut.Amount, wantNet)
	}

	// The books still balance: all-time net equals paid out.
	if summary.AllTime.Net.Amount != summary.TotalPaidOut.Amount {
		t.Errorf("net %d != paid out %d", summary.AllTime.Net.Amount, summary.TotalPaidOut.Amount)
	}
}
