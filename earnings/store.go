package earnings

import (
	"context"
	"time"
)

// Store persists periods and transactions.
//
// RecordRevenue is the critical write path: it must apply the period
// increment (upserting the period row if this is the first revenue of the
// month) and append the transaction as one atomic unit. Callers never see
// a period credited without its transaction or vice versa.
type Store interface {
	RecordRevenue(ctx context.Context, txn *Transaction, periodStart, periodEnd time.Time, delta Delta) error
	GetPeriod(ctx context.Context, creatorID string, periodStart time.Time) (*Period, error)
	ListPeriods(ctx context.Context, creatorID string, opts ListOpts) ([]*Period, error)
	// TotalsAllTime sums gross/fee/net across every period of the creator.
	TotalsAllTime(ctx context.Context, creatorID string, currency string) (Totals, error)
	ListTransactions(ctx context.Context, creatorID string, opts ListOpts) ([]*Transaction, error)
}

type ListOpts struct {
	Limit  int
	Offset int
}
