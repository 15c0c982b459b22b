package membership

import (
	"context"
	"time"
)

// Repository defines the subscription queries used by the reminder job and payment flow.
type Repository interface {
	// ListExpiringOn returns non-expired subscriptions whose end date equals date.
	ListExpiringOn(ctx context.Context, date time.Time) ([]*Eligible, error)
	// ListExpiredBetween returns expired subscriptions whose end date falls in [from, to].
	ListExpiredBetween(ctx context.Context, from, to time.Time) ([]*Eligible, error)
	GetMemberByID(ctx context.Context, id int64) (*Member, error)
}
