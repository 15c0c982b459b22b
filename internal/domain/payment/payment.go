package payment

import (
	"context"
	"database/sql"
	"time"

	"gym_reminder_service/internal/domain/membership"
)

// Payment is a verified gateway payment.
type Payment struct {
	ID               int64         `db:"id"`
	GatewayOrderID   string        `db:"gateway_order_id"`
	GatewayPaymentID string        `db:"gateway_payment_id"`
	MemberID         int64         `db:"member_id"`
	BranchID         sql.NullInt64 `db:"branch_id"`
	AmountPaise      int64         `db:"amount_paise"`
	SubscriptionID   sql.NullInt64 `db:"subscription_id"`
	CreatedAt        time.Time     `db:"created_at"`
}

// Repository persists payments.
type Repository interface {
	GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*Payment, error)
	// RecordWithSubscription inserts the subscription and the payment atomically.
	RecordWithSubscription(ctx context.Context, p *Payment, sub *membership.Subscription) error
}
