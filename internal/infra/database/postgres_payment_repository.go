package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gym_reminder_service/internal/domain/membership"
	"gym_reminder_service/internal/domain/payment"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var ErrPaymentNotFound = fmt.Errorf("payment not found")
var ErrDuplicatePayment = fmt.Errorf("payment with this gateway payment id already recorded")

const uniqueViolation = "23505"

type PostgresPaymentRepository struct {
	db *sqlx.DB
}

func NewPostgresPaymentRepository(db *sqlx.DB) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{db: db}
}

func (r *PostgresPaymentRepository) GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*payment.Payment, error) {
	query := `SELECT id, gateway_order_id, gateway_payment_id, member_id, branch_id, amount_paise, subscription_id, created_at
               FROM payments WHERE gateway_payment_id = $1`
	p := &payment.Payment{}
	if err := r.db.GetContext(ctx, p, query, gatewayPaymentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("error getting payment by gateway id: %w", err)
	}
	return p, nil
}

func (r *PostgresPaymentRepository) RecordWithSubscription(ctx context.Context, p *payment.Payment, sub *membership.Subscription) error {
	txn, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for payment: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	subQuery := `INSERT INTO subscriptions (member_id, branch_id, start_date, end_date, status)
               VALUES ($1, $2, $3::date, $4::date, $5)
               RETURNING id, created_at`
	err = txn.QueryRowxContext(ctx, subQuery, sub.MemberID, sub.BranchID,
		sub.StartDate.Format(dateLayout), sub.EndDate.Format(dateLayout), sub.Status).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating subscription for member %d: %w", sub.MemberID, err)
	}

	p.SubscriptionID = sql.NullInt64{Int64: sub.ID, Valid: true}
	payQuery := `INSERT INTO payments (gateway_order_id, gateway_payment_id, member_id, branch_id, amount_paise, subscription_id)
               VALUES ($1, $2, $3, $4, $5, $6)
               RETURNING id, created_at`
	err = txn.QueryRowxContext(ctx, payQuery, p.GatewayOrderID, p.GatewayPaymentID, p.MemberID, p.BranchID, p.AmountPaise, p.SubscriptionID).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == "payments_gateway_payment_id_key" {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("error creating payment %s: %w", p.GatewayPaymentID, err)
	}

	return txn.Commit()
}
