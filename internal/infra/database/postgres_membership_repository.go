package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gym_reminder_service/internal/domain/membership"

	"github.com/jmoiron/sqlx"
)

// Custom errors
var ErrMemberNotFound = fmt.Errorf("member not found")

type PostgresMembershipRepository struct {
	db *sqlx.DB
}

func NewPostgresMembershipRepository(db *sqlx.DB) *PostgresMembershipRepository {
	return &PostgresMembershipRepository{db: db}
}

// eligibleSelect joins subscriptions with members; branch falls back to the member's own.
const eligibleSelect = `SELECT s.id AS subscription_id, m.id AS member_id, m.name, m.phone,
                      COALESCE(s.branch_id, m.branch_id) AS branch_id, s.end_date
               FROM subscriptions s
               JOIN members m ON m.id = s.member_id`

func (r *PostgresMembershipRepository) ListExpiringOn(ctx context.Context, date time.Time) ([]*membership.Eligible, error) {
	query := eligibleSelect + `
               WHERE s.end_date = $1::date AND s.status <> $2
               ORDER BY m.name, s.id`
	eligible := make([]*membership.Eligible, 0)
	if err := r.db.SelectContext(ctx, &eligible, query, date.Format(dateLayout), membership.StatusExpired); err != nil {
		return nil, fmt.Errorf("error listing subscriptions expiring on %s: %w", date.Format(dateLayout), err)
	}
	return eligible, nil
}

func (r *PostgresMembershipRepository) ListExpiredBetween(ctx context.Context, from, to time.Time) ([]*membership.Eligible, error) {
	query := eligibleSelect + `
               WHERE s.status = $1 AND s.end_date BETWEEN $2::date AND $3::date
               ORDER BY s.end_date DESC, m.name, s.id`
	eligible := make([]*membership.Eligible, 0)
	if err := r.db.SelectContext(ctx, &eligible, query, membership.StatusExpired, from.Format(dateLayout), to.Format(dateLayout)); err != nil {
		return nil, fmt.Errorf("error listing subscriptions expired between %s and %s: %w", from.Format(dateLayout), to.Format(dateLayout), err)
	}
	return eligible, nil
}

func (r *PostgresMembershipRepository) GetMemberByID(ctx context.Context, id int64) (*membership.Member, error) {
	query := `SELECT id, name, phone, branch_id, created_at FROM members WHERE id = $1`
	m := &membership.Member{}
	if err := r.db.GetContext(ctx, m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("error getting member by ID: %w", err)
	}
	return m, nil
}
