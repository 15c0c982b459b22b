package membership

import (
	"database/sql"
	"time"
)

// SubscriptionStatus is maintained by the status-refresh process; reminders only read it.
type SubscriptionStatus string

const (
	StatusActive  SubscriptionStatus = "active"
	StatusExpired SubscriptionStatus = "expired"
)

// Member represents a gym member.
type Member struct {
	ID        int64         `db:"id"`
	Name      string        `db:"name"`
	Phone     string        `db:"phone"`
	BranchID  sql.NullInt64 `db:"branch_id"`
	CreatedAt time.Time     `db:"created_at"`
}

// Subscription is a member's paid membership period.
type Subscription struct {
	ID        int64              `db:"id"`
	MemberID  int64              `db:"member_id"`
	BranchID  sql.NullInt64      `db:"branch_id"`
	StartDate time.Time          `db:"start_date"`
	EndDate   time.Time          `db:"end_date"`
	Status    SubscriptionStatus `db:"status"`
	CreatedAt time.Time          `db:"created_at"`
}

// Eligible is a subscription row joined with member identity.
// BranchID is the effective branch: the subscription's, falling back to the member's.
type Eligible struct {
	SubscriptionID int64         `db:"subscription_id"`
	MemberID       int64         `db:"member_id"`
	Name           string        `db:"name"`
	Phone          string        `db:"phone"`
	BranchID       sql.NullInt64 `db:"branch_id"`
	EndDate        time.Time     `db:"end_date"`
}
