// internal/domain/notification/status.go
package notification

import (
	"database/sql"
	"time"
)

// Record is the per-message audit row. Append-only.
// Corresponds to the 'notification_records' table.
type Record struct {
	ID        int64          `db:"id"`
	MemberID  int64          `db:"member_id"`
	BranchID  sql.NullInt64  `db:"branch_id"`
	Kind      Kind           `db:"kind"`
	Status    Status         `db:"status"`
	Error     sql.NullString `db:"error"`
	CreatedAt time.Time      `db:"created_at"`
}
