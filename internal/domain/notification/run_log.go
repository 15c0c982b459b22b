// internal/domain/notification/run_log.go
package notification

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// RunLog marks a batch job's run for a calendar day.
// Corresponds to the 'run_logs' table; (summary_kind, run_date) is unique.
type RunLog struct {
	ID          int64        `db:"id"`
	RunID       uuid.UUID    `db:"run_id"`
	SummaryKind SummaryKind  `db:"summary_kind"`
	RunDate     time.Time    `db:"run_date"` // local calendar date of the run
	MemberIDs   []int64      `db:"-"`        // members successfully notified
	Manual      bool         `db:"manual"`
	CompletedAt sql.NullTime `db:"completed_at"`
	CreatedAt   time.Time    `db:"created_at"`
}

// Completed reports whether the run reached the Run Logger.
func (l *RunLog) Completed() bool {
	return l.CompletedAt.Valid
}
