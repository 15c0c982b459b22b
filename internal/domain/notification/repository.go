// internal/domain/notification/repository.go
package notification

import (
	"context"
	"time"
)

// Repository defines operations for NotificationRecord and RunLog.
type Repository interface {
	// Record methods
	CreateRecord(ctx context.Context, rec *Record) error

	// RunLog methods
	// FindRunLog returns the run of the given kind for the calendar date of runDate, or ErrRunLogNotFound.
	// It keys on the same (summary_kind, run_date) pair as ClaimRun.
	FindRunLog(ctx context.Context, kind SummaryKind, runDate time.Time) (*RunLog, error)
	// ClaimRun inserts the row if no run of the same kind exists for log.RunDate.
	// It returns false when another invocation already holds the day.
	ClaimRun(ctx context.Context, log *RunLog) (bool, error)
	CompleteRun(ctx context.Context, log *RunLog) error
	ReleaseRun(ctx context.Context, id int64) error
	LatestRunLog(ctx context.Context, kind SummaryKind) (*RunLog, error)
}
