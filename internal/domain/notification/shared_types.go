// internal/domain/notification/shared_types.go
package notification

import "fmt"

// Kind identifies which reminder a member received.
type Kind string

const (
	KindExpiringToday   Kind = "expiring_today"
	KindExpiredReminder Kind = "expired_reminder"
)

// KindExpiringInDays returns the kind used for the N-days-ahead reminder,
// e.g. expiring_2days.
func KindExpiringInDays(days int) Kind {
	return Kind(fmt.Sprintf("expiring_%ddays", days))
}

// Status is the delivery outcome stored on a Record.
type Status string

const (
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped" // branch messaging disabled, only written when auditing is on
)

// SummaryKind names a batch job for RunLog purposes.
type SummaryKind string

const (
	SummaryKindDailyPeriskope SummaryKind = "daily_periskope"
)
