package app

import (
	"fmt"
	"time"

	"gym_reminder_service/internal/domain/notification"
)

const messageDateLayout = "02 Jan 2006"

func formatDate(t time.Time) string {
	return t.Format(messageDateLayout)
}

// renderMemberMessage returns the plain-text reminder for one member.
func renderMemberMessage(kind notification.Kind, lookaheadDays int, name string, endDate time.Time) string {
	date := formatDate(endDate)
	switch kind {
	case notification.KindExpiringToday:
		return fmt.Sprintf("Hi %s, your gym membership expires today (%s). Renew today to avoid a break in your workouts.", name, date)
	case notification.KindExpiredReminder:
		return fmt.Sprintf("Hi %s, your gym membership expired on %s. We miss you! Renew anytime to get back on track.", name, date)
	default:
		return fmt.Sprintf("Hi %s, your gym membership expires on %s (in %d days). Renew now to keep your access uninterrupted.", name, date, lookaheadDays)
	}
}
