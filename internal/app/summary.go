package app

import (
	"fmt"
	"strings"
	"time"

	"gym_reminder_service/internal/domain/membership"
)

type summarySection struct {
	title   string
	members []*membership.Eligible
}

// formatAdminSummary lists counts and the first displayMax names of each set.
func formatAdminSummary(day time.Time, sections []summarySection, sent, failed, displayMax int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily membership report for %s\n", formatDate(day))

	for _, sec := range sections {
		fmt.Fprintf(&b, "\n%s: %d\n", sec.title, len(sec.members))
		for i, m := range sec.members {
			if displayMax > 0 && i >= displayMax {
				fmt.Fprintf(&b, "...and %d more\n", len(sec.members)-displayMax)
				break
			}
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, m.Name, formatDate(m.EndDate))
		}
	}

	fmt.Fprintf(&b, "\nReminders sent: %d, failed: %d", sent, failed)
	return b.String()
}
