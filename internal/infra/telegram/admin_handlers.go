package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gym_reminder_service/internal/app"
	idb "gym_reminder_service/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const unauthorizedReply = "You are not allowed to use this command."

// manualRunTimeout bounds a manual run; shutdown of the bot does not cancel it midway.
const manualRunTimeout = 30 * time.Minute

// RegisterAdminHandlers registers the reminder admin commands.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, baseLogger *logrus.Entry) {
	b.Handle("/run_reminders", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/run_reminders",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), manualRunTimeout)
		defer cancel()

		result, err := adminService.TriggerRun(runCtx, c.Sender().ID)
		if err != nil {
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(unauthorizedReply)
			}
			handlerLogger.WithError(err).Error("Manual reminder run failed")
			return c.Send(fmt.Sprintf("Reminder run failed: %s", err.Error()))
		}

		handlerLogger.WithField("run_id", result.RunID).Info("Manual reminder run finished")
		return c.Send(formatRunResult(result))
	})

	b.Handle("/last_run", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/last_run",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		l, err := adminService.LastRun(ctx, c.Sender().ID)
		if err != nil {
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(unauthorizedReply)
			case errors.Is(err, idb.ErrRunLogNotFound):
				return c.Send("No reminder run has been logged yet.")
			default:
				handlerLogger.WithError(err).Error("Failed to load last run")
				return c.Send("Could not load the last run. Please try again later.")
			}
		}

		state := "in progress"
		if l.Completed() {
			state = "completed at " + l.CompletedAt.Time.Format("2006-01-02 15:04")
		}
		mode := "scheduled"
		if l.Manual {
			mode = "manual"
		}
		return c.Send(fmt.Sprintf("Last run %s (%s) for %s, %s.\nMembers notified: %d",
			l.RunID, mode, l.RunDate.Format("2006-01-02"), state, len(l.MemberIDs)))
	})
}

func formatRunResult(r *app.RunResult) string {
	if r.Skipped {
		return fmt.Sprintf("Skipped for %s: %s.", r.Date, r.Reason)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Reminder run for %s finished.\n", r.Date)
	fmt.Fprintf(&b, "Expiring in %d days: %d\n", r.LookaheadDays, r.ExpiringInDays)
	fmt.Fprintf(&b, "Expiring today: %d\n", r.ExpiringToday)
	fmt.Fprintf(&b, "Recently expired: %d\n", r.RecentlyExpired)
	fmt.Fprintf(&b, "Sent: %d, failed: %d, skipped by branch policy: %d", r.NotificationsSent, r.Failed, r.SkippedByPolicy)
	if r.AdminSummary != nil && r.AdminSummary.Error != "" {
		fmt.Fprintf(&b, "\nAdmin summary failed: %s", r.AdminSummary.Error)
	}
	return b.String()
}
