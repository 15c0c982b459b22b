package scheduler

import (
	"context"
	"time"

	"gym_reminder_service/internal/app" // For Runner interface

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const runTimeout = 30 * time.Minute

type ReminderScheduler struct {
	cronEngine    *cron.Cron
	runner        app.Runner
	logger        *logrus.Entry
	cronSpecDaily string
}

func NewReminderScheduler(
	runner app.Runner,
	logger *logrus.Entry,
	location *time.Location,
	cronSpecDaily string, // e.g., "0 9 * * *" (9 AM daily)
) *ReminderScheduler {
	return &ReminderScheduler{
		cronEngine:    cron.New(cron.WithLocation(location)),
		runner:        runner,
		logger:        logger,
		cronSpecDaily: cronSpecDaily,
	}
}

// Start registers the daily job and starts the cron engine.
func (s *ReminderScheduler) Start() error {
	s.logger.Info("Starting reminder scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecDaily, s.executeDailyRun)
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.WithField("spec", s.cronSpecDaily).Info("Reminder scheduler started.")
	return nil
}

// Stop waits for a running job to finish.
func (s *ReminderScheduler) Stop() {
	<-s.cronEngine.Stop().Done()
	s.logger.Info("Reminder scheduler stopped.")
}

func (s *ReminderScheduler) executeDailyRun() {
	s.logger.Info("Cron job triggered for daily expiry reminders.")
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	result, err := s.runner.Run(ctx, app.RunOptions{Trigger: "cron"})
	if err != nil {
		s.logger.WithError(err).Error("Error during daily reminder run")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"skipped": result.Skipped,
		"sent":    result.NotificationsSent,
		"failed":  result.Failed,
	}).Info("Daily reminder run finished")
}
