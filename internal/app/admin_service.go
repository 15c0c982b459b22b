package app

import (
	"context"
	"fmt"

	"gym_reminder_service/internal/domain/notification"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")

// AdminService exposes the reminder job to the configured administrator.
type AdminService struct {
	runner          Runner
	notifRepo       notification.Repository
	summaryKind     notification.SummaryKind
	adminTelegramID int64
}

func NewAdminService(runner Runner, nr notification.Repository, summaryKind notification.SummaryKind, adminID int64) *AdminService {
	return &AdminService{
		runner:          runner,
		notifRepo:       nr,
		summaryKind:     summaryKind,
		adminTelegramID: adminID,
	}
}

// TriggerRun starts a manual run. The idempotency gate still applies.
func (s *AdminService) TriggerRun(ctx context.Context, performingAdminID int64) (*RunResult, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}
	return s.runner.Run(ctx, RunOptions{Manual: true, Trigger: "telegram"})
}

// LastRun returns the most recent run log of the job.
func (s *AdminService) LastRun(ctx context.Context, performingAdminID int64) (*notification.RunLog, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}
	l, err := s.notifRepo.LatestRunLog(ctx, s.summaryKind)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run log: %w", err)
	}
	return l, nil
}
