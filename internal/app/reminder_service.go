// internal/app/reminder_service.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gym_reminder_service/internal/domain/branch"
	"gym_reminder_service/internal/domain/membership"
	"gym_reminder_service/internal/domain/messaging"
	"gym_reminder_service/internal/domain/notification"
	idb "gym_reminder_service/internal/infra/database"
	"gym_reminder_service/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrCohortTooLarge = fmt.Errorf("eligible cohort exceeds the configured safety cap")

const (
	reasonAlreadyRan = "already ran today"
	reasonClaimed    = "another run holds today's claim"
)

const dateLayout = "2006-01-02"

// Runner runs the daily expiry reminder job. Implemented by ReminderService.
type Runner interface {
	Run(ctx context.Context, opts RunOptions) (*RunResult, error)
}

// RunOptions describe one invocation.
type RunOptions struct {
	// Manual marks invocations triggered by a person rather than the scheduler.
	// It does not bypass the idempotency gate.
	Manual  bool
	Trigger string
}

type AdminSummaryResult struct {
	Sent  bool   `json:"sent"`
	Error string `json:"error,omitempty"`
}

// RunResult is the JSON payload reported for a run.
type RunResult struct {
	RunID             string              `json:"runId,omitempty"`
	Skipped           bool                `json:"skipped"`
	Reason            string              `json:"reason,omitempty"`
	Date              string              `json:"date"`
	LookaheadDays     int                 `json:"lookaheadDays"`
	ExpiringToday     int                 `json:"expiringToday"`
	ExpiringInDays    int                 `json:"expiringInDays"`
	RecentlyExpired   int                 `json:"recentlyExpired"`
	NotificationsSent int                 `json:"notificationsSent"`
	Failed            int                 `json:"failed"`
	SkippedByPolicy   int                 `json:"skippedByPolicy"`
	AdminSummary      *AdminSummaryResult `json:"adminSummary,omitempty"`
}

// ReminderOptions configure eligibility windows and dispatch.
type ReminderOptions struct {
	SummaryKind       notification.SummaryKind
	LookaheadDays     int
	ExpiredWindowDays int
	NotifyExpired     bool
	AuditPolicySkips  bool
	MaxCohort         int // 0 disables the cap
	SendConcurrency   int
	SummaryDisplayMax int
	CountryCode       string
	ChatSuffix        string
	AdminPhone        string // empty disables the admin summary
	Location          *time.Location
}

// ReminderService implements the daily expiry reminder job:
// gate, claim, scan, policy filter, dispatch and run log.
type ReminderService struct {
	memberRepo membership.Repository
	branchRepo branch.Repository
	notifRepo  notification.Repository
	sender     messaging.Sender
	opts       ReminderOptions
	logger     *logrus.Entry
	tracer     trace.Tracer
	now        func() time.Time
}

func NewReminderService(
	mr membership.Repository,
	br branch.Repository,
	nr notification.Repository,
	sender messaging.Sender,
	opts ReminderOptions,
	logger *logrus.Entry,
) *ReminderService {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.SendConcurrency < 1 {
		opts.SendConcurrency = 1
	}
	if opts.SummaryKind == "" {
		opts.SummaryKind = notification.SummaryKindDailyPeriskope
	}
	return &ReminderService{
		memberRepo: mr,
		branchRepo: br,
		notifRepo:  nr,
		sender:     sender,
		opts:       opts,
		logger:     logger,
		tracer:     otel.Tracer("reminder-service"),
		now:        time.Now,
	}
}

// WithClock replaces the wall clock used to determine "today".
func (s *ReminderService) WithClock(now func() time.Time) *ReminderService {
	s.now = now
	return s
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Run executes the job once. A second run on the same calendar day returns Skipped.
func (s *ReminderService) Run(ctx context.Context, ro RunOptions) (result *RunResult, err error) {
	started := time.Now()
	today := startOfDay(s.now().In(s.opts.Location))

	ctx, span := s.tracer.Start(ctx, "ReminderRun", trace.WithAttributes(
		attribute.String("run.date", today.Format(dateLayout)),
		attribute.Bool("run.manual", ro.Manual),
		attribute.String("run.trigger", ro.Trigger),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if result != nil {
			span.SetAttributes(
				attribute.Bool("run.skipped", result.Skipped),
				attribute.Int("run.sent", result.NotificationsSent),
				attribute.Int("run.failed", result.Failed),
			)
		}
		span.End()
	}()

	log := s.logger.WithFields(logrus.Fields{
		"date":    today.Format(dateLayout),
		"manual":  ro.Manual,
		"trigger": ro.Trigger,
	})
	result = &RunResult{Date: today.Format(dateLayout), LookaheadDays: s.opts.LookaheadDays}

	// 1. Idempotency gate
	existing, err := s.notifRepo.FindRunLog(ctx, s.opts.SummaryKind, today)
	switch {
	case err == nil:
		log.WithField("run_id", existing.RunID).Info("Run already logged for today. Skipping.")
		result.RunID = existing.RunID.String()
		result.Skipped = true
		result.Reason = reasonAlreadyRan
		metrics.RunsTotal.WithLabelValues("skipped").Inc()
		return result, nil
	case !errors.Is(err, idb.ErrRunLogNotFound):
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to check run log: %w", err)
	}

	// 2. Claim the day before sending anything
	runLog := &notification.RunLog{
		RunID:       uuid.New(),
		SummaryKind: s.opts.SummaryKind,
		RunDate:     today,
		Manual:      ro.Manual,
	}
	claimed, err := s.notifRepo.ClaimRun(ctx, runLog)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to claim run: %w", err)
	}
	if !claimed {
		log.Warn("Another invocation claimed today's run. Skipping.")
		result.Skipped = true
		result.Reason = reasonClaimed
		metrics.RunsTotal.WithLabelValues("skipped").Inc()
		return result, nil
	}
	result.RunID = runLog.RunID.String()
	log = log.WithField("run_id", result.RunID)
	log.Info("Starting expiry reminder run")

	sets, notified, err := s.process(ctx, log, today, result)
	if err != nil {
		log.WithError(err).Error("Reminder run aborted. Releasing today's claim.")
		if relErr := s.notifRepo.ReleaseRun(context.WithoutCancel(ctx), runLog.ID); relErr != nil {
			log.WithError(relErr).Error("Failed to release run claim")
		}
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	// 5. Run logger
	runLog.MemberIDs = notified
	if err := s.notifRepo.CompleteRun(ctx, runLog); err != nil {
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to complete run log: %w", err)
	}

	if s.opts.AdminPhone != "" {
		result.AdminSummary = s.sendAdminSummary(ctx, log, today, sets, result)
	}

	metrics.RunsTotal.WithLabelValues("completed").Inc()
	metrics.RunDuration.Observe(time.Since(started).Seconds())
	log.WithFields(logrus.Fields{
		"sent":              result.NotificationsSent,
		"failed":            result.Failed,
		"skipped_by_policy": result.SkippedByPolicy,
	}).Info("Expiry reminder run completed")
	return result, nil
}

// eligibleSets holds the three scanner results for one day.
type eligibleSets struct {
	inDays  []*membership.Eligible
	today   []*membership.Eligible
	expired []*membership.Eligible
}

// process scans, filters and dispatches. It returns the ids of members notified successfully.
func (s *ReminderService) process(ctx context.Context, log *logrus.Entry, today time.Time, result *RunResult) (*eligibleSets, []int64, error) {
	// 3. Eligibility scanner
	sets, err := s.scan(ctx, today)
	if err != nil {
		return nil, nil, err
	}
	result.ExpiringInDays = len(sets.inDays)
	result.ExpiringToday = len(sets.today)
	result.RecentlyExpired = len(sets.expired)
	log.WithFields(logrus.Fields{
		"expiring_in_days": result.ExpiringInDays,
		"expiring_today":   result.ExpiringToday,
		"recently_expired": result.RecentlyExpired,
	}).Info("Eligible members scanned")

	total := len(sets.inDays) + len(sets.today) + len(sets.expired)
	if s.opts.MaxCohort > 0 && total > s.opts.MaxCohort {
		return nil, nil, fmt.Errorf("%w: %d eligible, cap %d", ErrCohortTooLarge, total, s.opts.MaxCohort)
	}

	// 4. Policy filter
	targets, err := s.filter(ctx, log, sets, result)
	if err != nil {
		return nil, nil, err
	}

	outcomes, err := s.dispatch(ctx, log, targets)
	if err != nil {
		return nil, nil, err
	}

	notified := make([]int64, 0, len(targets))
	seen := make(map[int64]bool, len(targets))
	for i, o := range outcomes {
		if !o.sent {
			result.Failed++
			continue
		}
		result.NotificationsSent++
		id := targets[i].member.MemberID
		if !seen[id] {
			seen[id] = true
			notified = append(notified, id)
		}
	}
	return sets, notified, nil
}

func (s *ReminderService) scan(ctx context.Context, today time.Time) (*eligibleSets, error) {
	inDays, err := s.memberRepo.ListExpiringOn(ctx, today.AddDate(0, 0, s.opts.LookaheadDays))
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscriptions expiring in %d days: %w", s.opts.LookaheadDays, err)
	}
	expiringToday, err := s.memberRepo.ListExpiringOn(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscriptions expiring today: %w", err)
	}
	expired, err := s.memberRepo.ListExpiredBetween(ctx, today.AddDate(0, 0, -s.opts.ExpiredWindowDays), today)
	if err != nil {
		return nil, fmt.Errorf("failed to scan recently expired subscriptions: %w", err)
	}
	return &eligibleSets{inDays: inDays, today: expiringToday, expired: expired}, nil
}

type kindGroup struct {
	kind    notification.Kind
	members []*membership.Eligible
}

// filter applies the branch policy and drops duplicate (member, kind) pairs.
func (s *ReminderService) filter(ctx context.Context, log *logrus.Entry, sets *eligibleSets, result *RunResult) ([]target, error) {
	policy := newPolicyFilter(s.branchRepo)

	groups := []kindGroup{
		{notification.KindExpiringInDays(s.opts.LookaheadDays), sets.inDays},
		{notification.KindExpiringToday, sets.today},
	}
	if s.opts.NotifyExpired {
		groups = append(groups, kindGroup{notification.KindExpiredReminder, sets.expired})
	}

	type pair struct {
		memberID int64
		kind     notification.Kind
	}
	seen := make(map[pair]bool)
	var targets []target

	for _, g := range groups {
		for _, m := range g.members {
			key := pair{m.MemberID, g.kind}
			if seen[key] {
				continue
			}
			seen[key] = true

			allowed, err := policy.allows(ctx, m.BranchID)
			if err != nil {
				return nil, err
			}
			if allowed {
				targets = append(targets, target{member: m, kind: g.kind})
				continue
			}

			result.SkippedByPolicy++
			log.WithFields(logrus.Fields{"member_id": m.MemberID, "kind": g.kind}).Debug("Branch messaging disabled or branch unresolved. Skipping member.")
			if s.opts.AuditPolicySkips {
				rec := &notification.Record{
					MemberID: m.MemberID,
					BranchID: m.BranchID,
					Kind:     g.kind,
					Status:   notification.StatusSkipped,
					Error:    sql.NullString{String: "branch messaging disabled", Valid: true},
				}
				if err := s.notifRepo.CreateRecord(ctx, rec); err != nil {
					return nil, fmt.Errorf("failed to record policy skip for member %d: %w", m.MemberID, err)
				}
				metrics.MessagesTotal.WithLabelValues(string(g.kind), string(notification.StatusSkipped)).Inc()
			}
		}
	}
	return targets, nil
}

// sendAdminSummary never fails the run; errors are reported in the result.
func (s *ReminderService) sendAdminSummary(ctx context.Context, log *logrus.Entry, today time.Time, sets *eligibleSets, result *RunResult) *AdminSummaryResult {
	sections := []summarySection{
		{title: fmt.Sprintf("Expiring in %d days", s.opts.LookaheadDays), members: sets.inDays},
		{title: "Expiring today", members: sets.today},
		{title: fmt.Sprintf("Expired in the last %d days", s.opts.ExpiredWindowDays), members: sets.expired},
	}
	text := formatAdminSummary(today, sections, result.NotificationsSent, result.Failed, s.opts.SummaryDisplayMax)

	phone := NormalizePhone(s.opts.AdminPhone, s.opts.CountryCode)
	if err := s.sender.Send(ctx, ChatID(phone, s.opts.ChatSuffix), text); err != nil {
		log.WithError(err).Warn("Failed to send admin summary")
		return &AdminSummaryResult{Sent: false, Error: err.Error()}
	}
	log.Info("Admin summary sent")
	return &AdminSummaryResult{Sent: true}
}
