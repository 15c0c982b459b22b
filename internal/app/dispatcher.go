package app

import (
	"context"
	"database/sql"
	"fmt"

	"gym_reminder_service/internal/domain/membership"
	"gym_reminder_service/internal/domain/notification"
	"gym_reminder_service/internal/infra/metrics"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// target is one (member, kind) pair that passed the policy filter.
type target struct {
	member *membership.Eligible
	kind   notification.Kind
}

type outcome struct {
	sent bool
}

// dispatch sends one message per target and records each attempt.
// Send failures are recorded and counted; a failure to write the record aborts the batch.
// With concurrency 1 targets are processed strictly in order.
func (s *ReminderService) dispatch(ctx context.Context, log *logrus.Entry, targets []target) ([]outcome, error) {
	outcomes := make([]outcome, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.SendConcurrency)

	for i, t := range targets {
		if gctx.Err() != nil {
			break
		}
		i, t := i, t
		g.Go(func() error {
			sent, err := s.sendOne(gctx, log, t)
			if err != nil {
				return err
			}
			outcomes[i] = outcome{sent: sent}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	if err := ctx.Err(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func (s *ReminderService) sendOne(ctx context.Context, log *logrus.Entry, t target) (bool, error) {
	m := t.member
	ctx, span := s.tracer.Start(ctx, "SendReminder")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("member.id", m.MemberID),
		attribute.String("notification.kind", string(t.kind)),
	)
	memberLog := log.WithFields(logrus.Fields{
		"member_id": m.MemberID,
		"kind":      t.kind,
	})

	rec := &notification.Record{
		MemberID: m.MemberID,
		BranchID: m.BranchID,
		Kind:     t.kind,
		Status:   notification.StatusSent,
	}

	phone := NormalizePhone(m.Phone, s.opts.CountryCode)
	var sendErr error
	if phone == "" {
		sendErr = fmt.Errorf("member %d has no usable phone number", m.MemberID)
	} else {
		text := renderMemberMessage(t.kind, s.opts.LookaheadDays, m.Name, m.EndDate)
		sendErr = s.sender.Send(ctx, ChatID(phone, s.opts.ChatSuffix), text)
	}

	if sendErr != nil {
		memberLog.WithError(sendErr).Warn("Failed to send reminder")
		span.RecordError(sendErr)
		span.SetStatus(codes.Error, sendErr.Error())
		rec.Status = notification.StatusFailed
		rec.Error = sql.NullString{String: sendErr.Error(), Valid: true}
	} else {
		memberLog.Info("Reminder sent")
	}
	metrics.MessagesTotal.WithLabelValues(string(t.kind), string(rec.Status)).Inc()

	if err := s.notifRepo.CreateRecord(ctx, rec); err != nil {
		memberLog.WithError(err).Error("Failed to record notification outcome")
		return false, fmt.Errorf("failed to record %s notification for member %d: %w", t.kind, m.MemberID, err)
	}
	return sendErr == nil, nil
}
