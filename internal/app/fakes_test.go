package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"time"

	"gym_reminder_service/internal/domain/branch"
	"gym_reminder_service/internal/domain/membership"
	"gym_reminder_service/internal/domain/notification"
	"gym_reminder_service/internal/domain/payment"
	idb "gym_reminder_service/internal/infra/database"

	"github.com/sirupsen/logrus"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, ist)
}

func branchID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: true}
}

// --- membership ---

type fakeMembershipRepo struct {
	expiring map[string][]*membership.Eligible
	expired  []*membership.Eligible
	members  map[int64]*membership.Member
	err      error
}

func newFakeMembershipRepo() *fakeMembershipRepo {
	return &fakeMembershipRepo{
		expiring: make(map[string][]*membership.Eligible),
		members:  make(map[int64]*membership.Member),
	}
}

func (r *fakeMembershipRepo) addExpiring(e *membership.Eligible) {
	key := e.EndDate.Format(dateLayout)
	r.expiring[key] = append(r.expiring[key], e)
}

func (r *fakeMembershipRepo) ListExpiringOn(ctx context.Context, date time.Time) ([]*membership.Eligible, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.expiring[date.Format(dateLayout)], nil
}

func (r *fakeMembershipRepo) ListExpiredBetween(ctx context.Context, from, to time.Time) ([]*membership.Eligible, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*membership.Eligible
	for _, e := range r.expired {
		if !e.EndDate.Before(from) && !e.EndDate.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeMembershipRepo) GetMemberByID(ctx context.Context, id int64) (*membership.Member, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, idb.ErrMemberNotFound
	}
	return m, nil
}

// --- branch ---

type fakeBranchRepo struct {
	enabled map[int64]bool
	calls   int
}

func (r *fakeBranchRepo) GetMessagingSetting(ctx context.Context, id int64) (*branch.MessagingSetting, error) {
	r.calls++
	enabled, ok := r.enabled[id]
	if !ok {
		return nil, idb.ErrSettingNotFound
	}
	return &branch.MessagingSetting{BranchID: id, Enabled: enabled}, nil
}

// --- notification ---

type fakeNotificationRepo struct {
	mu        sync.Mutex
	records   []*notification.Record
	runLogs   []*notification.RunLog
	now       func() time.Time
	loseClaim bool
	recordErr error
	nextID    int64
}

func newFakeNotificationRepo(now func() time.Time) *fakeNotificationRepo {
	return &fakeNotificationRepo{now: now}
}

func (r *fakeNotificationRepo) CreateRecord(ctx context.Context, rec *notification.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return r.recordErr
	}
	r.nextID++
	rec.ID = r.nextID
	rec.CreatedAt = r.now()
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeNotificationRepo) FindRunLog(ctx context.Context, kind notification.SummaryKind, runDate time.Time) (*notification.RunLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.runLogs {
		if l.SummaryKind == kind && l.RunDate.Format(dateLayout) == runDate.Format(dateLayout) {
			return l, nil
		}
	}
	return nil, idb.ErrRunLogNotFound
}

func (r *fakeNotificationRepo) ClaimRun(ctx context.Context, l *notification.RunLog) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loseClaim {
		return false, nil
	}
	for _, existing := range r.runLogs {
		if existing.SummaryKind == l.SummaryKind && existing.RunDate.Format(dateLayout) == l.RunDate.Format(dateLayout) {
			return false, nil
		}
	}
	r.nextID++
	l.ID = r.nextID
	l.CreatedAt = r.now()
	r.runLogs = append(r.runLogs, l)
	return true, nil
}

func (r *fakeNotificationRepo) CompleteRun(ctx context.Context, l *notification.RunLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.runLogs {
		if existing.ID == l.ID {
			existing.MemberIDs = l.MemberIDs
			existing.CompletedAt = sql.NullTime{Time: r.now(), Valid: true}
			return nil
		}
	}
	return idb.ErrRunLogNotFound
}

func (r *fakeNotificationRepo) ReleaseRun(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.runLogs {
		if l.ID == id && !l.Completed() {
			r.runLogs = append(r.runLogs[:i], r.runLogs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeNotificationRepo) LatestRunLog(ctx context.Context, kind notification.SummaryKind) (*notification.RunLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.runLogs) - 1; i >= 0; i-- {
		if r.runLogs[i].SummaryKind == kind {
			return r.runLogs[i], nil
		}
	}
	return nil, idb.ErrRunLogNotFound
}

func (r *fakeNotificationRepo) recordsFor(memberID int64) []*notification.Record {
	var out []*notification.Record
	for _, rec := range r.records {
		if rec.MemberID == memberID {
			out = append(out, rec)
		}
	}
	return out
}

// --- sender ---

type sentMessage struct {
	chatID string
	text   string
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sentMessage
	failOn map[string]bool
	err    error // returned for every send when set
}

func (s *fakeSender) Send(ctx context.Context, chatID string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.failOn[chatID] {
		return fmt.Errorf("provider rejected %s", chatID)
	}
	s.sent = append(s.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// --- payment ---

type fakePaymentRepo struct {
	payments  map[string]*payment.Payment
	subs      []*membership.Subscription
	duplicate bool // simulate a concurrent insert winning the unique constraint
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[string]*payment.Payment)}
}

func (r *fakePaymentRepo) GetByGatewayPaymentID(ctx context.Context, id string) (*payment.Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, idb.ErrPaymentNotFound
	}
	return p, nil
}

func (r *fakePaymentRepo) RecordWithSubscription(ctx context.Context, p *payment.Payment, sub *membership.Subscription) error {
	if r.duplicate {
		r.payments[p.GatewayPaymentID] = &payment.Payment{ID: 99, GatewayPaymentID: p.GatewayPaymentID, SubscriptionID: sql.NullInt64{Int64: 42, Valid: true}}
		return idb.ErrDuplicatePayment
	}
	sub.ID = int64(len(r.subs) + 1)
	r.subs = append(r.subs, sub)
	p.ID = int64(len(r.payments) + 1)
	p.SubscriptionID = sql.NullInt64{Int64: sub.ID, Valid: true}
	r.payments[p.GatewayPaymentID] = p
	return nil
}
