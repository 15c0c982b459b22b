package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gym_reminder_service/internal/app"
	"gym_reminder_service/internal/domain/branch"
	"gym_reminder_service/internal/domain/membership"
	"gym_reminder_service/internal/domain/notification"
	idb "gym_reminder_service/internal/infra/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const runDay = "2026-10-16"

type cohortMembers struct{ expiringToday []*membership.Eligible }

func (m *cohortMembers) ListExpiringOn(ctx context.Context, date time.Time) ([]*membership.Eligible, error) {
	if date.Format("2006-01-02") == runDay {
		return m.expiringToday, nil
	}
	return nil, nil
}

func (m *cohortMembers) ListExpiredBetween(ctx context.Context, from, to time.Time) ([]*membership.Eligible, error) {
	return nil, nil
}

func (m *cohortMembers) GetMemberByID(ctx context.Context, id int64) (*membership.Member, error) {
	return nil, idb.ErrMemberNotFound
}

type openBranches struct{}

func (openBranches) GetMessagingSetting(ctx context.Context, branchID int64) (*branch.MessagingSetting, error) {
	return &branch.MessagingSetting{BranchID: branchID, Enabled: true}, nil
}

type memRunLogs struct {
	mu      sync.Mutex
	nextID  int64
	logs    []*notification.RunLog
	records []*notification.Record
}

func (r *memRunLogs) CreateRecord(ctx context.Context, rec *notification.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memRunLogs) find(kind notification.SummaryKind, day string) *notification.RunLog {
	for _, l := range r.logs {
		if l.SummaryKind == kind && l.RunDate.Format("2006-01-02") == day {
			return l
		}
	}
	return nil
}

func (r *memRunLogs) FindRunLog(ctx context.Context, kind notification.SummaryKind, runDate time.Time) (*notification.RunLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l := r.find(kind, runDate.Format("2006-01-02")); l != nil {
		return l, nil
	}
	return nil, idb.ErrRunLogNotFound
}

func (r *memRunLogs) ClaimRun(ctx context.Context, log *notification.RunLog) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.find(log.SummaryKind, log.RunDate.Format("2006-01-02")) != nil {
		return false, nil
	}
	r.nextID++
	log.ID = r.nextID
	log.CreatedAt = time.Now()
	r.logs = append(r.logs, log)
	return true, nil
}

func (r *memRunLogs) CompleteRun(ctx context.Context, log *notification.RunLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	return nil
}

func (r *memRunLogs) ReleaseRun(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.logs {
		if l.ID == id && !l.Completed() {
			r.logs = append(r.logs[:i], r.logs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *memRunLogs) LatestRunLog(ctx context.Context, kind notification.SummaryKind) (*notification.RunLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.logs) == 0 {
		return nil, idb.ErrRunLogNotFound
	}
	return r.logs[len(r.logs)-1], nil
}

// hangUpSender drops the HTTP caller as soon as the first message goes out,
// and refuses to send on a cancelled context the way a real provider client does.
type hangUpSender struct {
	mu     sync.Mutex
	hangUp context.CancelFunc
	sent   []string
}

func (s *hangUpSender) Send(ctx context.Context, chatID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, chatID)
	if s.hangUp != nil {
		s.hangUp()
	}
	return nil
}

func (s *hangUpSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func expiringMember(id int64, phone string) *membership.Eligible {
	return &membership.Eligible{
		SubscriptionID: 100 + id,
		MemberID:       id,
		Name:           "Member",
		Phone:          phone,
		BranchID:       sql.NullInt64{Int64: 1, Valid: true},
		EndDate:        time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC),
	}
}

func TestTrigger_CallerDisconnectDoesNotAbortRun(t *testing.T) {
	members := &cohortMembers{expiringToday: []*membership.Eligible{
		expiringMember(1, "9876500001"),
		expiringMember(2, "9876500002"),
		expiringMember(3, "9876500003"),
	}}
	runLogs := &memRunLogs{}
	sender := &hangUpSender{}

	service := app.NewReminderService(members, openBranches{}, runLogs, sender, app.ReminderOptions{
		LookaheadDays:     2,
		ExpiredWindowDays: 7,
		SendConcurrency:   1,
		SummaryDisplayMax: 10,
		CountryCode:       "91",
		ChatSuffix:        "c.us",
		Location:          time.UTC,
	}, discardLogger()).WithClock(func() time.Time {
		return time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC)
	})
	router := newTestRouter(service, stubPinger{})

	reqCtx, hangUp := context.WithCancel(context.Background())
	defer hangUp()
	sender.hangUp = hangUp

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/functions/expiry-reminders", nil).WithContext(reqCtx)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Error(t, reqCtx.Err())
	assert.Equal(t, 3, sender.count())

	require.Len(t, runLogs.logs, 1)
	assert.True(t, runLogs.logs[0].Completed())
	assert.ElementsMatch(t, []int64{1, 2, 3}, runLogs.logs[0].MemberIDs)

	// The day stays claimed, so the next trigger sends nothing.
	sender.hangUp = nil
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/functions/expiry-reminders", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["skipped"])
	assert.Equal(t, runDay, body["date"])
	assert.Equal(t, 3, sender.count())
	assert.Len(t, runLogs.logs, 1)
}

func TestTrigger_RunContextHasOwnDeadline(t *testing.T) {
	var runCtx context.Context
	runner := runnerFunc(func(ctx context.Context, opts app.RunOptions) (*app.RunResult, error) {
		runCtx = ctx
		return &app.RunResult{Date: runDay}, nil
	})
	router := newTestRouter(runner, stubPinger{})

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/functions/expiry-reminders", nil).WithContext(reqCtx))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, runCtx)
	deadline, ok := runCtx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(runTimeout), deadline, time.Minute)
}

type runnerFunc func(ctx context.Context, opts app.RunOptions) (*app.RunResult, error)

func (f runnerFunc) Run(ctx context.Context, opts app.RunOptions) (*app.RunResult, error) {
	return f(ctx, opts)
}
