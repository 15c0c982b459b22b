// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gym_reminder_service/internal/domain/notification"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // For pq.Array
)

// Custom errors specific to notification repository
var ErrRunLogNotFound = fmt.Errorf("run log not found")

const dateLayout = "2006-01-02"

type PostgresNotificationRepository struct {
	db *sqlx.DB
}

func NewPostgresNotificationRepository(db *sqlx.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

// --- NotificationRecord Methods ---

func (r *PostgresNotificationRepository) CreateRecord(ctx context.Context, rec *notification.Record) error {
	query := `INSERT INTO notification_records (member_id, branch_id, kind, status, error)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, created_at`
	err := r.db.QueryRowxContext(ctx, query, rec.MemberID, rec.BranchID, rec.Kind, rec.Status, rec.Error).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating notification record: %w", err)
	}
	return nil
}

// --- RunLog Methods ---

const runLogColumns = `id, run_id, summary_kind, run_date, member_ids, manual, completed_at, created_at`

func scanRunLog(row *sqlx.Row) (*notification.RunLog, error) {
	l := notification.RunLog{}
	err := row.Scan(&l.ID, &l.RunID, &l.SummaryKind, &l.RunDate, pq.Array(&l.MemberIDs), &l.Manual, &l.CompletedAt, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunLogNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *PostgresNotificationRepository) FindRunLog(ctx context.Context, kind notification.SummaryKind, runDate time.Time) (*notification.RunLog, error) {
	query := `SELECT ` + runLogColumns + ` FROM run_logs
               WHERE summary_kind = $1 AND run_date = $2::date`
	l, err := scanRunLog(r.db.QueryRowxContext(ctx, query, kind, runDate.Format(dateLayout)))
	if err != nil && err != ErrRunLogNotFound {
		return nil, fmt.Errorf("error finding run log: %w", err)
	}
	return l, err
}

// ClaimRun relies on the run_logs_kind_date_unique constraint: the losing writer gets no row back.
func (r *PostgresNotificationRepository) ClaimRun(ctx context.Context, l *notification.RunLog) (bool, error) {
	query := `INSERT INTO run_logs (run_id, summary_kind, run_date, manual)
               VALUES ($1, $2, $3::date, $4)
               ON CONFLICT ON CONSTRAINT run_logs_kind_date_unique DO NOTHING
               RETURNING id, created_at`
	err := r.db.QueryRowxContext(ctx, query, l.RunID, l.SummaryKind, l.RunDate.Format(dateLayout), l.Manual).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error claiming run log: %w", err)
	}
	return true, nil
}

func (r *PostgresNotificationRepository) CompleteRun(ctx context.Context, l *notification.RunLog) error {
	query := `UPDATE run_logs SET member_ids = $1, completed_at = NOW()
               WHERE id = $2
               RETURNING completed_at`
	memberIDs := l.MemberIDs
	if memberIDs == nil {
		memberIDs = []int64{}
	}
	err := r.db.QueryRowxContext(ctx, query, pq.Array(memberIDs), l.ID).Scan(&l.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRunLogNotFound
		}
		return fmt.Errorf("error completing run log: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) ReleaseRun(ctx context.Context, id int64) error {
	query := `DELETE FROM run_logs WHERE id = $1 AND completed_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("error releasing run log: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) LatestRunLog(ctx context.Context, kind notification.SummaryKind) (*notification.RunLog, error) {
	query := `SELECT ` + runLogColumns + ` FROM run_logs
               WHERE summary_kind = $1
               ORDER BY run_date DESC, created_at DESC LIMIT 1`
	l, err := scanRunLog(r.db.QueryRowxContext(ctx, query, kind))
	if err != nil && err != ErrRunLogNotFound {
		return nil, fmt.Errorf("error getting latest run log: %w", err)
	}
	return l, err
}
