package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gym_reminder_service/internal/domain/branch"

	"github.com/jmoiron/sqlx"
)

var ErrSettingNotFound = fmt.Errorf("branch messaging setting not found")

type PostgresBranchRepository struct {
	db *sqlx.DB
}

func NewPostgresBranchRepository(db *sqlx.DB) *PostgresBranchRepository {
	return &PostgresBranchRepository{db: db}
}

func (r *PostgresBranchRepository) GetMessagingSetting(ctx context.Context, branchID int64) (*branch.MessagingSetting, error) {
	query := `SELECT branch_id, enabled FROM branch_messaging_settings WHERE branch_id = $1`
	s := &branch.MessagingSetting{}
	if err := r.db.GetContext(ctx, s, query, branchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingNotFound
		}
		return nil, fmt.Errorf("error getting messaging setting for branch %d: %w", branchID, err)
	}
	return s, nil
}
