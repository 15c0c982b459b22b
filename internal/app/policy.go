package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gym_reminder_service/internal/domain/branch"
	idb "gym_reminder_service/internal/infra/database"
)

// policyFilter answers whether a branch allows outbound messaging.
// Lookups are cached for the lifetime of one run; it is not safe for concurrent use.
type policyFilter struct {
	repo  branch.Repository
	cache map[int64]bool
}

func newPolicyFilter(repo branch.Repository) *policyFilter {
	return &policyFilter{repo: repo, cache: make(map[int64]bool)}
}

// allows reports false for an unresolved branch or a branch without an enabled setting.
func (p *policyFilter) allows(ctx context.Context, branchID sql.NullInt64) (bool, error) {
	if !branchID.Valid {
		return false, nil
	}
	if enabled, ok := p.cache[branchID.Int64]; ok {
		return enabled, nil
	}

	setting, err := p.repo.GetMessagingSetting(ctx, branchID.Int64)
	if err != nil {
		if !errors.Is(err, idb.ErrSettingNotFound) {
			return false, fmt.Errorf("failed to resolve messaging policy for branch %d: %w", branchID.Int64, err)
		}
		setting = &branch.MessagingSetting{BranchID: branchID.Int64, Enabled: false}
	}
	p.cache[branchID.Int64] = setting.Enabled
	return setting.Enabled, nil
}
