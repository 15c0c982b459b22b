package branch

import "context"

// MessagingSetting is a branch's outbound messaging toggle.
type MessagingSetting struct {
	BranchID int64 `db:"branch_id"`
	Enabled  bool  `db:"enabled"`
}

// Repository looks up per-branch settings.
type Repository interface {
	GetMessagingSetting(ctx context.Context, branchID int64) (*MessagingSetting, error)
}
