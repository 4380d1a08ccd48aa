package repository

import (
	"context"
	"database/sql"
	"time"
)

// ApprovalTokenRepo performs housekeeping on approval_tokens outside of the
// review transaction.
type ApprovalTokenRepo struct {
	db *sql.DB
}

// NewApprovalTokenRepo returns an ApprovalTokenRepo bound to db.
func NewApprovalTokenRepo(db *sql.DB) *ApprovalTokenRepo { return &ApprovalTokenRepo{db: db} }

// DeleteStale removes used tokens created before cutoff and returns the
// number of rows removed.  Unused tokens are kept after expiry so their
// links keep answering as expired rather than unknown.
func (r *ApprovalTokenRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM approval_tokens WHERE used = 1 AND created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountActive returns the number of tokens that are unused and unexpired at
// now.  It feeds the active-tokens gauge.
func (r *ApprovalTokenRepo) CountActive(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM approval_tokens WHERE used = 0 AND expires_at >= ?", now).Scan(&n)
	return n, err
}
