package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// RefreshTokenRepo persists admin refresh tokens.  Only SHA-256 hashes of
// the raw tokens are stored.
type RefreshTokenRepo struct{ DB *sql.DB }

func NewRefreshTokenRepo(db *sql.DB) *RefreshTokenRepo { return &RefreshTokenRepo{DB: db} }

// Store inserts a refresh token hash row.
func (r *RefreshTokenRepo) Store(ctx context.Context, adminID, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO admin_refresh_tokens (admin_id, token_hash, expires_at) VALUES (?,?,?)",
		adminID, tokenHash, exp)
	return err
}

// Validate returns the admin ID owning a non-revoked token that is still
// valid at now.  Anything else is ErrNotFound.
func (r *RefreshTokenRepo) Validate(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	var (
		adminID   string
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT admin_id, expires_at, revoked_at FROM admin_refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&adminID, &expiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if revokedAt.Valid || now.After(expiresAt) {
		return "", ErrNotFound
	}
	return adminID, nil
}

// Revoke marks a token as revoked.
func (r *RefreshTokenRepo) Revoke(ctx context.Context, tokenHash string, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE admin_refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL",
		now, tokenHash)
	return err
}

// RevokeAll revokes every active token of an admin.
func (r *RefreshTokenRepo) RevokeAll(ctx context.Context, adminID string, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE admin_refresh_tokens SET revoked_at=? WHERE admin_id=? AND revoked_at IS NULL",
		now, adminID)
	return err
}

// DeleteExpired drops tokens that expired before cutoff.
func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM admin_refresh_tokens WHERE expires_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
