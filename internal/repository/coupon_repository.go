package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dreamers/incubation-portal/internal/model"
)

const couponColumns = "id, code, max_uses, expires_at, is_active, created_at"

// CouponTx is the set of coupon operations available inside a redemption
// transaction.  LockCoupon takes a row lock on the coupon so concurrent
// redemptions of the same code are serialised.
type CouponTx interface {
	LockCoupon(ctx context.Context, couponID string) (model.CouponCode, error)
	HasUsage(ctx context.Context, couponID, email string) (bool, error)
	CountUsages(ctx context.Context, couponID string) (int, error)
	InsertUsage(ctx context.Context, u model.CouponUsage) error
}

// CouponRepo provides data access to coupon_codes and coupon_code_usages.
type CouponRepo struct {
	db *sql.DB
}

// NewCouponRepo returns a CouponRepo bound to db.
func NewCouponRepo(db *sql.DB) *CouponRepo { return &CouponRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCoupon(row rowScanner) (model.CouponCode, error) {
	var c model.CouponCode
	err := row.Scan(&c.ID, &c.Code, &c.MaxUses, &c.ExpiresAt, &c.IsActive, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CouponCode{}, ErrNotFound
	}
	return c, err
}

// FindByCode looks a coupon up by its (already upper-cased) code.
func (r *CouponRepo) FindByCode(ctx context.Context, code string) (model.CouponCode, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+couponColumns+" FROM coupon_codes WHERE code = ? LIMIT 1", code)
	return scanCoupon(row)
}

// GetByID fetches a coupon by primary key.
func (r *CouponRepo) GetByID(ctx context.Context, id string) (model.CouponCode, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+couponColumns+" FROM coupon_codes WHERE id = ? LIMIT 1", id)
	return scanCoupon(row)
}

// CountUsages returns how many distinct emails redeemed the coupon.
func (r *CouponRepo) CountUsages(ctx context.Context, couponID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM coupon_code_usages WHERE coupon_code_id = ?", couponID).Scan(&n)
	return n, err
}

// HasUsageByCode reports whether email has redeemed the coupon identified by
// code.  It backs the submission gate of the application wizard.
func (r *CouponRepo) HasUsageByCode(ctx context.Context, code, email string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM coupon_code_usages u
		   JOIN coupon_codes c ON c.id = u.coupon_code_id
		  WHERE c.code = ? AND u.used_by_email = ?`, code, email).Scan(&n)
	return n > 0, err
}

// Create inserts a new coupon.  A code collision yields ErrDuplicate.
func (r *CouponRepo) Create(ctx context.Context, c model.CouponCode) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO coupon_codes (id, code, max_uses, expires_at, is_active, created_at) VALUES (?,?,?,?,?,?)",
		c.ID, c.Code, c.MaxUses, c.ExpiresAt, c.IsActive, c.CreatedAt)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// SetActive toggles the admin switch on a coupon.
func (r *CouponRepo) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE coupon_codes SET is_active = ? WHERE id = ?", active, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWithStats returns every coupon with its usage count, newest first.
func (r *CouponRepo) ListWithStats(ctx context.Context) ([]model.CouponStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.code, c.max_uses, c.expires_at, c.is_active, c.created_at, COUNT(u.id)
		   FROM coupon_codes c
		   LEFT JOIN coupon_code_usages u ON u.coupon_code_id = c.id
		  GROUP BY c.id
		  ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.CouponStats{}
	for rows.Next() {
		var (
			c    model.CouponCode
			used int
		)
		if err := rows.Scan(&c.ID, &c.Code, &c.MaxUses, &c.ExpiresAt, &c.IsActive, &c.CreatedAt, &used); err != nil {
			return nil, err
		}
		out = append(out, model.NewCouponStats(c, used))
	}
	return out, rows.Err()
}

// WithTx runs fn in a read-committed transaction exposing CouponTx.  Read
// committed lets the usage count taken after LockCoupon observe rows
// committed by the previous lock holder.
func (r *CouponRepo) WithTx(ctx context.Context, fn func(CouponTx) error) error {
	return withTx(ctx, r.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(tx *sql.Tx) error {
		return fn(&couponTx{tx: tx})
	})
}

type couponTx struct {
	tx *sql.Tx
}

func (t *couponTx) LockCoupon(ctx context.Context, couponID string) (model.CouponCode, error) {
	row := t.tx.QueryRowContext(ctx,
		"SELECT "+couponColumns+" FROM coupon_codes WHERE id = ? FOR UPDATE", couponID)
	return scanCoupon(row)
}

func (t *couponTx) HasUsage(ctx context.Context, couponID, email string) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM coupon_code_usages WHERE coupon_code_id = ? AND used_by_email = ?",
		couponID, email).Scan(&n)
	return n > 0, err
}

func (t *couponTx) CountUsages(ctx context.Context, couponID string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM coupon_code_usages WHERE coupon_code_id = ?", couponID).Scan(&n)
	return n, err
}

func (t *couponTx) InsertUsage(ctx context.Context, u model.CouponUsage) error {
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO coupon_code_usages (id, coupon_code_id, used_by_email, used_at) VALUES (?,?,?,?)",
		u.ID, u.CouponCodeID, u.UsedByEmail, u.UsedAt)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert coupon usage: %w", err)
	}
	return nil
}
