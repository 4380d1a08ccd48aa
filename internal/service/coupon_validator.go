package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dreamers/incubation-portal/internal/metrics"
	"github.com/dreamers/incubation-portal/internal/model"
	"github.com/dreamers/incubation-portal/internal/repository"
)

// CouponStore is the storage the validator needs.  *repository.CouponRepo
// satisfies it.
type CouponStore interface {
	FindByCode(ctx context.Context, code string) (model.CouponCode, error)
	CountUsages(ctx context.Context, couponID string) (int, error)
	WithTx(ctx context.Context, fn func(repository.CouponTx) error) error
}

// CouponValidation is a successful Validate result.
type CouponValidation struct {
	CouponID      string    `json:"coupon_id"`
	Code          string    `json:"code"`
	MaxUses       int       `json:"max_uses"`
	CurrentUses   int       `json:"current_uses"`
	RemainingUses int       `json:"remaining_uses"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Redemption is a recorded coupon usage.
type Redemption struct {
	UsageID  string    `json:"usage_id"`
	CouponID string    `json:"coupon_id"`
	Email    string    `json:"email"`
	UsedAt   time.Time `json:"used_at"`
}

// CouponValidator decides whether a coupon may be redeemed and records
// redemptions.
type CouponValidator struct {
	store CouponStore
	log   logrus.FieldLogger
	now   func() time.Time
	newID func() string
}

// NewCouponValidator returns a validator over store.
func NewCouponValidator(store CouponStore, log logrus.FieldLogger) *CouponValidator {
	return &CouponValidator{store: store, log: log, now: time.Now, newID: uuid.NewString}
}

// NormalizeCode upper-cases and trims a typed coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks code without recording anything.  The checks run in
// order: existence, active flag, expiry, usage limit.
func (v *CouponValidator) Validate(ctx context.Context, code, email string) (CouponValidation, error) {
	res, err := v.validate(ctx, NormalizeCode(code))
	metrics.RecordCoupon("validate", outcome(err))
	if err != nil && errors.Is(err, ErrStore) {
		v.log.WithError(err).WithField("email", NormalizeEmail(email)).Error("coupon validate failed")
	}
	return res, err
}

func (v *CouponValidator) validate(ctx context.Context, code string) (CouponValidation, error) {
	if code == "" {
		return CouponValidation{}, ErrInvalidCode
	}
	c, err := v.store.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return CouponValidation{}, ErrInvalidCode
	}
	if err != nil {
		return CouponValidation{}, storeErr("find coupon", err)
	}
	if err := v.checkUsable(c); err != nil {
		return CouponValidation{}, err
	}
	used, err := v.store.CountUsages(ctx, c.ID)
	if err != nil {
		return CouponValidation{}, storeErr("count usages", err)
	}
	if used >= c.MaxUses {
		return CouponValidation{}, ErrLimitReached
	}
	return CouponValidation{
		CouponID:      c.ID,
		Code:          c.Code,
		MaxUses:       c.MaxUses,
		CurrentUses:   used,
		RemainingUses: c.MaxUses - used,
		ExpiresAt:     c.ExpiresAt,
	}, nil
}

func (v *CouponValidator) checkUsable(c model.CouponCode) error {
	if !c.IsActive {
		return ErrCouponInactive
	}
	if c.ExpiresAt.Before(v.now()) {
		return ErrCouponExpired
	}
	return nil
}

// Redeem records a usage of couponID by email.  The coupon row is locked for
// the whole transaction, so concurrent redemptions of one coupon never
// exceed MaxUses.  A repeat by the same email wins over every other refusal.
func (v *CouponValidator) Redeem(ctx context.Context, couponID, email string) (Redemption, error) {
	email = NormalizeEmail(email)
	var out Redemption
	err := v.store.WithTx(ctx, func(tx repository.CouponTx) error {
		c, err := tx.LockCoupon(ctx, couponID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCode
		}
		if err != nil {
			return storeErr("lock coupon", err)
		}
		dup, err := tx.HasUsage(ctx, c.ID, email)
		if err != nil {
			return storeErr("check usage", err)
		}
		if dup {
			return ErrAlreadyRedeemed
		}
		if err := v.checkUsable(c); err != nil {
			return err
		}
		used, err := tx.CountUsages(ctx, c.ID)
		if err != nil {
			return storeErr("count usages", err)
		}
		if used >= c.MaxUses {
			return ErrLimitReached
		}
		u := model.CouponUsage{ID: v.newID(), CouponCodeID: c.ID, UsedByEmail: email, UsedAt: v.now().UTC()}
		if err := tx.InsertUsage(ctx, u); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyRedeemed
			}
			return storeErr("insert usage", err)
		}
		out = Redemption{UsageID: u.ID, CouponID: c.ID, Email: email, UsedAt: u.UsedAt}
		return nil
	})
	if err != nil && !isCouponKind(err) {
		err = storeErr("redeem", err)
	}
	metrics.RecordCoupon("redeem", outcome(err))

	entry := v.log.WithFields(logrus.Fields{"coupon_id": couponID, "email": email})
	switch {
	case err == nil:
		entry.Info("coupon redeemed")
	case errors.Is(err, ErrStore):
		entry.WithError(err).Error("coupon redeem failed")
	default:
		entry.WithError(err).Debug("coupon redeem refused")
	}
	return out, err
}

// RedeemCode resolves a typed code and redeems it for email.  Every
// validation rule is applied inside Redeem's transaction, so the lookup here
// only maps the code to its id.
func (v *CouponValidator) RedeemCode(ctx context.Context, code, email string) (Redemption, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Redemption{}, ErrInvalidCode
	}
	c, err := v.store.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.RecordCoupon("redeem", outcome(ErrInvalidCode))
		return Redemption{}, ErrInvalidCode
	}
	if err != nil {
		return Redemption{}, storeErr("find coupon", err)
	}
	return v.Redeem(ctx, c.ID, email)
}

// Stats returns the coupon with its usage counts for the dashboard.
func (v *CouponValidator) Stats(ctx context.Context, code string) (model.CouponStats, error) {
	c, err := v.store.FindByCode(ctx, NormalizeCode(code))
	if errors.Is(err, repository.ErrNotFound) {
		return model.CouponStats{}, ErrInvalidCode
	}
	if err != nil {
		return model.CouponStats{}, storeErr("find coupon", err)
	}
	used, err := v.store.CountUsages(ctx, c.ID)
	if err != nil {
		return model.CouponStats{}, storeErr("count usages", err)
	}
	return model.NewCouponStats(c, used), nil
}

func isCouponKind(err error) bool {
	for _, k := range []error{ErrInvalidCode, ErrCouponInactive, ErrCouponExpired, ErrLimitReached, ErrAlreadyRedeemed, ErrStore} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrCouponInactive):
		return "inactive"
	case errors.Is(err, ErrCouponExpired):
		return "expired"
	case errors.Is(err, ErrLimitReached):
		return "limit_reached"
	case errors.Is(err, ErrAlreadyRedeemed):
		return "already_redeemed"
	default:
		return "store_error"
	}
}
