// Package service holds the portal's business rules: coupon validation and
// redemption, approval-link resolution, and application intake.  Services
// talk to storage through small interfaces so they can be exercised against
// in-memory fakes.
package service

import (
	"errors"
	"fmt"
)

// Coupon outcomes.
var (
	ErrInvalidCode     = errors.New("invalid coupon code")
	ErrCouponInactive  = errors.New("coupon inactive")
	ErrCouponExpired   = errors.New("coupon expired")
	ErrLimitReached    = errors.New("coupon usage limit reached")
	ErrAlreadyRedeemed = errors.New("coupon already used by this email")
	ErrStore           = errors.New("store error")
)

// Approval-token outcomes.
var (
	ErrInvalidOrUsed = errors.New("approval token invalid or already used")
	ErrTokenExpired  = errors.New("approval token expired")
	ErrUpdateFailed  = errors.New("application update failed")
)

// Intake and dashboard outcomes.
var (
	ErrCouponNotRedeemed   = errors.New("coupon not redeemed by this email")
	ErrUnknownCentre       = errors.New("unknown incubation centre")
	ErrApplicationNotFound = errors.New("application not found")
	ErrAlreadyReviewed     = errors.New("application already reviewed")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// storeErr wraps a storage failure so it matches ErrStore while keeping the
// cause in the message.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStore, err)
}
