package model

import "time"

// CouponCode gates access to the application wizard.  Codes are stored
// upper-cased so that uniqueness on the code column is case-insensitive.
//
// Fields:
//  ID        – opaque identifier (UUID).
//  Code      – unique, upper-cased key typed by founders.
//  MaxUses   – number of distinct emails that may redeem the code (> 0).
//  ExpiresAt – redemption deadline.
//  IsActive  – admin switch; inactive codes never validate.
type CouponCode struct {
	ID        string    `json:"id"`         // coupon_codes.id
	Code      string    `json:"code"`       // coupon_codes.code
	MaxUses   int       `json:"max_uses"`   // coupon_codes.max_uses
	ExpiresAt time.Time `json:"expires_at"` // coupon_codes.expires_at
	IsActive  bool      `json:"is_active"`  // coupon_codes.is_active
	CreatedAt time.Time `json:"created_at"` // coupon_codes.created_at
}

// CouponUsage records one redemption of a coupon by one email.  The pair
// (CouponCodeID, UsedByEmail) is unique in storage.
type CouponUsage struct {
	ID           string    `json:"id"`             // coupon_code_usages.id
	CouponCodeID string    `json:"coupon_code_id"` // coupon_code_usages.coupon_code_id
	UsedByEmail  string    `json:"used_by_email"`  // coupon_code_usages.used_by_email
	UsedAt       time.Time `json:"used_at"`        // coupon_code_usages.used_at
}

// CouponStats is the admin view of a coupon with its consumption.
type CouponStats struct {
	CouponCode
	CurrentUses   int `json:"current_uses"`
	RemainingUses int `json:"remaining_uses"`
}

// NewCouponStats derives the remaining uses, never going below zero.
func NewCouponStats(c CouponCode, used int) CouponStats {
	remaining := c.MaxUses - used
	if remaining < 0 {
		remaining = 0
	}
	return CouponStats{CouponCode: c, CurrentUses: used, RemainingUses: remaining}
}
