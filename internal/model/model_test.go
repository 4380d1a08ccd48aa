package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActionTargetStatus(t *testing.T) {
	assert.Equal(t, StatusApproved, ActionApprove.TargetStatus())
	assert.Equal(t, StatusRejected, ActionReject.TargetStatus())
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, ApplicationStatus("archived").Valid())
}

func TestApprovalTokenExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tok := ApprovalToken{ExpiresAt: now}
	assert.False(t, tok.Expired(now), "deadline itself is still valid")
	assert.True(t, tok.Expired(now.Add(time.Second)))
}

func TestNewCouponStatsClampsRemaining(t *testing.T) {
	s := NewCouponStats(CouponCode{MaxUses: 2}, 3)
	assert.Equal(t, 3, s.CurrentUses)
	assert.Equal(t, 0, s.RemainingUses)

	s = NewCouponStats(CouponCode{MaxUses: 5}, 1)
	assert.Equal(t, 4, s.RemainingUses)
}
