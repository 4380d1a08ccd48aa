package model

import "time"

// ApprovalAction is what an emailed link does to its application.
type ApprovalAction string

const (
	ActionApprove ApprovalAction = "approve"
	ActionReject  ApprovalAction = "reject"
)

// TargetStatus maps the action onto the terminal application status.
func (a ApprovalAction) TargetStatus() ApplicationStatus {
	if a == ActionApprove {
		return StatusApproved
	}
	return StatusRejected
}

// ApprovalToken is a single-use, time-boxed credential embedded in an email
// link.  Used goes from false to true exactly once; a used or expired token
// is inert.
type ApprovalToken struct {
	ID            string         // approval_tokens.id
	ApplicationID string         // approval_tokens.application_id
	Token         string         // approval_tokens.token
	Action        ApprovalAction // approval_tokens.action
	Used          bool           // approval_tokens.used
	ExpiresAt     time.Time      // approval_tokens.expires_at
	CreatedAt     time.Time      // approval_tokens.created_at
}

// Expired reports whether the token is past its deadline at now.
func (t ApprovalToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// ApprovalPair is the approve/reject couple issued for one application.
type ApprovalPair struct {
	ApplicationID string
	ApproveToken  string
	RejectToken   string
	ExpiresAt     time.Time
}
