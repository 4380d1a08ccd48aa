package model

import "time"

// ApplicationStatus is the review state of an application.  It starts at
// pending and moves to exactly one of the terminal states.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is defined from s.
func (s ApplicationStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Application mirrors the applications table.  It is the record produced by
// the three-step wizard (founder details, incubation info, startup idea).
type Application struct {
	ID               string            `json:"id"`
	FounderName      string            `json:"founder_name"`
	StartupName      string            `json:"startup_name"`
	Email            string            `json:"email"`
	Phone            string            `json:"phone"`
	CompanyType      string            `json:"company_type"`
	TeamSize         string            `json:"team_size"`
	Source           string            `json:"source"`
	CouponCode       string            `json:"coupon_code"`
	IncubationCentre string            `json:"incubation_centre"`
	Website          *string           `json:"website,omitempty"`
	IdeaDescription  string            `json:"idea_description"`
	Expectations     []string          `json:"expectations"`
	Challenges       *string           `json:"challenges,omitempty"`
	AdminNotes       *string           `json:"admin_notes,omitempty"`
	Status           ApplicationStatus `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	ApprovedAt       *time.Time        `json:"approved_at,omitempty"`
	RejectedAt       *time.Time        `json:"rejected_at,omitempty"`
}

// ApplicantSummary is the applicant-facing snapshot shown after a review
// decision and carried in notifications.
type ApplicantSummary struct {
	ID               string `json:"id"`
	FounderName      string `json:"founder_name"`
	StartupName      string `json:"startup_name"`
	IncubationCentre string `json:"incubation_centre"`
	Email            string `json:"email"`
}

// StatusCounts backs the dashboard tabs.
type StatusCounts struct {
	All      int `json:"all"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}
