// Package queue defines message payloads exchanged over RabbitMQ and the
// publisher and consumer that move them.
package queue

import "time"

// Queue names.  Both are durable and bound to the default exchange.
const (
	QueueApplicationSubmitted = "application.submitted"
	QueueStatusChanged        = "application.status_changed"
)

// ApplicationSubmittedEvent is published once an application and its
// approval token pair are committed.  The consumer turns it into the
// approve/reject email to the centre admin.
type ApplicationSubmittedEvent struct {
	ApplicationID    string    `json:"application_id"`
	FounderName      string    `json:"founder_name"`
	StartupName      string    `json:"startup_name"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	CompanyType      string    `json:"company_type"`
	TeamSize         string    `json:"team_size"`
	Website          string    `json:"website,omitempty"`
	IncubationCentre string    `json:"incubation_centre"`
	CentreAdminEmail string    `json:"centre_admin_email"`
	IdeaDescription  string    `json:"idea_description"`
	Expectations     []string  `json:"expectations"`
	ApproveToken     string    `json:"approve_token"`
	RejectToken      string    `json:"reject_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// StatusChangedEvent is published after an application leaves pending,
// either through an emailed link or from the dashboard.
type StatusChangedEvent struct {
	ApplicationID    string    `json:"application_id"`
	FounderName      string    `json:"founder_name"`
	StartupName      string    `json:"startup_name"`
	Email            string    `json:"email"`
	IncubationCentre string    `json:"incubation_centre"`
	Status           string    `json:"status"`
	Via              string    `json:"via"` // "link" or "dashboard"
	ChangedAt        time.Time `json:"changed_at"`
}
