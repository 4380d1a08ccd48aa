package model

import "time"

// IncubationCentre receives applications; its admin is emailed the
// approve/reject links.
type IncubationCentre struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	AdminEmail string    `json:"admin_email"`
	CreatedAt  time.Time `json:"created_at"`
}
