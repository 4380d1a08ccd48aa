package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dreamers/incubation-portal/internal/model"
)

// CentreRepo provides data access to incubation_centres.
type CentreRepo struct {
	db *sql.DB
}

// NewCentreRepo returns a CentreRepo bound to db.
func NewCentreRepo(db *sql.DB) *CentreRepo { return &CentreRepo{db: db} }

// List returns all centres ordered by name.
func (r *CentreRepo) List(ctx context.Context) ([]model.IncubationCentre, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, admin_email, created_at FROM incubation_centres ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.IncubationCentre{}
	for rows.Next() {
		var c model.IncubationCentre
		if err := rows.Scan(&c.ID, &c.Name, &c.AdminEmail, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetByName looks a centre up by its display name, which is what the wizard
// submits.
func (r *CentreRepo) GetByName(ctx context.Context, name string) (model.IncubationCentre, error) {
	var c model.IncubationCentre
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, admin_email, created_at FROM incubation_centres WHERE name = ? LIMIT 1", name).
		Scan(&c.ID, &c.Name, &c.AdminEmail, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.IncubationCentre{}, ErrNotFound
	}
	return c, err
}

// Create inserts a centre.  A name collision yields ErrDuplicate.
func (r *CentreRepo) Create(ctx context.Context, c model.IncubationCentre) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO incubation_centres (id, name, admin_email, created_at) VALUES (?,?,?,?)",
		c.ID, c.Name, c.AdminEmail, c.CreatedAt)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}
