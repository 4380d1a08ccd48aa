package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dreamers/incubation-portal/internal/model"
	"github.com/dreamers/incubation-portal/internal/utils"
)

// AdminRepo provides data access to admin_users.
type AdminRepo struct{ DB *sql.DB }

func NewAdminRepo(db *sql.DB) *AdminRepo { return &AdminRepo{DB: db} }

// ErrEmailExists is returned by Create when the login is taken.
var ErrEmailExists = errors.New("email already exists")

// Create hashes password and inserts an admin, returning its ID.
func (r *AdminRepo) Create(ctx context.Context, email, password string, cost int) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO admin_users (id, email, password_hash, role, is_active, created_at) VALUES (?,?,?,?,1,?)",
		id, email, hash, model.RoleAdmin, time.Now().UTC())
	if isDuplicate(err) {
		return "", ErrEmailExists
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *AdminRepo) scanOne(row rowScanner) (model.AdminUser, error) {
	var u model.AdminUser
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AdminUser{}, ErrNotFound
	}
	return u, err
}

// GetByEmail fetches an admin by normalized email.
func (r *AdminRepo) GetByEmail(ctx context.Context, email string) (model.AdminUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT id, email, password_hash, role, is_active, created_at FROM admin_users WHERE email=? LIMIT 1",
		email))
}

// GetByID fetches an admin by id.
func (r *AdminRepo) GetByID(ctx context.Context, id string) (model.AdminUser, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT id, email, password_hash, role, is_active, created_at FROM admin_users WHERE id=? LIMIT 1",
		id))
}
