package model

import "time"

// AdminUser represents a dashboard operator as stored in the `admin_users`
// table.  The json tags are omitted because handlers expose their own
// response types and the password hash must never leave the server.
//
// Fields:
//  ID           – opaque identifier (UUID).
//  Email        – unique login, stored lower-cased.
//  PasswordHash – bcrypt hashed password.
//  Role         – role claim placed in access tokens (ADMIN).
//  IsActive     – disabled admins cannot log in or refresh.
//  CreatedAt    – timestamp of creation.
type AdminUser struct {
	ID           string    // admin_users.id
	Email        string    // admin_users.email
	PasswordHash string    // admin_users.password_hash
	Role         string    // admin_users.role
	IsActive     bool      // admin_users.is_active
	CreatedAt    time.Time // admin_users.created_at
}

// RoleAdmin is the only role allowed on the dashboard routes.
const RoleAdmin = "ADMIN"

// RefreshToken models an entry in the `admin_refresh_tokens` table.  Only
// the SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // admin_refresh_tokens.id
	AdminID   string     // admin_refresh_tokens.admin_id
	TokenHash string     // admin_refresh_tokens.token_hash
	ExpiresAt time.Time  // admin_refresh_tokens.expires_at
	RevokedAt *time.Time // admin_refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // admin_refresh_tokens.created_at
}
