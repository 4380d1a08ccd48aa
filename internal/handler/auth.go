package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dreamers/incubation-portal/internal/config"
	"github.com/dreamers/incubation-portal/internal/middleware"
	"github.com/dreamers/incubation-portal/internal/model"
	"github.com/dreamers/incubation-portal/internal/repository"
	"github.com/dreamers/incubation-portal/internal/utils"
)

// AuthHandler bundles dependencies for the dashboard auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Admins *repository.AdminRepo
	Tokens *repository.RefreshTokenRepo
	now    func() time.Time
}

func NewAuthHandler(cfg config.Config, a *repository.AdminRepo, t *repository.RefreshTokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Admins: a, Tokens: t, now: time.Now}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type adminPart struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
type authResp struct {
	Admin   adminPart `json:"admin"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, apiError{Error: "unauthorized", Message: msg})
}

func serverError(c echo.Context, msg string, err error) error {
	logError(c, err)
	return c.JSON(http.StatusInternalServerError, apiError{Error: "internal", Message: msg})
}

// issue signs an access token and stores a new refresh token for u.
func (h *AuthHandler) issue(ctx context.Context, u model.AdminUser) (authResp, error) {
	now := h.now()
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin, now)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays, now)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.Store(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		Admin:   adminPart{ID: u.ID, Email: u.Email, Role: u.Role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// Login: verify and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Admins.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return serverError(c, "query failed", err)
	}
	// Verify even for unknown emails so both paths cost one bcrypt compare.
	if !utils.VerifyPassword(u.PasswordHash, req.Password) || err != nil || !u.IsActive {
		return unauthorized(c, "invalid credentials")
	}

	resp, err := h.issue(ctx, u)
	if err != nil {
		return serverError(c, "issue tokens failed", err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	adminID, err := h.Tokens.Validate(ctx, hash, h.now())
	if errors.Is(err, repository.ErrNotFound) {
		return unauthorized(c, "invalid refresh")
	}
	if err != nil {
		return serverError(c, "query failed", err)
	}
	if err := h.Tokens.Revoke(ctx, hash, h.now()); err != nil {
		return serverError(c, "revoke failed", err)
	}

	u, err := h.Admins.GetByID(ctx, adminID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !u.IsActive) {
		return unauthorized(c, "invalid refresh")
	}
	if err != nil {
		return serverError(c, "load admin failed", err)
	}

	resp, err := h.issue(ctx, u)
	if err != nil {
		return serverError(c, "issue tokens failed", err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the refresh token in the body, or every session of the
// bearer's admin when no refresh token is sent.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.Validate(ctx, hash, h.now()); err != nil {
			return unauthorized(c, "invalid refresh token")
		}
		if err := h.Tokens.Revoke(ctx, hash, h.now()); err != nil {
			return serverError(c, "logout failed", err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return badRequest(c, "provide Authorization header or refresh_token")
	}
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return unauthorized(c, "invalid token")
	}
	if err := h.Tokens.RevokeAll(ctx, claims.Subject, h.now()); err != nil {
		return serverError(c, "logout failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated admin.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Admins.GetByID(ctx, middleware.AdminID(c))
	if errors.Is(err, repository.ErrNotFound) {
		return unauthorized(c, "unknown admin")
	}
	if err != nil {
		return serverError(c, "load admin failed", err)
	}
	return c.JSON(http.StatusOK, adminPart{ID: u.ID, Email: u.Email, Role: u.Role})
}
