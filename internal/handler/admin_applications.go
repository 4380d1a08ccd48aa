package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dreamers/incubation-portal/internal/model"
	"github.com/dreamers/incubation-portal/internal/service"
)

// AdminApplicationHandler backs the review dashboard.
type AdminApplicationHandler struct {
	Apps     *service.ApplicationService
	Resolver *service.ApprovalResolver
}

func NewAdminApplicationHandler(apps *service.ApplicationService, r *service.ApprovalResolver) *AdminApplicationHandler {
	return &AdminApplicationHandler{Apps: apps, Resolver: r}
}

type statusReq struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

// List returns one dashboard tab plus the counts for every tab.
func (h *AdminApplicationHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, counts, err := h.Apps.List(ctx, c.QueryParam("status"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "counts": counts})
}

// UpdateStatus approves or rejects a pending application by hand.
func (h *AdminApplicationHandler) UpdateStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	to := model.ApplicationStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if req.Notes != nil {
		n := strings.TrimSpace(*req.Notes)
		req.Notes = &n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Resolver.Decide(ctx, c.Param("id"), to, req.Notes)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Resend mails a fresh pair of approval links to the centre admin.
func (h *AdminApplicationHandler) Resend(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pair, err := h.Apps.ResendApproval(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"application_id": pair.ApplicationID, "expires_at": pair.ExpiresAt})
}
