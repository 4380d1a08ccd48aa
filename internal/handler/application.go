package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dreamers/incubation-portal/internal/service"
)

// ApplicationHandler serves wizard submission and status polling.
type ApplicationHandler struct {
	Apps *service.ApplicationService
}

func NewApplicationHandler(s *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{Apps: s}
}

// Submit stores a completed wizard.  The approval tokens go to the centre
// admin only and are never returned here.
func (h *ApplicationHandler) Submit(c echo.Context) error {
	var in service.ApplicationInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	app, _, err := h.Apps.Submit(ctx, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":         app.ID,
		"status":     app.Status,
		"created_at": app.CreatedAt,
		"message":    "Application submitted successfully!",
	})
}

// Status is polled by the applicant after submitting.
func (h *ApplicationHandler) Status(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return badRequest(c, "id required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.Apps.Status(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}
