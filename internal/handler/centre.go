package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dreamers/incubation-portal/internal/model"
	"github.com/dreamers/incubation-portal/internal/repository"
	"github.com/dreamers/incubation-portal/internal/service"
)

// CentreHandler lists and registers incubation centres.
type CentreHandler struct {
	Centres *repository.CentreRepo
}

func NewCentreHandler(r *repository.CentreRepo) *CentreHandler {
	return &CentreHandler{Centres: r}
}

type centreReq struct {
	Name       string `json:"name" validate:"required"`
	AdminEmail string `json:"admin_email" validate:"required,email"`
}

// PublicList returns the centre names for the wizard select.
func (h *CentreHandler) PublicList(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Centres.List(ctx)
	if err != nil {
		logError(c, err)
		return c.JSON(http.StatusInternalServerError, apiError{Error: "store_error", Message: "query failed"})
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": names})
}

// List returns every centre including its admin email.
func (h *CentreHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Centres.List(ctx)
	if err != nil {
		logError(c, err)
		return c.JSON(http.StatusInternalServerError, apiError{Error: "store_error", Message: "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Create registers a centre.
func (h *CentreHandler) Create(c echo.Context) error {
	var req centreReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.AdminEmail = service.NormalizeEmail(req.AdminEmail)
	if err := service.ValidateStruct(req, nil); err != nil {
		return writeError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	centre := model.IncubationCentre{
		ID:         uuid.NewString(),
		Name:       req.Name,
		AdminEmail: req.AdminEmail,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.Centres.Create(ctx, centre); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return c.JSON(http.StatusConflict, apiError{Error: "duplicate", Message: "centre already exists"})
		}
		logError(c, err)
		return c.JSON(http.StatusInternalServerError, apiError{Error: "store_error", Message: "create centre failed"})
	}
	return c.JSON(http.StatusCreated, centre)
}
