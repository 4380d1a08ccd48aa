package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dreamers/incubation-portal/internal/model"
	"github.com/dreamers/incubation-portal/internal/repository"
	"github.com/dreamers/incubation-portal/internal/service"
)

// AdminCouponHandler manages coupon codes.
type AdminCouponHandler struct {
	Coupons   *repository.CouponRepo
	Validator *service.CouponValidator
}

func NewAdminCouponHandler(r *repository.CouponRepo, v *service.CouponValidator) *AdminCouponHandler {
	return &AdminCouponHandler{Coupons: r, Validator: v}
}

type createCouponReq struct {
	Code      string    `json:"code" validate:"required"`
	MaxUses   int       `json:"max_uses" validate:"gt=0"`
	ExpiresAt time.Time `json:"expires_at" validate:"required"`
	IsActive  *bool     `json:"is_active"`
}

var createCouponMessages = map[string]string{
	"max_uses.gt": "max_uses must be positive",
}

type patchCouponReq struct {
	IsActive *bool `json:"is_active"`
}

// List returns every coupon with its usage.
func (h *AdminCouponHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Coupons.ListWithStats(ctx)
	if err != nil {
		logError(c, err)
		return c.JSON(http.StatusInternalServerError, apiError{Error: "store_error", Message: "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Stats reports usage for a single code.
func (h *AdminCouponHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.Validator.Stats(ctx, c.QueryParam("code"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Create adds a coupon.  New coupons are active unless is_active is false.
func (h *AdminCouponHandler) Create(c echo.Context) error {
	var req createCouponReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Code = service.NormalizeCode(req.Code)
	if err := service.ValidateStruct(req, createCouponMessages); err != nil {
		return writeError(c, err)
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cp := model.CouponCode{
		ID:        uuid.NewString(),
		Code:      req.Code,
		MaxUses:   req.MaxUses,
		ExpiresAt: req.ExpiresAt.UTC(),
		IsActive:  active,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Coupons.Create(ctx, cp); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return c.JSON(http.StatusConflict, apiError{Error: "duplicate", Message: "coupon code already exists"})
		}
		logError(c, err)
		return c.JSON(http.StatusInternalServerError, apiError{Error: "store_error", Message: "create coupon failed"})
	}
	return c.JSON(http.StatusCreated, cp)
}

// Patch toggles is_active.
func (h *AdminCouponHandler) Patch(c echo.Context) error {
	var req patchCouponReq
	if err := c.Bind(&req); err != nil || req.IsActive == nil {
		return badRequest(c, "is_active required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	if err := h.Coupons.SetActive(ctx, id, *req.IsActive); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, apiError{Error: "not_found", Message: "coupon not found"})
		}
		logError(c, err)
		return c.JSON(http.StatusInternalServerError, apiError{Error: "store_error", Message: "update coupon failed"})
	}
	cp, err := h.Coupons.GetByID(ctx, id)
	if err != nil {
		logError(c, err)
		return c.JSON(http.StatusInternalServerError, apiError{Error: "store_error", Message: "load coupon failed"})
	}
	return c.JSON(http.StatusOK, cp)
}
