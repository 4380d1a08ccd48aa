package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dreamers/incubation-portal/internal/service"
)

// CouponHandler serves the wizard's coupon step.
type CouponHandler struct {
	Coupons *service.CouponValidator
}

func NewCouponHandler(v *service.CouponValidator) *CouponHandler {
	return &CouponHandler{Coupons: v}
}

type couponReq struct {
	Code  string `json:"code" validate:"required"`
	Email string `json:"email"`
}

type redeemReq struct {
	Code  string `json:"code" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

var couponMessages = map[string]string{
	"code.required":  "Please enter a coupon code",
	"email.required": "Please enter a valid email address",
}

// Validate checks a coupon without consuming it.
func (h *CouponHandler) Validate(c echo.Context) error {
	var req couponReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Code = strings.TrimSpace(req.Code)
	if err := service.ValidateStruct(req, couponMessages); err != nil {
		return writeError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Coupons.Validate(ctx, req.Code, req.Email)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true, "coupon": res})
}

// Redeem records the coupon against the applicant email.
func (h *CouponHandler) Redeem(c echo.Context) error {
	var req redeemReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Code = strings.TrimSpace(req.Code)
	req.Email = strings.TrimSpace(req.Email)
	if err := service.ValidateStruct(req, couponMessages); err != nil {
		return writeError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	red, err := h.Coupons.RedeemCode(ctx, req.Code, req.Email)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"redeemed": true, "redemption": red})
}
