package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dreamers/incubation-portal/internal/middleware"
	"github.com/dreamers/incubation-portal/internal/service"
)

// apiError is the body of every failed response.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorKind struct {
	status  int
	kind    string
	message string
}

// errorKinds maps service sentinels onto status codes and the strings the
// wizard and the approval page show.
var errorKinds = []struct {
	target error
	errorKind
}{
	{service.ErrInvalidCode, errorKind{http.StatusNotFound, "invalid_code", "Invalid coupon code"}},
	{service.ErrCouponInactive, errorKind{http.StatusUnprocessableEntity, "inactive", "This coupon code is inactive"}},
	{service.ErrCouponExpired, errorKind{http.StatusUnprocessableEntity, "expired", "This coupon code has expired"}},
	{service.ErrLimitReached, errorKind{http.StatusUnprocessableEntity, "limit_reached", "This coupon code has reached its maximum usage limit"}},
	{service.ErrAlreadyRedeemed, errorKind{http.StatusConflict, "already_redeemed", "You have already used this coupon code with this email."}},
	{service.ErrInvalidOrUsed, errorKind{http.StatusBadRequest, "invalid_or_used", "This approval link is invalid or has already been used."}},
	{service.ErrTokenExpired, errorKind{http.StatusGone, "token_expired", "This approval link has expired."}},
	{service.ErrUpdateFailed, errorKind{http.StatusInternalServerError, "update_failed", "There was an error processing your approval. Please try again or contact support."}},
	{service.ErrCouponNotRedeemed, errorKind{http.StatusUnprocessableEntity, "coupon_not_redeemed", "Please validate your coupon code before submitting."}},
	{service.ErrUnknownCentre, errorKind{http.StatusUnprocessableEntity, "unknown_centre", "Please select a valid incubation centre."}},
	{service.ErrApplicationNotFound, errorKind{http.StatusNotFound, "not_found", "Application not found."}},
	{service.ErrAlreadyReviewed, errorKind{http.StatusConflict, "already_reviewed", "This application has already been reviewed."}},
	{service.ErrStore, errorKind{http.StatusInternalServerError, "store_error", "Something went wrong. Please try again."}},
}

var internalKind = errorKind{http.StatusInternalServerError, "internal", "Something went wrong. Please try again."}

func classify(err error) errorKind {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.errorKind
		}
	}
	return internalKind
}

// writeError renders err as an apiError.  Validation errors carry their
// field and message.
func writeError(c echo.Context, err error) error {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, apiError{Error: "validation", Message: ve.Message, Field: ve.Field})
	}
	k := classify(err)
	if k.status >= http.StatusInternalServerError {
		logError(c, err)
	}
	return c.JSON(k.status, apiError{Error: k.kind, Message: k.message})
}

// logError hands err to the request logger.
func logError(c echo.Context, err error) {
	c.Set(middleware.CtxError, err)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, apiError{Error: "bad_request", Message: msg})
}
