package router

import (
	"github.com/labstack/echo/v4"

	"github.com/dreamers/incubation-portal/internal/handler"
)

// Public bundles the handlers reachable without a session.
type Public struct {
	Coupons      *handler.CouponHandler
	Approvals    *handler.ApprovalHandler
	Applications *handler.ApplicationHandler
	Centres      *handler.CentreHandler
}

// RegisterPublic registers the wizard and approval-link routes.  limit
// guards the endpoints that accept guessable input: coupon codes and
// approval tokens.
func RegisterPublic(e *echo.Echo, p Public, limit echo.MiddlewareFunc) {
	e.GET("/approval", p.Approvals.Resolve, limit)

	g := e.Group("/v1")
	g.POST("/coupons/validate", p.Coupons.Validate, limit)
	g.POST("/coupons/redeem", p.Coupons.Redeem, limit)
	g.POST("/applications", p.Applications.Submit)
	g.GET("/applications/:id/status", p.Applications.Status)
	g.GET("/centres", p.Centres.PublicList)
}
