package router

import (
	"github.com/labstack/echo/v4"

	"github.com/dreamers/incubation-portal/internal/handler"
	"github.com/dreamers/incubation-portal/internal/middleware"
	"github.com/dreamers/incubation-portal/internal/model"
)

// Admin bundles the dashboard handlers.
type Admin struct {
	Applications *handler.AdminApplicationHandler
	Coupons      *handler.AdminCouponHandler
	Centres      *handler.CentreHandler
}

// RegisterAdmin registers dashboard endpoints under /v1/admin.  All routes
// require a valid JWT and the ADMIN role.
func RegisterAdmin(e *echo.Echo, a Admin, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Applications ----
	g.GET("/applications", a.Applications.List)
	g.PATCH("/applications/:id/status", a.Applications.UpdateStatus)
	g.POST("/applications/:id/resend", a.Applications.Resend)

	// ---- Coupons ----
	g.GET("/coupons", a.Coupons.List)
	g.GET("/coupons/stats", a.Coupons.Stats)
	g.POST("/coupons", a.Coupons.Create)
	g.PATCH("/coupons/:id", a.Coupons.Patch)

	// ---- Centres ----
	g.GET("/centres", a.Centres.List)
	g.POST("/centres", a.Centres.Create)
}
