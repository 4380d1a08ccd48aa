package router

import (
	"github.com/labstack/echo/v4"

	"github.com/dreamers/incubation-portal/internal/handler"
	"github.com/dreamers/incubation-portal/internal/metrics"
	"github.com/dreamers/incubation-portal/internal/middleware"
	"github.com/dreamers/incubation-portal/internal/model"
)

// RegisterRoutes registers the operational endpoints: liveness and the
// Prometheus scrape target.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAuth registers the dashboard auth routes.  Login, refresh and
// logout work without an access token; /v1/admin/me requires one.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/admin/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	e.GET("/v1/admin/me", a.Me, middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
}
