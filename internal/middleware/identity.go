package middleware

import "github.com/labstack/echo/v4"

// AdminID returns the authenticated admin's ID, or "" for anonymous
// requests.
func AdminID(c echo.Context) string {
	if s, ok := c.Get(CtxAdminID).(string); ok {
		return s
	}
	return ""
}
