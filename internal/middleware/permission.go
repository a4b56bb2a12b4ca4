package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequirePermission returns the permission guard. It must run after
// JWTAuth: a request with no resolved principal is rejected with 401
// (identity failed, re-login is the remedy), while a valid identity
// whose role lacks the named permission gets 403 (an access request is
// the remedy). The two are never conflated. Each endpoint declares at
// most one permission; multi-permission policies are out of scope.
func RequirePermission(name string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := CurrentUser(c)
			if !ok {
				return unauthenticated(c, "authentication required")
			}
			// The permission set was loaded fresh with the principal,
			// so grant changes apply on the very next request.
			if !u.HasPermission(name) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "permission '" + name + "' required"})
			}
			return next(c)
		}
	}
}
