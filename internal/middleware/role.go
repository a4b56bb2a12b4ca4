package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole returns a guard that enforces that the authenticated
// user's role name is one of the allowed set. Like RequirePermission it
// assumes JWTAuth ran first: a missing principal is 401, a principal
// with a role outside the set is 403. Role names are compared exactly;
// there is no hierarchy between roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	// Build a set of allowed roles for constant-time lookups.
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := CurrentUser(c)
			if !ok {
				return unauthenticated(c, "authentication required")
			}
			if u.Role == nil || !allowed[u.Role.Name] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
