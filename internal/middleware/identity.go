package middleware

// identity.go defines the principal helpers shared across middleware
// and handlers. JWTAuth stores the resolved user under principalKey;
// guards and handlers read it back with CurrentUser instead of
// re-parsing the token.

import (
	"github.com/labstack/echo/v4"

	"github.com/authware/rbac-starter/internal/model"
)

const principalKey = "principal"

// CurrentUser returns the authenticated user placed in the context by
// JWTAuth, or false when the request carries no resolved identity.
func CurrentUser(c echo.Context) (*model.User, bool) {
	u, ok := c.Get(principalKey).(*model.User)
	return u, ok && u != nil
}
