package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/authware/rbac-starter/internal/model"
	"github.com/authware/rbac-starter/internal/utils"
)

// UserSource resolves a token subject to a user with its role and
// permission set eagerly loaded. Satisfied by *repository.UserRepo;
// tests inject fakes.
type UserSource interface {
	GetByIDWithRole(ctx context.Context, id uint64) (model.User, error)
}

// JWTAuth returns the identity guard: it validates a Bearer access
// token and resolves the subject to an active user, which handlers and
// downstream guards read via CurrentUser. Every failure mode — missing
// header, malformed or tampered token, expiry, a reset token presented
// as an access token, or a subject that no longer resolves to an active
// account — ends the request with 401 and a challenge header. There is
// no fallback identity.
func JWTAuth(issuer *utils.TokenIssuer, users UserSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthenticated(c, "missing bearer token")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := issuer.Verify(raw, utils.TokenTypeAccess)
			if err != nil {
				// The four verification kinds stay distinct inside the
				// token issuer; at this boundary they all mean "re-login".
				return unauthenticated(c, "invalid token")
			}
			uid, err := claims.UserID()
			if err != nil {
				return unauthenticated(c, "invalid token")
			}

			u, err := users.GetByIDWithRole(c.Request().Context(), uid)
			if errors.Is(err, sql.ErrNoRows) {
				return unauthenticated(c, "unknown subject")
			}
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
			}
			if !u.IsActive {
				return unauthenticated(c, "account disabled")
			}

			c.Set(principalKey, &u)
			c.Set("user_id", u.ID)
			return next(c)
		}
	}
}

// unauthenticated writes a 401 with the RFC 6750 challenge header.
func unauthenticated(c echo.Context, msg string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
}
