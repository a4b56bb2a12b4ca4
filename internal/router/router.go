package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/authware/rbac-starter/internal/config"
	"github.com/authware/rbac-starter/internal/handler"
	"github.com/authware/rbac-starter/internal/middleware"
	"github.com/authware/rbac-starter/internal/utils"
)

// Deps bundles everything route registration needs: the token issuer
// and user source for the JWT middleware, the rate limiter backend and
// the handler set.
type Deps struct {
	Issuer *utils.TokenIssuer
	Users  middleware.UserSource
	RLCfg  config.RateLimitConfig
	Redis  *redis.Client

	Auth *handler.AuthHandler
	User *handler.UserHandler
	RBAC *handler.RBACHandler
}

// Register wires all routes onto the Echo instance.
//
// Layout:
//
//	GET  /healthz                                  public
//	POST /v1/auth/register                         public, auth-tier limit
//	POST /v1/auth/login                            public, auth-tier limit
//	POST /v1/auth/forgot-password                  public, auth-tier limit
//	POST /v1/auth/reset-password                   public, auth-tier limit
//	POST /v1/auth/change-password                  JWT
//	GET  /v1/me                                    JWT
//	/v1/users/*                                    JWT + permission guards
//	/v1/rbac/*                                     JWT + permission guards
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	// Credential endpoints get the tight per-IP bucket; everything
	// authenticated shares the wider api bucket keyed by user id.
	authLimit := middleware.RateLimit(d.RLCfg, d.Redis, "auth", d.RLCfg.AuthPerMin)
	apiLimit := middleware.RateLimit(d.RLCfg, d.Redis, "api", d.RLCfg.APIPerMin)

	pub := e.Group("/v1/auth", authLimit)
	pub.POST("/register", d.Auth.Register)
	pub.POST("/login", d.Auth.Login)
	pub.POST("/forgot-password", d.Auth.ForgotPassword)
	pub.POST("/reset-password", d.Auth.ResetPassword)

	// Everything below requires a valid access token and a live,
	// active account. The middleware loads the principal with its role
	// and permissions once per request.
	v1 := e.Group("/v1", middleware.JWTAuth(d.Issuer, d.Users), apiLimit)
	v1.GET("/me", d.Auth.Me)
	v1.POST("/auth/change-password", d.Auth.ChangePassword)

	users := v1.Group("/users")
	users.GET("", d.User.List, middleware.RequirePermission("read_user"))
	users.GET("/:id", d.User.Get, middleware.RequirePermission("read_user"))
	users.PUT("/:id", d.User.Update, middleware.RequirePermission("update_user"))
	users.DELETE("/:id", d.User.Delete, middleware.RequirePermission("delete_user"))
	users.PUT("/:id/role", d.User.AssignRole, middleware.RequirePermission("manage_roles"))

	rbac := v1.Group("/rbac", middleware.RequirePermission("manage_roles"))
	rbac.GET("/roles", d.RBAC.ListRoles)
	rbac.GET("/roles/:id", d.RBAC.GetRole)
	rbac.POST("/roles", d.RBAC.CreateRole)
	rbac.DELETE("/roles/:id", d.RBAC.DeleteRole)
	rbac.GET("/permissions", d.RBAC.ListPermissions)
	rbac.POST("/roles/:id/permissions/:perm_id", d.RBAC.Grant)
	rbac.DELETE("/roles/:id/permissions/:perm_id", d.RBAC.Revoke)
}
