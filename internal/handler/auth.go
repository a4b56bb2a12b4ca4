package handler

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/authware/rbac-starter/internal/config"
	"github.com/authware/rbac-starter/internal/middleware"
	"github.com/authware/rbac-starter/internal/queue"
	"github.com/authware/rbac-starter/internal/repository"
	queue_publisher "github.com/authware/rbac-starter/internal/service"
	"github.com/authware/rbac-starter/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Issuer *utils.TokenIssuer
	Users  *repository.UserRepo
	Roles  *repository.RoleRepo
	Resets *repository.ResetTokenRepo
}

func NewAuthHandler(cfg config.Config, issuer *utils.TokenIssuer, u *repository.UserRepo, r *repository.RoleRepo, t *repository.ResetTokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Issuer: issuer, Users: u, Roles: r, Resets: t}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}
type loginReq struct {
	Username string `json:"username"` // username or email
	Password string `json:"password"`
}
type forgotReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}
type changeReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       uint64 `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}
type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

// forgotRespMsg is returned verbatim whether or not the email exists,
// so responses cannot be used to enumerate accounts.
const forgotRespMsg = "If the email exists, a password reset link has been sent."

// validPassword applies the minimal strength policy for new passwords.
func validPassword(pw string) bool { return len(pw) >= 8 }

// Register: create user with the default role and return an access token.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/username/password required"})
	}
	if !validPassword(req.Password) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	role, err := h.Roles.GetByName(ctx, h.Cfg.DefaultRole)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "default role missing"})
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash failed"})
	}

	uid, err := h.Users.Create(ctx, req.Email, req.Username, hash, role.ID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		case errors.Is(err, repository.ErrUsernameExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "username already taken"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "account already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	access, err := h.Issuer.IssueAccess(uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}

	return c.JSON(http.StatusCreated, authResp{
		User:   userPart{ID: uid, Email: req.Email, Username: req.Username, Role: role.Name},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Login: verify credentials and return an access token. The response
// for an unknown account, a wrong password, and a disabled account is
// identical so none of them can be told apart from outside.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Username)
	if errors.Is(err, sql.ErrNoRows) {
		u, err = h.Users.GetByEmail(ctx, req.Username)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) || !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, err := h.Issuer.IssueAccess(u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		User:   userPart{ID: u.ID, Email: u.Email, Username: u.Username},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Me: return the authenticated principal with its role and permissions.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	perms := []string{}
	roleName := ""
	if u.Role != nil {
		roleName = u.Role.Name
		for _, p := range u.Role.Permissions {
			perms = append(perms, p.Name)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user":        userPart{ID: u.ID, Email: u.Email, Username: u.Username, Role: roleName},
		"permissions": perms,
	})
}

// ForgotPassword: issue a reset token and queue the notification. The
// response is the same whether or not the email matched an account;
// internal failures are logged, never surfaced.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil || !u.IsActive {
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			log.Printf("forgot-password: lookup failed: %v", err)
		}
		return c.JSON(http.StatusOK, echo.Map{"message": forgotRespMsg})
	}

	reset, err := h.Issuer.IssueReset(u.ID)
	if err != nil {
		log.Printf("forgot-password: issue reset failed: %v", err)
		return c.JSON(http.StatusOK, echo.Map{"message": forgotRespMsg})
	}
	if err := h.Resets.Store(ctx, u.ID, utils.HashResetRaw(reset.Token), reset.Exp); err != nil {
		log.Printf("forgot-password: store reset failed: %v", err)
		return c.JSON(http.StatusOK, echo.Map{"message": forgotRespMsg})
	}
	// Piggyback housekeeping on the write path: rows long past expiry
	// can never be consumed, so drop them while we are here.
	if err := h.Resets.PurgeExpired(ctx); err != nil {
		log.Printf("forgot-password: purge expired tokens failed: %v", err)
	}

	h.publishMail(queue.MailEvent{
		Kind:       queue.MailPasswordReset,
		UserID:     u.ID,
		Email:      u.Email,
		Username:   u.Username,
		ResetToken: reset.Token,
		ExpiresAt:  reset.Exp.Format(time.RFC3339),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{"message": forgotRespMsg})
}

// ResetPassword: consume a reset token and replace the password hash.
// The stored token row is claimed atomically with the hash update, so
// a token that succeeded once can never succeed again.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	if !validPassword(req.NewPassword) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	claims, err := h.Issuer.Verify(req.Token, utils.TokenTypeReset)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired reset token"})
	}
	uid, err := claims.UserID()
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired reset token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired reset token"})
	}

	// Cheap pre-check before the bcrypt work. A lookup error falls
	// through: the guarded update below is the authoritative consume.
	tokenHash := utils.HashResetRaw(req.Token)
	if live, err := h.Resets.IsLive(ctx, tokenHash); err == nil && !live {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired reset token"})
	}

	newHash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash failed"})
	}

	if err := h.Users.ResetPassword(ctx, uid, newHash, tokenHash); err != nil {
		if errors.Is(err, repository.ErrResetConsumed) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired reset token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}

	h.publishMail(queue.MailEvent{
		Kind:       queue.MailPasswordChanged,
		UserID:     u.ID,
		Email:      u.Email,
		Username:   u.Username,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Password has been reset successfully"})
}

// ChangePassword: authenticated path. Re-verifying the current password
// is its own authorization check, separate from any permission guard,
// and a mismatch leaves the stored hash untouched.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	var req changeReq
	if err := c.Bind(&req); err != nil || req.OldPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "old_password/new_password required"})
	}
	if !validPassword(req.NewPassword) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	if !utils.VerifyPassword(u.PasswordHash, req.OldPassword) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "incorrect old password"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	newHash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash failed"})
	}
	if err := h.Users.UpdatePassword(ctx, u.ID, newHash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "change password failed"})
	}

	h.publishMail(queue.MailEvent{
		Kind:       queue.MailPasswordChanged,
		UserID:     u.ID,
		Email:      u.Email,
		Username:   u.Username,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Password has been changed successfully"})
}

// publishMail hands the event to the broker off the request path.
// Delivery is fire-and-forget; a dead broker costs a log line, not a
// failed response.
func (h *AuthHandler) publishMail(ev queue.MailEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = queue_publisher.PublishMail(ctx, ev)
	}()
}
