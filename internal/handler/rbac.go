package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/authware/rbac-starter/internal/model"
	"github.com/authware/rbac-starter/internal/repository"
)

// RBACHandler manages roles, permissions and the grants between them.
// The whole route group sits behind the manage_roles guard.
type RBACHandler struct {
	Roles *repository.RoleRepo
	Perms *repository.PermissionRepo
}

func NewRBACHandler(r *repository.RoleRepo, p *repository.PermissionRepo) *RBACHandler {
	return &RBACHandler{Roles: r, Perms: p}
}

type createRoleReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type permRow struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type roleRow struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Permissions []permRow `json:"permissions"`
}

func toRoleRow(r model.Role) roleRow {
	perms := make([]permRow, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, permRow{ID: p.ID, Name: p.Name, Description: p.Description})
	}
	return roleRow{ID: r.ID, Name: r.Name, Description: r.Description, Permissions: perms}
}

// ListRoles returns a page of roles with their granted permissions.
func (h *RBACHandler) ListRoles(c echo.Context) error {
	skip, limit, search := pageParams(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	roles, total, err := h.Roles.List(ctx, skip, limit, search)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	items := make([]roleRow, 0, len(roles))
	for _, r := range roles {
		items = append(items, toRoleRow(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "total": total, "skip": skip, "limit": limit})
}

// GetRole returns a single role with its permissions.
func (h *RBACHandler) GetRole(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	r, err := h.Roles.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "role not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toRoleRow(r))
}

// CreateRole creates a new empty role. Duplicate names yield 409.
func (h *RBACHandler) CreateRole(c echo.Context) error {
	var req createRoleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Roles.Create(ctx, req.Name, req.Description)
	if errors.Is(err, repository.ErrConflict) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "role name already exists"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, roleRow{ID: id, Name: req.Name, Description: req.Description, Permissions: []permRow{}})
}

// DeleteRole removes a role and its grants. A role still assigned to
// any user cannot be deleted; callers must reassign those users first.
func (h *RBACHandler) DeleteRole(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Roles.Delete(ctx, id)
	switch {
	case errors.Is(err, repository.ErrRoleInUse):
		return c.JSON(http.StatusConflict, echo.Map{"error": "role is assigned to users"})
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "role not found"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListPermissions returns a page of permissions.
func (h *RBACHandler) ListPermissions(c echo.Context) error {
	skip, limit, search := pageParams(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	perms, total, err := h.Perms.List(ctx, skip, limit, search)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	items := make([]permRow, 0, len(perms))
	for _, p := range perms {
		items = append(items, permRow{ID: p.ID, Name: p.Name, Description: p.Description})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "total": total, "skip": skip, "limit": limit})
}

// Grant attaches a permission to a role. Granting twice yields 409.
func (h *RBACHandler) Grant(c echo.Context) error {
	roleID, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role id"})
	}
	permID, ok := idParam(c, "perm_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid permission id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Perms.GetByID(ctx, permID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "role or permission not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "grant failed"})
	}

	err := h.Roles.Grant(ctx, roleID, permID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "role or permission not found"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "permission already granted"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "grant failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Revoke detaches a permission from a role.
func (h *RBACHandler) Revoke(c echo.Context) error {
	roleID, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role id"})
	}
	permID, ok := idParam(c, "perm_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid permission id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Roles.Revoke(ctx, roleID, permID)
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "grant not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
