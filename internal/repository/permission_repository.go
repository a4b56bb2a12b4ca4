package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/authware/rbac-starter/internal/model"
)

// PermissionRepo reads the `permissions` table. The permission catalog
// is seeded by migration and managed there; the API only lists it.
type PermissionRepo struct{ DB *sql.DB }

func NewPermissionRepo(db *sql.DB) *PermissionRepo { return &PermissionRepo{DB: db} }

const permCols = "id,name,description,created_at,updated_at"

// GetByID fetches a permission by id. Grant requests resolve the
// target permission through here before touching the junction table.
func (r *PermissionRepo) GetByID(ctx context.Context, id uint64) (model.Permission, error) {
	var p model.Permission
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+permCols+" FROM permissions WHERE id=? LIMIT 1", id).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// List returns a page of permissions plus the total match count.
func (r *PermissionRepo) List(ctx context.Context, skip, limit int, search string) ([]model.Permission, int, error) {
	where := ""
	args := []interface{}{}
	if search = strings.TrimSpace(search); search != "" {
		where = " WHERE name LIKE ? OR description LIKE ?"
		pat := "%" + search + "%"
		args = append(args, pat, pat)
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM permissions"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+permCols+" FROM permissions"+where+" ORDER BY id ASC LIMIT ? OFFSET ?",
		append(args, limit, skip)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var perms []model.Permission
	for rows.Next() {
		var p model.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		perms = append(perms, p)
	}
	return perms, total, rows.Err()
}
