package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/authware/rbac-starter/internal/model"
)

// RoleRepo owns the `roles` table and the roles_permissions junction.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

const roleCols = "id,name,description,created_at,updated_at"

// Create inserts a role and returns its ID. A taken name is reported as
// ErrConflict.
func (r *RoleRepo) Create(ctx context.Context, name, description string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO roles (name, description) VALUES (?,?)",
		strings.TrimSpace(name), description)
	if err != nil {
		if isDuplicate(err, "") {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID loads a role with its permission set eagerly attached.
func (r *RoleRepo) GetByID(ctx context.Context, id uint64) (model.Role, error) {
	var role model.Role
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+roleCols+" FROM roles WHERE id=? LIMIT 1", id).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return model.Role{}, err
	}
	perms, err := r.permissionsFor(ctx, []uint64{role.ID})
	if err != nil {
		return model.Role{}, err
	}
	role.Permissions = perms[role.ID]
	return role, nil
}

// GetByName loads a role by unique name with its permission set.
func (r *RoleRepo) GetByName(ctx context.Context, name string) (model.Role, error) {
	var role model.Role
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+roleCols+" FROM roles WHERE name=? LIMIT 1", strings.TrimSpace(name)).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return model.Role{}, err
	}
	perms, err := r.permissionsFor(ctx, []uint64{role.ID})
	if err != nil {
		return model.Role{}, err
	}
	role.Permissions = perms[role.ID]
	return role, nil
}

// List returns a page of roles with their permission sets plus the
// total match count. The grants for the whole page are fetched in one
// batched query, never one query per role.
func (r *RoleRepo) List(ctx context.Context, skip, limit int, search string) ([]model.Role, int, error) {
	where := ""
	args := []interface{}{}
	if search = strings.TrimSpace(search); search != "" {
		where = " WHERE name LIKE ? OR description LIKE ?"
		pat := "%" + search + "%"
		args = append(args, pat, pat)
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM roles"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+roleCols+" FROM roles"+where+" ORDER BY id ASC LIMIT ? OFFSET ?",
		append(args, limit, skip)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		roles []model.Role
		ids   []uint64
	)
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, 0, err
		}
		roles = append(roles, role)
		ids = append(ids, role.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	perms, err := r.permissionsFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range roles {
		roles[i].Permissions = perms[roles[i].ID]
	}
	return roles, total, nil
}

// permissionsFor batch-loads the grants for a set of role ids in a
// single joined query and groups them by role.
func (r *RoleRepo) permissionsFor(ctx context.Context, roleIDs []uint64) (map[uint64][]model.Permission, error) {
	out := map[uint64][]model.Permission{}
	if len(roleIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(roleIDs)), ",")
	args := make([]interface{}, len(roleIDs))
	for i, id := range roleIDs {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT rp.role_id, p.id, p.name, p.description, p.created_at, p.updated_at
		 FROM roles_permissions rp JOIN permissions p ON p.id=rp.permission_id
		 WHERE rp.role_id IN (`+placeholders+`) ORDER BY p.id ASC`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			roleID uint64
			p      model.Permission
		)
		if err := rows.Scan(&roleID, &p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out[roleID] = append(out[roleID], p)
	}
	return out, rows.Err()
}

// Delete removes a role and its junction rows. Deletion is rejected
// with ErrRoleInUse while any user still references the role.
func (r *RoleRepo) Delete(ctx context.Context, id uint64) error {
	var inUse int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE role_id=?", id).Scan(&inUse); err != nil {
		return err
	}
	if inUse > 0 {
		return ErrRoleInUse
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, "DELETE FROM roles_permissions WHERE role_id=?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM roles WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// Grant adds a permission to a role. A duplicate grant is rejected by
// the junction table's composite primary key and surfaces as
// ErrConflict; an unknown role id surfaces as sql.ErrNoRows. The
// permission id is resolved by the caller through PermissionRepo; the
// junction's foreign key is the backstop.
func (r *RoleRepo) Grant(ctx context.Context, roleID, permissionID uint64) error {
	var one int
	if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM roles WHERE id=? LIMIT 1", roleID).Scan(&one); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO roles_permissions (role_id, permission_id) VALUES (?,?)",
		roleID, permissionID)
	if isDuplicate(err, "") {
		return ErrConflict
	}
	return err
}

// Revoke removes a grant. Returns sql.ErrNoRows when the pair did not
// exist.
func (r *RoleRepo) Revoke(ctx context.Context, roleID, permissionID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM roles_permissions WHERE role_id=? AND permission_id=?",
		roleID, permissionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
