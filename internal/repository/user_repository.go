package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/authware/rbac-starter/internal/model"
)

// UserRepo owns reads and writes on the `users` table plus the
// transactional password updates that must move users and
// password_reset_tokens together.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = "id,email,username,password_hash,role_id,is_active,created_at,updated_at"

// Create inserts a user with an already-hashed password and returns its
// ID. Email is normalized to lower case. Uniqueness races are resolved
// by the store: the second writer gets ErrEmailExists or
// ErrUsernameExists.
func (r *UserRepo) Create(ctx context.Context, email, username, passwordHash string, roleID uint64) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, username, password_hash, role_id) VALUES (?,?,?,?)",
		email, username, passwordHash, roleID)
	if err != nil {
		switch {
		case isDuplicate(err, "uq_users_email"):
			return 0, ErrEmailExists
		case isDuplicate(err, "uq_users_username"):
			return 0, ErrUsernameExists
		case isDuplicate(err, ""):
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

// GetByEmail fetches a bare user row by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getOne(ctx, "SELECT "+userCols+" FROM users WHERE email=? LIMIT 1", email)
}

// GetByUsername fetches a bare user row by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userCols+" FROM users WHERE username=? LIMIT 1", strings.TrimSpace(username))
}

// GetByID fetches a bare user row by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg interface{}) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.RoleID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByIDWithRole loads a user together with its role and the role's
// full permission set in one logical call: one joined query for
// user+role and one batched query for the grants. This runs on every
// permission-gated request, so it must never degrade to one round trip
// per permission.
func (r *UserRepo) GetByIDWithRole(ctx context.Context, id uint64) (model.User, error) {
	var (
		u model.User
		role model.Role
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT u.id,u.email,u.username,u.password_hash,u.role_id,u.is_active,u.created_at,u.updated_at,
		        r.id,r.name,r.description,r.created_at,r.updated_at
		 FROM users u JOIN roles r ON r.id=u.role_id WHERE u.id=? LIMIT 1`,
		id).
		Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.RoleID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
			&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT p.id,p.name,p.description,p.created_at,p.updated_at
		 FROM permissions p JOIN roles_permissions rp ON rp.permission_id=p.id
		 WHERE rp.role_id=?`,
		role.ID)
	if err != nil {
		return model.User{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var p model.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return model.User{}, err
		}
		role.Permissions = append(role.Permissions, p)
	}
	if err := rows.Err(); err != nil {
		return model.User{}, err
	}
	u.Role = &role
	return u, nil
}

// List returns a page of users plus the total match count. search, when
// non-empty, filters on email and username substrings.
func (r *UserRepo) List(ctx context.Context, skip, limit int, search string) ([]model.User, int, error) {
	where := ""
	args := []interface{}{}
	if search = strings.TrimSpace(search); search != "" {
		where = " WHERE email LIKE ? OR username LIKE ?"
		pat := "%" + search + "%"
		args = append(args, pat, pat)
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userCols+" FROM users"+where+" ORDER BY id ASC LIMIT ? OFFSET ?",
		append(args, limit, skip)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.RoleID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// Update changes email, username and/or the active flag. Nil pointers
// leave the column untouched. Returns sql.ErrNoRows for an unknown id.
func (r *UserRepo) Update(ctx context.Context, id uint64, email, username *string, isActive *bool) error {
	sets := []string{}
	args := []interface{}{}
	if email != nil {
		sets = append(sets, "email=?")
		args = append(args, strings.ToLower(strings.TrimSpace(*email)))
	}
	if username != nil {
		sets = append(sets, "username=?")
		args = append(args, strings.TrimSpace(*username))
	}
	if isActive != nil {
		sets = append(sets, "is_active=?")
		args = append(args, *isActive)
	}
	if len(sets) == 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	args = append(args, id)
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	switch {
	case isDuplicate(err, "uq_users_email"):
		return ErrEmailExists
	case isDuplicate(err, "uq_users_username"):
		return ErrUsernameExists
	}
	return err
}

// Delete removes a user row. Returns sql.ErrNoRows for an unknown id.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
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

// AssignRole points a user at a different role. Returns sql.ErrNoRows
// when either the user or the role does not exist.
func (r *UserRepo) AssignRole(ctx context.Context, userID, roleID uint64) error {
	var exists int
	if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM roles WHERE id=? LIMIT 1", roleID).Scan(&exists); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET role_id=? WHERE id=?", roleID, userID)
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

// UpdatePassword replaces the stored hash and invalidates any
// outstanding reset tokens for the user in a single transaction, so a
// pending reset link cannot survive an authenticated password change.
func (r *UserRepo) UpdatePassword(ctx context.Context, userID uint64, newHash string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "UPDATE users SET password_hash=? WHERE id=?", newHash, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return sql.ErrNoRows
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE password_reset_tokens SET used_at=NOW() WHERE user_id=? AND used_at IS NULL", userID); err != nil {
		return err
	}
	return tx.Commit()
}

// ResetPassword consumes one reset token and replaces the stored hash
// atomically. The token row is claimed first with a guarded update;
// when two resets race on the same token, exactly one transaction sees
// an affected row and the other returns ErrResetConsumed with the hash
// untouched.
func (r *UserRepo) ResetPassword(ctx context.Context, userID uint64, newHash, tokenHash string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE password_reset_tokens SET used_at=NOW() WHERE token_hash=? AND user_id=? AND used_at IS NULL AND expires_at > NOW()",
		tokenHash, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrResetConsumed
	}
	if _, err := tx.ExecContext(ctx, "UPDATE users SET password_hash=? WHERE id=?", newHash, userID); err != nil {
		return err
	}
	// Any other live tokens for this user die with the successful reset.
	if _, err := tx.ExecContext(ctx,
		"UPDATE password_reset_tokens SET used_at=NOW() WHERE user_id=? AND used_at IS NULL", userID); err != nil {
		return err
	}
	return tx.Commit()
}
