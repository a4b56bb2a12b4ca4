package model

import "time"

// User represents an application user record as stored in the `users`
// table. Each field corresponds to a column in the database. The json
// tags are omitted here because these structs are used internally by the
// repository layer; handlers define separate response types with
// appropriate JSON tags.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  Username     – unique username.
//  PasswordHash – bcrypt hashed password, never plaintext.
//  RoleID       – foreign key into the roles table.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	RoleID       uint64    // users.role_id (references roles.id)
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at

	// Role is populated when the user is loaded together with its role
	// and the role's permission set (single eager fetch). It is nil when
	// a repository method loads the bare row only.
	Role *Role
}

// HasPermission reports whether the user's role grants the named
// permission. The model is flat: no permission implies another and
// roles do not inherit from each other.
func (u *User) HasPermission(name string) bool {
	if u.Role == nil {
		return false
	}
	for _, p := range u.Role.Permissions {
		if p.Name == name {
			return true
		}
	}
	return false
}
