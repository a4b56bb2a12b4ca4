package model

import "time"

// Role represents a row in the `roles` table. Many users share one
// role; a user holds a non-owning reference via users.role_id. The
// role owns its permission grants through the roles_permissions
// junction table.
type Role struct {
	ID          uint64    // roles.id
	Name        string    // roles.name (unique, e.g. "admin", "user", "moderator")
	Description string    // roles.description
	CreatedAt   time.Time // roles.created_at
	UpdatedAt   time.Time // roles.updated_at

	// Permissions holds the role's granted set when loaded eagerly.
	// The junction table's composite primary key guarantees no
	// duplicate entries.
	Permissions []Permission
}

// Permission represents a row in the `permissions` table. Permissions
// are atomic and non-hierarchical; no permission implies another.
type Permission struct {
	ID          uint64    // permissions.id
	Name        string    // permissions.name (unique, e.g. "read_user")
	Description string    // permissions.description
	CreatedAt   time.Time // permissions.created_at
	UpdatedAt   time.Time // permissions.updated_at
}
