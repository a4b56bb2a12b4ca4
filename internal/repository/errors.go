// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrRoleInUse indicates that a role cannot be deleted while
// users still reference it, while ErrEmailExists and ErrUsernameExists
// signal uniqueness violations during account creation. Uniqueness is
// enforced by the database, not by in-process coordination: when two
// writers race, the store rejects the second one and the repository
// surfaces that rejection as one of these conflicts.
package repository

import (
	"errors"
	"strings"
)

// ErrEmailExists is returned when an insert or update violates the
// unique constraint on users.email. Handlers should translate this
// into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrUsernameExists is returned when an insert or update violates the
// unique constraint on users.username. Handlers should translate this
// into an HTTP 409 response.
var ErrUsernameExists = errors.New("username already exists")

// ErrConflict is returned for other uniqueness violations, such as
// creating a role with a taken name or granting a permission twice.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrRoleInUse is returned when deleting a role that users still
// reference. Deletion of a role in use is rejected rather than
// cascading or reassigning. Handlers should translate this into an
// HTTP 409 response.
var ErrRoleInUse = errors.New("role is in use")

// ErrResetConsumed is returned when a password reset token hash has
// already been consumed or was never issued. The same token string
// must not reset a password twice.
var ErrResetConsumed = errors.New("reset token consumed or unknown")

// isDuplicate reports whether err is a MySQL duplicate-entry error
// (code 1062). When key is non-empty the message must also mention the
// index name so callers can tell which constraint fired.
func isDuplicate(err error, key string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "1062") {
		return false
	}
	return key == "" || strings.Contains(msg, strings.ToLower(key))
}
