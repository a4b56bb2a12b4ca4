package model

import "time"

// PasswordResetToken models an entry in the `password_reset_tokens`
// table. Each row belongs to a user and records the lifetime of one
// issued reset token. The signed token itself is never stored; only
// its SHA-256 hash, so a leaked table cannot be replayed.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the signed token string.
//  ExpiresAt – expiration timestamp mirrored from the token claims.
//  UsedAt    – when the token was consumed (null while still live).
//  CreatedAt – timestamp of creation.
type PasswordResetToken struct {
	ID        uint64     // password_reset_tokens.id
	UserID    uint64     // password_reset_tokens.user_id
	TokenHash string     // password_reset_tokens.token_hash
	ExpiresAt time.Time  // password_reset_tokens.expires_at
	UsedAt    *time.Time // password_reset_tokens.used_at (nullable)
	CreatedAt time.Time  // password_reset_tokens.created_at
}
