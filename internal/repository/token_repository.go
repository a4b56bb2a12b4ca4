package repository

import (
	"context"
	"database/sql"
	"time"
)

// ResetTokenRepo persists password reset tokens (single 'token_hash'
// column; the signed token itself is never stored). Consumption happens
// in UserRepo.ResetPassword so the hash replacement and the token
// invalidation share one transaction.
type ResetTokenRepo struct{ DB *sql.DB }

func NewResetTokenRepo(db *sql.DB) *ResetTokenRepo { return &ResetTokenRepo{DB: db} }

// Store inserts a reset token hash row for the user.
func (r *ResetTokenRepo) Store(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO password_reset_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	return err
}

// IsLive reports whether an unused, unexpired row exists for the hash.
// The reset handler calls this before doing any bcrypt work so dead
// tokens are cheap to reject; the authoritative consume is still the
// guarded update inside UserRepo.ResetPassword.
func (r *ResetTokenRepo) IsLive(ctx context.Context, tokenHash string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM password_reset_tokens WHERE token_hash=? AND used_at IS NULL AND expires_at > NOW() LIMIT 1",
		tokenHash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PurgeExpired removes rows whose tokens can never be consumed again.
// Called opportunistically from the forgot-password path after a new
// row is written; losing rows early is harmless because the signed
// token's own expiry already rejects them.
func (r *ResetTokenRepo) PurgeExpired(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM password_reset_tokens WHERE expires_at < NOW() - INTERVAL 1 DAY")
	return err
}
