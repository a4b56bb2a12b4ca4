// Package queue defines message payloads exchanged over the message broker.
package queue

// Mail event kinds.
const (
	MailPasswordReset   = "password_reset"
	MailPasswordChanged = "password_changed"
)

// MailEvent is published whenever the core decides a notification
// should be sent. It carries enough for the mail worker to render and
// deliver the message without querying the primary database. The core
// never formats or transmits mail itself; publishing this event is the
// whole of its responsibility.
type MailEvent struct {
	Kind       string `json:"kind"`
	UserID     uint64 `json:"user_id"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	ResetToken string `json:"reset_token,omitempty"` // only for password_reset
	ExpiresAt  string `json:"expires_at,omitempty"`  // only for password_reset
	OccurredAt string `json:"occurred_at"`
}
