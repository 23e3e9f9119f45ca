package domain

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	PasswordAlgo string
	Role         string
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken is one node of a session lineage. Only the fingerprint of the
// opaque token is stored; the raw value leaves the service exactly once, at
// issue time. Rows are never deleted, revocation and rotation only set
// RevokedAt / ReplacedByTokenID.
type RefreshToken struct {
	ID                string
	UserID            string
	TokenHash         string
	IssuedAt          time.Time
	ExpiresAt         time.Time
	RevokedAt         *time.Time
	ReplacedByTokenID *string
	IPAddress         string
	UserAgent         string
}

// Live reports whether the session can still be presented: not revoked and
// not past its expiry.
func (rt *RefreshToken) Live(now time.Time) bool {
	return rt.RevokedAt == nil && rt.ExpiresAt.After(now)
}

// LoginAttempt rows are append-only; they feed the login throttle and the
// audit trail. UserID is nil when the email resolved to no account.
type LoginAttempt struct {
	ID        string
	Email     string
	UserID    *string
	IPAddress string
	UserAgent string
	Success   bool
	CreatedAt time.Time
}

type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	Reason    string
	ExpiresAt time.Time
	UsedAt    *time.Time
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// Redeemable reports whether the reset token can still be spent.
func (t *PasswordResetToken) Redeemable(now time.Time) bool {
	return t.UsedAt == nil && t.ExpiresAt.After(now)
}
