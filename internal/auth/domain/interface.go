package domain

import (
	"context"
	"time"
)

type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error

	RecordLoginAttempt(ctx context.Context, attempt *LoginAttempt) error
	RecentLoginAttempts(ctx context.Context, email string, since time.Time, limit int) ([]LoginAttempt, error)

	StoreRefreshToken(ctx context.Context, rt *RefreshToken) error
	GetLiveRefreshToken(ctx context.Context, tokenHash string, now time.Time) (*RefreshToken, error)
	// RotateRefreshToken stores the successor and revokes the predecessor in
	// one transaction; it fails without side effects when the predecessor is
	// no longer live.
	RotateRefreshToken(ctx context.Context, oldID string, successor *RefreshToken) error
	RevokeRefreshToken(ctx context.Context, id string) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) error

	StoreResetToken(ctx context.Context, t *PasswordResetToken) error
	GetActiveResetToken(ctx context.Context, tokenHash string, now time.Time) (*PasswordResetToken, error)
	// ResetPassword applies the new credential, marks the reset token used and
	// revokes every live session of the user in one transaction.
	ResetPassword(ctx context.Context, userID, newHash, algo, resetTokenID string) error
}
