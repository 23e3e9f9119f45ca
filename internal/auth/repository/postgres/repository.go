package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/channelforge/auth-service/internal/auth/domain"
	autherror "github.com/channelforge/auth-service/internal/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, password_hash, password_algo, role, is_active, last_login_at, created_at, updated_at`

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, password_algo, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Email, user.PasswordHash, user.PasswordAlgo, user.Role, user.IsActive, user.CreatedAt, user.UpdatedAt)

	return err
}

func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users SET last_login_at = $2, updated_at = $2 WHERE id = $1
	`, userID, at)

	return err
}

func (r *PostgresRepository) RecordLoginAttempt(ctx context.Context, attempt *domain.LoginAttempt) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO login_attempts (id, email, user_id, ip_address, user_agent, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, attempt.ID, attempt.Email, attempt.UserID, attempt.IPAddress, attempt.UserAgent, attempt.Success, attempt.CreatedAt)

	return err
}

func (r *PostgresRepository) RecentLoginAttempts(ctx context.Context, email string, since time.Time, limit int) ([]domain.LoginAttempt, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, email, user_id, ip_address, user_agent, success, created_at
		FROM login_attempts
		WHERE email = $1 AND created_at > $2
		ORDER BY created_at DESC
		LIMIT $3
	`, email, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query login attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.LoginAttempt
	for rows.Next() {
		var a domain.LoginAttempt
		if err := rows.Scan(&a.ID, &a.Email, &a.UserID, &a.IPAddress, &a.UserAgent, &a.Success, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan login attempt: %w", err)
		}
		attempts = append(attempts, a)
	}

	return attempts, rows.Err()
}

const refreshTokenColumns = `id, user_id, token_hash, issued_at, expires_at, revoked_at, replaced_by_token_id, ip_address, user_agent`

func (r *PostgresRepository) StoreRefreshToken(ctx context.Context, rt *domain.RefreshToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, issued_at, expires_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rt.ID, rt.UserID, rt.TokenHash, rt.IssuedAt, rt.ExpiresAt, rt.IPAddress, rt.UserAgent)

	return err
}

func (r *PostgresRepository) GetLiveRefreshToken(ctx context.Context, tokenHash string, now time.Time) (*domain.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2
		LIMIT 1`

	var rt domain.RefreshToken
	err := r.db.QueryRow(ctx, query, tokenHash, now).Scan(
		&rt.ID, &rt.UserID, &rt.TokenHash, &rt.IssuedAt, &rt.ExpiresAt,
		&rt.RevokedAt, &rt.ReplacedByTokenID, &rt.IPAddress, &rt.UserAgent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	return &rt, nil
}

// RotateRefreshToken stores the successor row and revokes the predecessor in
// one transaction. The conditional revoke is the rotation lock: when two
// calls race on the same predecessor, the second one updates zero rows and
// the whole transaction rolls back, successor included.
func (r *PostgresRepository) RotateRefreshToken(ctx context.Context, oldID string, successor *domain.RefreshToken) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rotation: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, issued_at, expires_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, successor.ID, successor.UserID, successor.TokenHash, successor.IssuedAt, successor.ExpiresAt, successor.IPAddress, successor.UserAgent)
	if err != nil {
		return fmt.Errorf("store successor token: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = $1, replaced_by_token_id = $2
		WHERE id = $3 AND revoked_at IS NULL
	`, time.Now(), successor.ID, oldID)
	if err != nil {
		return fmt.Errorf("revoke predecessor token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return autherror.ErrInvalidSession
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) RevokeRefreshToken(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL
	`, time.Now(), id)

	return err
}

func (r *PostgresRepository) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL
	`, time.Now(), userID)

	return err
}

func (r *PostgresRepository) StoreResetToken(ctx context.Context, t *domain.PasswordResetToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, reason, expires_at, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.UserID, t.TokenHash, t.Reason, t.ExpiresAt, t.IPAddress, t.UserAgent, t.CreatedAt)

	return err
}

func (r *PostgresRepository) GetActiveResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.PasswordResetToken, error) {
	var t domain.PasswordResetToken
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, reason, expires_at, used_at, ip_address, user_agent, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > $2
		LIMIT 1
	`, tokenHash, now).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.Reason, &t.ExpiresAt,
		&t.UsedAt, &t.IPAddress, &t.UserAgent, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reset token: %w", err)
	}

	return &t, nil
}

// ResetPassword spends the reset token, swaps the credential and revokes
// every live session of the user, all in one transaction. Marking used_at is
// conditional on it still being NULL, which makes redemption exactly-once:
// the second concurrent redeemer updates zero rows and nothing it did becomes
// visible.
func (r *PostgresRepository) ResetPassword(ctx context.Context, userID, newHash, algo, resetTokenID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin password reset: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	now := time.Now()

	tag, err := tx.Exec(ctx, `
		UPDATE password_reset_tokens SET used_at = $1 WHERE id = $2 AND used_at IS NULL
	`, now, resetTokenID)
	if err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return autherror.ErrInvalidResetToken
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET password_hash = $1, password_algo = $2, updated_at = $3 WHERE id = $4
	`, newHash, algo, now, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL
	`, now, userID)
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	return tx.Commit(ctx)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.PasswordAlgo,
		&user.Role, &user.IsActive, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
