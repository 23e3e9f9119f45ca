package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/channelforge/auth-service/internal/auth/domain"
	repo "github.com/channelforge/auth-service/internal/auth/repository/postgres"
	autherror "github.com/channelforge/auth-service/internal/errors"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{"id", "email", "password_hash", "password_algo", "role", "is_active", "last_login_at", "created_at", "updated_at"}

// TestGetByEmail covers the GetByEmail repository method.
func TestGetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repo.NewPostgresRepository(mock)
	userEmail := "test@example.com"
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email").
			WithArgs(userEmail).
			WillReturnRows(pgxmock.NewRows(userColumns).
				AddRow("user-123", userEmail, "hash", "argon2id", "USER", true, nil, time.Now(), time.Now()))

		user, err := r.GetByEmail(ctx, userEmail)
		require.NoError(t, err)
		assert.Equal(t, "user-123", user.ID)
		assert.True(t, user.IsActive)
		assert.Nil(t, user.LastLoginAt)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email").
			WithArgs(userEmail).
			WillReturnError(pgx.ErrNoRows)

		user, err := r.GetByEmail(ctx, userEmail)
		require.NoError(t, err) // Should return nil user, nil error
		assert.Nil(t, user)
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email").
			WithArgs(userEmail).
			WillReturnError(fmt.Errorf("db error"))

		_, err := r.GetByEmail(ctx, userEmail)
		assert.Error(t, err)
	})
}

// TestGetByID covers the GetByID repository method.
func TestGetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repo.NewPostgresRepository(mock)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		lastLogin := time.Now()
		mock.ExpectQuery("SELECT id, email").
			WithArgs("user-123").
			WillReturnRows(pgxmock.NewRows(userColumns).
				AddRow("user-123", "test@example.com", "hash", "argon2id", "ADMIN", true, &lastLogin, time.Now(), time.Now()))

		user, err := r.GetByID(ctx, "user-123")
		require.NoError(t, err)
		assert.Equal(t, "ADMIN", user.Role)
		assert.NotNil(t, user.LastLoginAt)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email").
			WithArgs("ghost").
			WillReturnError(pgx.ErrNoRows)

		user, err := r.GetByID(ctx, "ghost")
		require.NoError(t, err)
		assert.Nil(t, user)
	})
}

// TestCreate covers the Create repository method.
func TestCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repo.NewPostgresRepository(mock)
	ctx := context.Background()

	user := &domain.User{
		ID:           "user-123",
		Email:        "new@example.com",
		PasswordHash: "new-hash",
		PasswordAlgo: "argon2id",
		Role:         "USER",
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO users").
			WithArgs(user.ID, user.Email, user.PasswordHash, user.PasswordAlgo, user.Role, user.IsActive, user.CreatedAt, user.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, r.Create(ctx, user))
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO users").
			WithArgs(user.ID, user.Email, user.PasswordHash, user.PasswordAlgo, user.Role, user.IsActive, user.CreatedAt, user.UpdatedAt).
			WillReturnError(fmt.Errorf("db error"))

		assert.Error(t, r.Create(ctx, user))
	})
}

func TestUpdateLastLogin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repo.NewPostgresRepository(mock)
	at := time.Now()

	mock.ExpectExec("UPDATE users SET last_login_at").
		WithArgs("user-123", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, r.UpdateLastLogin(context.Background(), "user-123", at))
}

func TestRecordLoginAttempt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repo.NewPostgresRepository(mock)
	userID := "user-123"
	attempt := &domain.LoginAttempt{
		ID:        "attempt-1",
		Email:     "test@example.com",
		UserID:    &userID,
		IPAddress: "10.0.0.1",
		UserAgent: "test-agent",
		Success:   false,
		CreatedAt: time.Now(),
	}

	mock.ExpectExec("INSERT INTO login_attempts").
		WithArgs(attempt.ID, attempt.Email, attempt.UserID, attempt.IPAddress, attempt.UserAgent, attempt.Success, attempt.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, r.RecordLoginAttempt(context.Background(), attempt))
}

func TestRecentLoginAttempts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repo.NewPostgresRepository(mock)
	ctx := context.Background()
	since := time.Now().Add(-5 * time.Minute)
	columns := []string{"id", "email", "user_id", "ip_address", "user_agent", "success", "created_at"}

	t.Run("returns rows newest first", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, user_id").
			WithArgs("test@example.com", since, 5).
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow("a-1", "test@example.com", nil, "10.0.0.1", "agent", false, time.Now()).
				AddRow("a-2", "test@example.com", nil, "10.0.0.1", "agent", true, time.Now().Add(-time.Minute)))

		attempts, err := r.RecentLoginAttempts(ctx, "test@example.com", since, 5)
		require.NoError(t, err)
		require.Len(t, attempts, 2)
		assert.False(t, attempts[0].Success)
		assert.True(t, attempts[1].Success)
	})

	t.Run("empty history", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, user_id").
			WithArgs("fresh@example.com", since, 5).
			WillReturnRows(pgxmock.NewRows(columns))

		attempts, err := r.RecentLoginAttempts(ctx, "fresh@example.com", since, 5)
		require.NoError(t, err)
		assert.Empty(t, attempts)
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, user_id").
			WithArgs("test@example.com", since, 5).
			WillReturnError(fmt.Errorf("db error"))

		_, err := r.RecentLoginAttempts(ctx, "test@example.com", since, 5)
		assert.Error(t, err)
	})
}

// TestStoreRefreshToken covers the StoreRefreshToken method.
func TestStoreRefreshToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repo.NewPostgresRepository(mock)
	rt := &domain.RefreshToken{
		ID:        "rt-123",
		UserID:    "user-123",
		TokenHash: "fingerprint",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
		IPAddress: "10.0.0.1",
		UserAgent: "test-agent",
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO refresh_tokens").
			WithArgs(rt.ID, rt.UserID, rt.TokenHash, rt.IssuedAt, rt.ExpiresAt, rt.IPAddress, rt.UserAgent).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, r.StoreRefreshToken(context.Background(), rt))
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO refresh_tokens").
			WithArgs(rt.ID, rt.UserID, rt.TokenHash, rt.IssuedAt, rt.ExpiresAt, rt.IPAddress, rt.UserAgent).
			WillReturnError(fmt.Errorf("db error"))

		assert.Error(t, r.StoreRefreshToken(context.Background(), rt))
	})
}

func TestGetLiveRefreshToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repo.NewPostgresRepository(mock)
	ctx := context.Background()
	now := time.Now()
	columns := []string{"id", "user_id", "token_hash", "issued_at", "expires_at", "revoked_at", "replaced_by_token_id", "ip_address", "user_agent"}

	t.Run("live token found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, token_hash").
			WithArgs("fingerprint", now).
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow("rt-123", "user-123", "fingerprint", now.Add(-time.Minute), now.Add(time.Hour), nil, nil, "10.0.0.1", "agent"))

		rt, err := r.GetLiveRefreshToken(ctx, "fingerprint", now)
		require.NoError(t, err)
		assert.Equal(t, "rt-123", rt.ID)
		assert.Nil(t, rt.RevokedAt)
		assert.Nil(t, rt.ReplacedByTokenID)
	})

	t.Run("revoked, expired and unknown all come back nil", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, token_hash").
			WithArgs("spent-fingerprint", now).
			WillReturnError(pgx.ErrNoRows)

		rt, err := r.GetLiveRefreshToken(ctx, "spent-fingerprint", now)
		require.NoError(t, err)
		assert.Nil(t, rt)
	})
}

// TestRotateRefreshToken covers the rotation transaction.
func TestRotateRefreshToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repo.NewPostgresRepository(mock)
	ctx := context.Background()
	successor := &domain.RefreshToken{
		ID:        "rt-new",
		UserID:    "user-123",
		TokenHash: "new-fingerprint",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}

	t.Run("success commits both effects", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO refresh_tokens").
			WithArgs(successor.ID, successor.UserID, successor.TokenHash, successor.IssuedAt, successor.ExpiresAt, successor.IPAddress, successor.UserAgent).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("UPDATE refresh_tokens").
			WithArgs(pgxmock.AnyArg(), successor.ID, "rt-old").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		assert.NoError(t, r.RotateRefreshToken(ctx, "rt-old", successor))
	})

	t.Run("predecessor already revoked rolls back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO refresh_tokens").
			WithArgs(successor.ID, successor.UserID, successor.TokenHash, successor.IssuedAt, successor.ExpiresAt, successor.IPAddress, successor.UserAgent).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("UPDATE refresh_tokens").
			WithArgs(pgxmock.AnyArg(), successor.ID, "rt-old").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		err := r.RotateRefreshToken(ctx, "rt-old", successor)
		assert.Equal(t, autherror.ErrInvalidSession, err)
	})

	t.Run("insert failure rolls back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO refresh_tokens").
			WithArgs(successor.ID, successor.UserID, successor.TokenHash, successor.IssuedAt, successor.ExpiresAt, successor.IPAddress, successor.UserAgent).
			WillReturnError(fmt.Errorf("unique violation"))
		mock.ExpectRollback()

		assert.Error(t, r.RotateRefreshToken(ctx, "rt-old", successor))
	})
}

func TestRevokeRefreshToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repo.NewPostgresRepository(mock)
	ctx := context.Background()

	t.Run("revokes a live token", func(t *testing.T) {
		mock.ExpectExec("UPDATE refresh_tokens").
			WithArgs(pgxmock.AnyArg(), "rt-123").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, r.RevokeRefreshToken(ctx, "rt-123"))
	})

	t.Run("idempotent on an already revoked token", func(t *testing.T) {
		mock.ExpectExec("UPDATE refresh_tokens").
			WithArgs(pgxmock.AnyArg(), "rt-123").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.NoError(t, r.RevokeRefreshToken(ctx, "rt-123"))
	})
}

func TestRevokeAllRefreshTokens(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repo.NewPostgresRepository(mock)

	mock.ExpectExec("UPDATE refresh_tokens").
		WithArgs(pgxmock.AnyArg(), "user-123").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	assert.NoError(t, r.RevokeAllRefreshTokens(context.Background(), "user-123"))
}

func TestStoreResetToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repo.NewPostgresRepository(mock)
	tok := &domain.PasswordResetToken{
		ID:        "reset-1",
		UserID:    "user-123",
		TokenHash: "fingerprint",
		Reason:    "reset",
		ExpiresAt: time.Now().Add(20 * time.Minute),
		IPAddress: "10.0.0.1",
		UserAgent: "agent",
		CreatedAt: time.Now(),
	}

	mock.ExpectExec("INSERT INTO password_reset_tokens").
		WithArgs(tok.ID, tok.UserID, tok.TokenHash, tok.Reason, tok.ExpiresAt, tok.IPAddress, tok.UserAgent, tok.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, r.StoreResetToken(context.Background(), tok))
}

func TestGetActiveResetToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repo.NewPostgresRepository(mock)
	ctx := context.Background()
	now := time.Now()
	columns := []string{"id", "user_id", "token_hash", "reason", "expires_at", "used_at", "ip_address", "user_agent", "created_at"}

	t.Run("active token found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, token_hash").
			WithArgs("fingerprint", now).
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow("reset-1", "user-123", "fingerprint", "reset", now.Add(10*time.Minute), nil, "10.0.0.1", "agent", now.Add(-time.Minute)))

		tok, err := r.GetActiveResetToken(ctx, "fingerprint", now)
		require.NoError(t, err)
		assert.Equal(t, "reset-1", tok.ID)
		assert.Nil(t, tok.UsedAt)
	})

	t.Run("spent or unknown token comes back nil", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, token_hash").
			WithArgs("spent", now).
			WillReturnError(pgx.ErrNoRows)

		tok, err := r.GetActiveResetToken(ctx, "spent", now)
		require.NoError(t, err)
		assert.Nil(t, tok)
	})
}

// TestResetPassword covers the reset transaction.
func TestResetPassword(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repo.NewPostgresRepository(mock)
	ctx := context.Background()

	t.Run("success commits all three effects", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE password_reset_tokens").
			WithArgs(pgxmock.AnyArg(), "reset-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("UPDATE users").
			WithArgs("new-hash", "argon2id", pgxmock.AnyArg(), "user-123").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("UPDATE refresh_tokens").
			WithArgs(pgxmock.AnyArg(), "user-123").
			WillReturnResult(pgxmock.NewResult("UPDATE", 2))
		mock.ExpectCommit()

		assert.NoError(t, r.ResetPassword(ctx, "user-123", "new-hash", "argon2id", "reset-1"))
	})

	t.Run("already used token rolls everything back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE password_reset_tokens").
			WithArgs(pgxmock.AnyArg(), "reset-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		err := r.ResetPassword(ctx, "user-123", "new-hash", "argon2id", "reset-1")
		assert.Equal(t, autherror.ErrInvalidResetToken, err)
	})

	t.Run("credential update failure rolls back the token mark", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE password_reset_tokens").
			WithArgs(pgxmock.AnyArg(), "reset-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("UPDATE users").
			WithArgs("new-hash", "argon2id", pgxmock.AnyArg(), "user-123").
			WillReturnError(fmt.Errorf("db error"))
		mock.ExpectRollback()

		assert.Error(t, r.ResetPassword(ctx, "user-123", "new-hash", "argon2id", "reset-1"))
	})
}
