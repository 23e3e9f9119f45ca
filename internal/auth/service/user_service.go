package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/channelforge/auth-service/config"
	"github.com/channelforge/auth-service/internal/auth/domain"
	"github.com/channelforge/auth-service/internal/auth/dto"
	"github.com/channelforge/auth-service/internal/auth/password"
	"github.com/channelforge/auth-service/internal/auth/token"
	autherror "github.com/channelforge/auth-service/internal/errors"
	authconstant "github.com/channelforge/auth-service/pkg/constant"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UserService composes the verifier, the token issuer and the session ledger
// into the register / login / refresh / logout / reset flows.
type UserService struct {
	repo         domain.UserRepository
	tokenService TokenGenerator
	sessions     *SessionService
	hasher       *password.Hasher
	pepper       string
	resetExpiry  time.Duration
	isProduction bool
	log          zerolog.Logger
}

func NewUserService(
	repo domain.UserRepository,
	tokenService TokenGenerator,
	sessions *SessionService,
	hasher *password.Hasher,
	cfg *config.Config,
	log zerolog.Logger,
) *UserService {
	return &UserService{
		repo:         repo,
		tokenService: tokenService,
		sessions:     sessions,
		hasher:       hasher,
		pepper:       cfg.Pepper,
		resetExpiry:  time.Duration(cfg.ResetExpiryMin) * time.Minute,
		isProduction: cfg.IsProduction(),
		log:          log,
	}
}

func (s *UserService) Register(ctx context.Context, input dto.RegisterInput) (*domain.User, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if len(input.Password) < authconstant.MinPasswordLength {
		return nil, autherror.ErrWeakPassword
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, autherror.ErrEmailAlreadyInUse
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		PasswordAlgo: s.hasher.Algorithm(),
		Role:         authconstant.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login runs the throttle gate, verifies the credential and on success issues
// an access token plus a fresh session. Every call writes exactly one
// LoginAttempt row before responding, including throttled and unknown-email
// outcomes, so the audit trail stays complete and feeds future throttle
// decisions. Unknown email, wrong password and inactive account all collapse
// into ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, input dto.LoginInput) (*dto.LoginResult, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if len(input.Password) < authconstant.MinPasswordLength {
		return nil, autherror.ErrInvalidCredentials
	}

	now := time.Now()

	attempts, err := s.repo.RecentLoginAttempts(ctx, email,
		now.Add(-authconstant.LoginFailureWindow), authconstant.LoginAttemptWindowSize)
	if err != nil {
		return nil, err
	}

	if retryAfter := loginRetryAfter(attempts, now); retryAfter > 0 {
		if err := s.recordAttempt(ctx, email, nil, input.IPAddress, input.UserAgent, false); err != nil {
			return nil, err
		}
		return nil, &autherror.RateLimitError{RetryAfter: retryAfter}
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user == nil || !user.IsActive {
		var userID *string
		if user != nil {
			userID = &user.ID
		}
		if err := s.recordAttempt(ctx, email, userID, input.IPAddress, input.UserAgent, false); err != nil {
			return nil, err
		}
		return nil, autherror.ErrInvalidCredentials
	}

	valid := s.hasher.Verify(input.Password, user.PasswordHash)

	if err := s.recordAttempt(ctx, email, &user.ID, input.IPAddress, input.UserAgent, valid); err != nil {
		return nil, err
	}

	if !valid {
		return nil, autherror.ErrInvalidCredentials
	}

	accessToken, _, err := s.tokenService.Generate(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	rawRefresh, _, err := s.sessions.Issue(ctx, user.ID, dto.RequestMeta{
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	return &dto.LoginResult{
		AccessToken:  accessToken,
		RefreshToken: rawRefresh,
		User:         profileOf(user),
	}, nil
}

// Refresh exchanges a live session for a rotated one and a new access token.
// A missing, unknown, revoked or expired token fails uniformly with
// ErrInvalidSession; so does losing a rotation race.
func (s *UserService) Refresh(ctx context.Context, rawToken string, meta dto.RequestMeta) (*dto.LoginResult, error) {
	if rawToken == "" {
		return nil, autherror.ErrInvalidSession
	}

	rt, err := s.sessions.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, rt.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		if err := s.sessions.Revoke(ctx, rt.ID); err != nil {
			s.log.Warn().Err(err).Str("session_id", rt.ID).Msg("failed to revoke session of missing user")
		}
		return nil, autherror.ErrInvalidSession
	}

	newRaw, _, err := s.sessions.Rotate(ctx, rt, meta)
	if err != nil {
		return nil, err
	}

	accessToken, _, err := s.tokenService.Generate(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResult{
		AccessToken:  accessToken,
		RefreshToken: newRaw,
		User:         profileOf(user),
	}, nil
}

// Logout revokes the presented session if it is still live. An unknown or
// already-dead token is not an error; the caller ends up logged out either
// way.
func (s *UserService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}

	rt, err := s.sessions.Verify(ctx, rawToken)
	if err != nil {
		if err == autherror.ErrInvalidSession {
			return nil
		}
		return err
	}

	return s.sessions.Revoke(ctx, rt.ID)
}

func (s *UserService) Me(ctx context.Context, userID string) (*dto.UserOutput, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, autherror.ErrUserNotFound
	}

	profile := profileOf(user)

	return &profile, nil
}

// ForgotPassword issues a single-use reset token when the email resolves to
// an account. The caller-visible outcome is identical whether or not the
// account exists, so the endpoint cannot be used for enumeration. The raw
// token goes to the notification path only; it is never persisted.
func (s *UserService) ForgotPassword(ctx context.Context, input dto.ForgotPasswordInput) error {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return err
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	rawToken, err := token.NewOpaque(authconstant.ResetTokenBytes)
	if err != nil {
		return err
	}

	resetToken := &domain.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: token.Fingerprint(rawToken, s.pepper),
		Reason:    authconstant.ResetReasonDefault,
		ExpiresAt: time.Now().Add(s.resetExpiry),
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		CreatedAt: time.Now(),
	}

	if err := s.repo.StoreResetToken(ctx, resetToken); err != nil {
		return err
	}

	// Stand-in for the mail notifier. The raw token is surfaced in
	// development only.
	if s.isProduction {
		s.log.Info().Str("email", email).Msg("password reset token generated")
	} else {
		s.log.Debug().Str("email", email).Str("reset_token", rawToken).Msg("password reset token generated")
	}

	return nil
}

// ResetPassword redeems a reset token. The credential change, the token's
// used_at mark and the revocation of every live session commit in a single
// transaction; a second redemption of the same token fails with
// ErrInvalidResetToken just like a token that never existed.
func (s *UserService) ResetPassword(ctx context.Context, input dto.ResetPasswordInput) error {
	if len(input.Token) < 10 {
		return autherror.ErrInvalidResetToken
	}
	if len(input.Password) < authconstant.MinPasswordLength {
		return autherror.ErrWeakPassword
	}

	record, err := s.repo.GetActiveResetToken(ctx, token.Fingerprint(input.Token, s.pepper), time.Now())
	if err != nil {
		return err
	}
	if record == nil {
		return autherror.ErrInvalidResetToken
	}

	user, err := s.repo.GetByID(ctx, record.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return autherror.ErrInvalidResetToken
	}

	newHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return err
	}

	return s.repo.ResetPassword(ctx, user.ID, newHash, s.hasher.Algorithm(), record.ID)
}

// Seed bootstraps the admin account on startup. It is idempotent: an
// existing account with the configured email is left untouched.
func (s *UserService) Seed(ctx context.Context, email, plainPassword string) error {
	if email == "" || plainPassword == "" {
		return nil
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	hash, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return err
	}

	now := time.Now()
	admin := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		PasswordAlgo: s.hasher.Algorithm(),
		Role:         authconstant.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, admin); err != nil {
		return err
	}

	s.log.Info().Str("email", email).Msg("seeded admin account")

	return nil
}

func (s *UserService) recordAttempt(ctx context.Context, email string, userID *string, ip, userAgent string, success bool) error {
	return s.repo.RecordLoginAttempt(ctx, &domain.LoginAttempt{
		ID:        uuid.NewString(),
		Email:     email,
		UserID:    userID,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   success,
		CreatedAt: time.Now(),
	})
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", autherror.ErrInvalidEmail
	}
	return email, nil
}

func profileOf(user *domain.User) dto.UserOutput {
	return dto.UserOutput{
		ID:          user.ID,
		Email:       user.Email,
		Role:        user.Role,
		LastLoginAt: user.LastLoginAt,
	}
}
