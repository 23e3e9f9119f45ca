package service

import (
	"context"
	"time"

	"github.com/channelforge/auth-service/internal/auth/domain"
	"github.com/channelforge/auth-service/internal/auth/dto"
	"github.com/channelforge/auth-service/internal/auth/token"
	autherror "github.com/channelforge/auth-service/internal/errors"
	authconstant "github.com/channelforge/auth-service/pkg/constant"
	"github.com/google/uuid"
)

// SessionService is the refresh-token ledger. It stores fingerprints only and
// returns each raw token exactly once, at issue time.
type SessionService struct {
	repo               domain.UserRepository
	pepper             string
	RefreshTokenExpiry time.Duration
}

func NewSessionService(repo domain.UserRepository, pepper string, refreshMinutes int) *SessionService {
	return &SessionService{
		repo:               repo,
		pepper:             pepper,
		RefreshTokenExpiry: time.Duration(refreshMinutes) * time.Minute,
	}
}

func (s *SessionService) Issue(ctx context.Context, userID string, meta dto.RequestMeta) (string, *domain.RefreshToken, error) {
	raw, rt, err := s.build(userID, meta)
	if err != nil {
		return "", nil, err
	}

	if err := s.repo.StoreRefreshToken(ctx, rt); err != nil {
		return "", nil, err
	}

	return raw, rt, nil
}

// Verify resolves a raw refresh token to its live ledger row. Revoked,
// expired and unknown tokens all fail the same way; callers must not leak
// which case it was.
func (s *SessionService) Verify(ctx context.Context, raw string) (*domain.RefreshToken, error) {
	rt, err := s.repo.GetLiveRefreshToken(ctx, token.Fingerprint(raw, s.pepper), time.Now())
	if err != nil {
		return nil, err
	}
	if rt == nil {
		return nil, autherror.ErrInvalidSession
	}

	return rt, nil
}

// Rotate exchanges a live session for its successor: the new row is stored
// and the old one is revoked and chain-linked in a single transaction. When
// two calls race on the same session only one rotation lands; the loser gets
// ErrInvalidSession and must re-authenticate.
func (s *SessionService) Rotate(ctx context.Context, old *domain.RefreshToken, meta dto.RequestMeta) (string, *domain.RefreshToken, error) {
	raw, rt, err := s.build(old.UserID, meta)
	if err != nil {
		return "", nil, err
	}

	if err := s.repo.RotateRefreshToken(ctx, old.ID, rt); err != nil {
		return "", nil, err
	}

	return raw, rt, nil
}

// Revoke is idempotent: revoking an already-revoked session is a no-op.
func (s *SessionService) Revoke(ctx context.Context, id string) error {
	return s.repo.RevokeRefreshToken(ctx, id)
}

func (s *SessionService) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.repo.RevokeAllRefreshTokens(ctx, userID)
}

func (s *SessionService) build(userID string, meta dto.RequestMeta) (string, *domain.RefreshToken, error) {
	raw, err := token.NewOpaque(authconstant.SessionTokenBytes)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()

	return raw, &domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: token.Fingerprint(raw, s.pepper),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.RefreshTokenExpiry),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}, nil
}
