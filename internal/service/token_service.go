package service

import (
	"context"
	"errors"
	"time"

	"github.com/bappy/identity-service/internal/domain"
	"github.com/bappy/identity-service/internal/repository"
	"github.com/bappy/identity-service/internal/utils"
)

// TokenService is the refresh token ledger. It enforces the
// single-active-token policy: issuing revokes every prior token of the
// user, so a second login invalidates the first device's session.
type TokenService struct {
	repo          repository.RefreshTokenRepository
	refreshExpiry time.Duration
}

// NewTokenService creates a new refresh token ledger service
func NewTokenService(repo repository.RefreshTokenRepository, refreshExpiry time.Duration) *TokenService {
	return &TokenService{
		repo:          repo,
		refreshExpiry: refreshExpiry,
	}
}

// With returns a copy of the service bound to the given repository,
// typically one scoped to a transaction.
func (s *TokenService) With(repo repository.RefreshTokenRepository) *TokenService {
	return &TokenService{repo: repo, refreshExpiry: s.refreshExpiry}
}

// Issue revokes every live token of the user and mints a fresh opaque
// token. Returns the persisted record and the plain token; only the
// SHA-256 hash is stored.
func (s *TokenService) Issue(ctx context.Context, userID int64) (*domain.RefreshToken, string, error) {
	if err := s.repo.RevokeAllForUser(ctx, userID); err != nil {
		return nil, "", err
	}

	plain, err := utils.NewOpaqueToken()
	if err != nil {
		return nil, "", err
	}

	record := &domain.RefreshToken{
		UserID:    userID,
		TokenHash: utils.HashToken(plain),
		ExpiresAt: time.Now().Add(s.refreshExpiry),
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, "", err
	}

	return record, plain, nil
}

// Verify looks up a presented token and checks it is live. Fails with
// repository.ErrNotFound, domain.ErrRefreshTokenExpired or
// domain.ErrRefreshTokenRevoked; callers must collapse these before
// surfacing them to avoid a token-guessing oracle.
func (s *TokenService) Verify(ctx context.Context, token string) (*domain.RefreshToken, error) {
	record, err := s.repo.GetByTokenHash(ctx, utils.HashToken(token))
	if err != nil {
		return nil, err
	}

	if record.Revoked {
		return nil, domain.ErrRefreshTokenRevoked
	}

	if record.IsExpired() {
		return nil, domain.ErrRefreshTokenExpired
	}

	return record, nil
}

// Rotate revokes the presented token and issues a replacement for the
// same user. The conditional revoke guarantees that of two concurrent
// rotations of one token exactly one succeeds; the loser fails with
// domain.ErrRefreshTokenRevoked. Run inside a transaction so revocation
// and issuance commit together.
func (s *TokenService) Rotate(ctx context.Context, token string, userID int64) (*domain.RefreshToken, string, error) {
	won, err := s.repo.Revoke(ctx, utils.HashToken(token))
	if err != nil {
		return nil, "", err
	}

	if !won {
		return nil, "", domain.ErrRefreshTokenRevoked
	}

	return s.Issue(ctx, userID)
}

// Revoke revokes a token if it exists. Idempotent: revoking an unknown
// or already-revoked token is a no-op.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	_, err := s.repo.Revoke(ctx, utils.HashToken(token))
	return err
}

// RevokeAllForUser revokes every token of a user. Used on password reset
// to invalidate every existing session.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID int64) error {
	return s.repo.RevokeAllForUser(ctx, userID)
}

// SweepExpired deletes expired records. Hygiene only: expired records
// already fail Verify.
func (s *TokenService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.DeleteExpired(ctx, now)
}

// ExpirySeconds returns the refresh token TTL in seconds.
func (s *TokenService) ExpirySeconds() int {
	return int(s.refreshExpiry.Seconds())
}

// IsVerifyFailure reports whether err is one of the three verify failure
// kinds, as opposed to an infrastructure error.
func IsVerifyFailure(err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, domain.ErrRefreshTokenExpired) ||
		errors.Is(err, domain.ErrRefreshTokenRevoked)
}
