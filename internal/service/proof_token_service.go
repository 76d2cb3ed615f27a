package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bappy/identity-service/internal/domain"
	"github.com/bappy/identity-service/internal/repository"
)

// ProofTokenService is a single-use token ledger. Two instances exist,
// one over the email-verification table and one over the password-reset
// table.
type ProofTokenService struct {
	repo repository.ProofTokenRepository
	ttl  time.Duration
}

// NewProofTokenService creates a proof token ledger service
func NewProofTokenService(repo repository.ProofTokenRepository, ttl time.Duration) *ProofTokenService {
	return &ProofTokenService{repo: repo, ttl: ttl}
}

// With returns a copy of the service bound to the given repository,
// typically one scoped to a transaction.
func (s *ProofTokenService) With(repo repository.ProofTokenRepository) *ProofTokenService {
	return &ProofTokenService{repo: repo, ttl: s.ttl}
}

// Create mints a fresh random token for the user. Prior tokens are left
// in place; callers wanting a single live token must DeleteAllForUser
// first.
func (s *ProofTokenService) Create(ctx context.Context, userID int64) (*domain.ProofToken, error) {
	record := &domain.ProofToken{
		UserID:    userID,
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(s.ttl),
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}

	return record, nil
}

// FindValid looks up a token and checks it can still be consumed. Fails
// with repository.ErrNotFound or domain.ErrProofTokenSpent.
func (s *ProofTokenService) FindValid(ctx context.Context, token string) (*domain.ProofToken, error) {
	record, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if !record.IsValid() {
		return nil, domain.ErrProofTokenSpent
	}

	return record, nil
}

// Consume marks the token consumed. A second consumption attempt fails
// with domain.ErrProofTokenSpent; of two concurrent attempts exactly one
// succeeds.
func (s *ProofTokenService) Consume(ctx context.Context, token string) error {
	won, err := s.repo.Consume(ctx, token, time.Now())
	if err != nil {
		return err
	}

	if !won {
		return domain.ErrProofTokenSpent
	}

	return nil
}

// DeleteAllForUser removes every token of the user from this ledger.
func (s *ProofTokenService) DeleteAllForUser(ctx context.Context, userID int64) error {
	return s.repo.DeleteAllForUser(ctx, userID)
}

// SweepExpired deletes expired records. Hygiene only: expired records
// already fail FindValid and Consume.
func (s *ProofTokenService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.DeleteExpired(ctx, now)
}

// IsProofFailure reports whether err is a lookup/consumption failure as
// opposed to an infrastructure error.
func IsProofFailure(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || errors.Is(err, domain.ErrProofTokenSpent)
}
