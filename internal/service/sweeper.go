package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically deletes expired refresh and proof tokens. It is
// hygiene, not correctness: expired records already fail verification.
type Sweeper struct {
	refreshTokens      *TokenService
	verificationTokens *ProofTokenService
	resetTokens        *ProofTokenService
	interval           time.Duration
	logger             *zap.Logger
}

// NewSweeper creates a new token sweeper
func NewSweeper(
	refreshTokens *TokenService,
	verificationTokens *ProofTokenService,
	resetTokens *ProofTokenService,
	interval time.Duration,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		refreshTokens:      refreshTokens,
		verificationTokens: verificationTokens,
		resetTokens:        resetTokens,
		interval:           interval,
		logger:             logger,
	}
}

// Run sweeps on a ticker until the context is canceled. Intended to run
// in its own goroutine, decoupled from request handling.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now()

	refresh, err := s.refreshTokens.SweepExpired(ctx, now)
	if err != nil {
		s.logger.Warn("Failed to sweep expired refresh tokens", zap.Error(err))
	}

	verification, err := s.verificationTokens.SweepExpired(ctx, now)
	if err != nil {
		s.logger.Warn("Failed to sweep expired verification tokens", zap.Error(err))
	}

	reset, err := s.resetTokens.SweepExpired(ctx, now)
	if err != nil {
		s.logger.Warn("Failed to sweep expired password reset tokens", zap.Error(err))
	}

	if refresh+verification+reset > 0 {
		s.logger.Info("Swept expired tokens",
			zap.Int64("refresh", refresh),
			zap.Int64("verification", verification),
			zap.Int64("password_reset", reset),
		)
	}
}
