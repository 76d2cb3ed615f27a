package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bappy/identity-service/internal/utils"
	"github.com/bappy/identity-service/pkg/database"
)

// TokenBlacklistService tracks invalidated access tokens in Redis. It
// backs two behaviors: blocking a blacklisted token at validation, and
// making a redirect-carried OAuth2 token exchangeable exactly once.
// Entries expire with the token itself so the set stays bounded.
type TokenBlacklistService struct {
	redis *database.Redis
}

// NewTokenBlacklistService creates a new token blacklist service
func NewTokenBlacklistService(redis *database.Redis) *TokenBlacklistService {
	return &TokenBlacklistService{redis: redis}
}

// ClaimToken records the token if it is not already present, in one
// atomic step. It returns false when the token was recorded before,
// which makes it usable as a once-only claim under concurrency.
func (s *TokenBlacklistService) ClaimToken(ctx context.Context, token string, expiry time.Duration) (bool, error) {
	claimed, err := s.redis.Client.SetNX(ctx, s.key(token), "1", expiry).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim token: %w", err)
	}
	return claimed, nil
}

// IsTokenBlacklisted checks if a token is in the blacklist
func (s *TokenBlacklistService) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	exists, err := s.redis.Client.Exists(ctx, s.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return exists > 0, nil
}

// Tokens are hashed into the key so raw credentials never reach Redis.
func (s *TokenBlacklistService) key(token string) string {
	return "blacklist:token:" + utils.HashToken(token)
}
