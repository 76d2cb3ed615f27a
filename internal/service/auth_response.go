package service

import (
	"github.com/bappy/identity-service/internal/domain"
	"github.com/bappy/identity-service/internal/dto"
)

// AuthResult bundles the caller-facing auth payload with the plain
// refresh token and its lifetime, so the transport layer can also set
// the httpOnly cookie.
type AuthResult struct {
	AuthResponse     *dto.AuthResponse
	RefreshToken     string
	RefreshExpiresIn int
}

// buildAuthResult signs an access token for the user and assembles the
// standard auth payload around an already-issued refresh token.
func (s *authService) buildAuthResult(user *domain.User, refreshToken string) (*AuthResult, error) {
	accessToken, err := s.codec.Sign(user.Subject())
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		AuthResponse: &dto.AuthResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    "Bearer",
			ExpiresIn:    s.codec.AccessTokenExpirySeconds(),
			User: dto.UserInfo{
				ID:            user.ID,
				Email:         user.Email,
				FirstName:     user.FirstName,
				LastName:      user.LastName,
				EmailVerified: user.EmailVerified,
				Status:        string(user.Status),
			},
		},
		RefreshToken:     refreshToken,
		RefreshExpiresIn: s.refreshTokens.ExpirySeconds(),
	}, nil
}
