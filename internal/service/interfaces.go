package service

import (
	"context"

	"github.com/bappy/identity-service/internal/domain"
	"github.com/bappy/identity-service/internal/dto"
)

// AuthService defines the session orchestrator operations
type AuthService interface {
	Signup(ctx context.Context, req *dto.SignupRequest) (*AuthResult, error)
	Login(ctx context.Context, req *dto.LoginRequest, ip, userAgent string) (*AuthResult, error)
	ExchangeOAuth2Token(ctx context.Context, token string) (*AuthResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	VerifyEmail(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	GetUser(ctx context.Context, userID int64) (*dto.UserResponse, error)
	ValidateToken(ctx context.Context, token string) (*domain.TokenClaims, error)
}
