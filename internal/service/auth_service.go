package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bappy/identity-service/internal/domain"
	"github.com/bappy/identity-service/internal/dto"
	"github.com/bappy/identity-service/internal/notification"
	"github.com/bappy/identity-service/internal/repository"
	"github.com/bappy/identity-service/internal/utils"
)

// authService implements AuthService. Every mutating operation runs its
// persistence inside one transaction; notification sends run in
// goroutines and never fail the caller.
type authService struct {
	repos              *repository.Repositories
	codec              *utils.TokenCodec
	refreshTokens      *TokenService
	verificationTokens *ProofTokenService
	resetTokens        *ProofTokenService
	blacklist          *TokenBlacklistService
	dispatcher         notification.Dispatcher
	logger             *zap.Logger
	bcryptCost         int
	exchangeGuardTTL   time.Duration
}

// NewAuthService creates a new session orchestrator
func NewAuthService(
	repos *repository.Repositories,
	codec *utils.TokenCodec,
	refreshTokens *TokenService,
	verificationTokens *ProofTokenService,
	resetTokens *ProofTokenService,
	blacklist *TokenBlacklistService,
	dispatcher notification.Dispatcher,
	logger *zap.Logger,
	bcryptCost int,
	exchangeGuardTTL time.Duration,
) AuthService {
	return &authService{
		repos:              repos,
		codec:              codec,
		refreshTokens:      refreshTokens,
		verificationTokens: verificationTokens,
		resetTokens:        resetTokens,
		blacklist:          blacklist,
		dispatcher:         dispatcher,
		logger:             logger,
		bcryptCost:         bcryptCost,
		exchangeGuardTTL:   exchangeGuardTTL,
	}
}

// Signup registers a new local user in PENDING_VERIFICATION and returns
// a full session pair. The verification email is best-effort.
func (s *authService) Signup(ctx context.Context, req *dto.SignupRequest) (*AuthResult, error) {
	if !utils.ValidateEmail(req.Email) {
		return nil, fmt.Errorf("%w: invalid email format", domain.ErrValidation)
	}
	if !utils.ValidatePassword(req.Password) {
		return nil, fmt.Errorf("%w: password must be at least 8 characters with uppercase, lowercase, and number", domain.ErrValidation)
	}

	email := utils.SanitizeEmail(req.Email)

	exists, err := s.repos.User.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%s: %w", email, domain.ErrEmailExists)
	}

	passwordHash, err := utils.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Status:       domain.StatusPendingVerification,
		Provider:     domain.ProviderLocal,
		Roles:        []string{domain.RoleUser},
	}

	var verification *domain.ProofToken
	var refreshToken string

	err = s.repos.WithinTx(ctx, func(txRepos *repository.Repositories) error {
		if err := txRepos.User.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				// Lost a creation race; same answer as the pre-check
				return fmt.Errorf("%s: %w", email, domain.ErrEmailExists)
			}
			return err
		}

		verification, err = s.verificationTokens.With(txRepos.EmailVerification).Create(ctx, user.ID)
		if err != nil {
			return err
		}

		_, refreshToken, err = s.refreshTokens.With(txRepos.RefreshToken).Issue(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.Int64("user_id", user.ID), zap.String("email", user.Email))

	s.notifyAsync("verification email", user.Email, func() error {
		return s.dispatcher.SendVerification(user, verification.Token)
	})

	return s.buildAuthResult(user, refreshToken)
}

// Login authenticates with email and password. Unknown email and wrong
// password produce the same failure so responses never reveal whether an
// address is registered.
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest, ip, userAgent string) (*AuthResult, error) {
	user, err := s.repos.User.GetByEmail(ctx, utils.SanitizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	// Pure social accounts have no password hash and cannot log in locally
	if user.PasswordHash == "" || !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	switch user.Status {
	case domain.StatusDisabled:
		return nil, domain.ErrAccountDisabled
	case domain.StatusLocked:
		return nil, domain.ErrAccountLocked
	case domain.StatusDeleted:
		return nil, domain.ErrInvalidCredentials
	}

	var refreshToken string
	err = s.repos.WithinTx(ctx, func(txRepos *repository.Repositories) error {
		_, refreshToken, err = s.refreshTokens.With(txRepos.RefreshToken).Issue(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in", zap.Int64("user_id", user.ID), zap.String("email", user.Email))

	s.notifyAsync("login alert", user.Email, func() error {
		return s.dispatcher.SendLoginAlert(user, ip, userAgent)
	})

	return s.buildAuthResult(user, refreshToken)
}

// ExchangeOAuth2Token trades a redirect-carried access token for a full
// session pair. A token can be exchanged at most once. Unexpected
// failures are wrapped into a single OAuth2ExchangeError carrying the
// cause.
func (s *authService) ExchangeOAuth2Token(ctx context.Context, token string) (*AuthResult, error) {
	result, err := s.exchangeOAuth2Token(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) || errors.Is(err, domain.ErrAccountNotActive) {
			return nil, err
		}
		s.logger.Error("OAuth2 token exchange failed", zap.Error(err))
		return nil, &domain.OAuth2ExchangeError{Cause: err}
	}
	return result, nil
}

func (s *authService) exchangeOAuth2Token(ctx context.Context, token string) (*AuthResult, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		s.logger.Warn("OAuth2 exchange token rejected", zap.Error(err))
		return nil, domain.ErrInvalidToken
	}

	user, err := s.repos.User.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	if user.Status != domain.StatusActive {
		return nil, domain.ErrAccountNotActive
	}

	// One-shot guard; SetNX makes concurrent exchanges of the same
	// redirect token resolve to a single winner.
	claimed, err := s.blacklist.ClaimToken(ctx, token, s.exchangeGuardTTL)
	if err != nil {
		return nil, err
	}
	if !claimed {
		s.logger.Warn("OAuth2 exchange token replayed", zap.Int64("user_id", claims.UserID))
		return nil, domain.ErrInvalidToken
	}

	var refreshToken string
	err = s.repos.WithinTx(ctx, func(txRepos *repository.Repositories) error {
		_, refreshToken, err = s.refreshTokens.With(txRepos.RefreshToken).Issue(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("OAuth2 token exchanged", zap.Int64("user_id", user.ID), zap.String("email", user.Email))

	s.notifyAsync("login alert", user.Email, func() error {
		return s.dispatcher.SendLoginAlert(user, "", "")
	})

	return s.buildAuthResult(user, refreshToken)
}

// RefreshToken verifies the presented refresh token, rotates it, and
// mints a new access token. Revocation and reissue commit together; of
// two concurrent refreshes with the same token exactly one succeeds.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResult, error) {
	var user *domain.User
	var rotated string

	err := s.repos.WithinTx(ctx, func(txRepos *repository.Repositories) error {
		ledger := s.refreshTokens.With(txRepos.RefreshToken)

		record, err := ledger.Verify(ctx, refreshToken)
		if err != nil {
			return err
		}

		user, err = txRepos.User.GetByID(ctx, record.UserID)
		if err != nil {
			return err
		}

		_, rotated, err = ledger.Rotate(ctx, refreshToken, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Refresh token rotated", zap.Int64("user_id", user.ID))

	return s.buildAuthResult(user, rotated)
}

// Logout revokes the refresh token if present. Idempotent: unknown or
// already-revoked tokens are a no-op.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	if err := s.refreshTokens.Revoke(ctx, refreshToken); err != nil {
		return err
	}

	s.logger.Info("User logged out")
	return nil
}

// VerifyEmail consumes a verification token and activates the account.
// The consumption and the user update commit together or not at all.
func (s *authService) VerifyEmail(ctx context.Context, token string) error {
	err := s.repos.WithinTx(ctx, func(txRepos *repository.Repositories) error {
		ledger := s.verificationTokens.With(txRepos.EmailVerification)

		record, err := ledger.FindValid(ctx, token)
		if err != nil {
			return err
		}

		if err := ledger.Consume(ctx, record.Token); err != nil {
			return err
		}

		user, err := txRepos.User.GetByID(ctx, record.UserID)
		if err != nil {
			return err
		}

		user.EmailVerified = true
		user.Status = domain.StatusActive

		if err := txRepos.User.Update(ctx, user); err != nil {
			return err
		}

		s.logger.Info("Email verified", zap.Int64("user_id", user.ID), zap.String("email", user.Email))
		return nil
	})

	return s.collapseProofFailure(err, "verification")
}

// ForgotPassword issues a fresh reset token, replacing any previous one
// so at most one live reset link exists, and emails it best-effort.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repos.User.GetByEmail(ctx, utils.SanitizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", email, domain.ErrUserNotFound)
		}
		return err
	}

	var reset *domain.ProofToken
	err = s.repos.WithinTx(ctx, func(txRepos *repository.Repositories) error {
		ledger := s.resetTokens.With(txRepos.PasswordReset)

		if err := ledger.DeleteAllForUser(ctx, user.ID); err != nil {
			return err
		}

		reset, err = ledger.Create(ctx, user.ID)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("Password reset requested", zap.Int64("user_id", user.ID), zap.String("email", user.Email))

	s.notifyAsync("password reset email", user.Email, func() error {
		return s.dispatcher.SendPasswordReset(user, reset.Token)
	})

	return nil
}

// ResetPassword consumes a reset token, replaces the password hash, and
// revokes every refresh token so all existing sessions die with the old
// password. All three commit together.
func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if !utils.ValidatePassword(newPassword) {
		return fmt.Errorf("%w: password must be at least 8 characters with uppercase, lowercase, and number", domain.ErrValidation)
	}

	passwordHash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}

	err = s.repos.WithinTx(ctx, func(txRepos *repository.Repositories) error {
		ledger := s.resetTokens.With(txRepos.PasswordReset)

		record, err := ledger.FindValid(ctx, token)
		if err != nil {
			return err
		}

		if err := ledger.Consume(ctx, record.Token); err != nil {
			return err
		}

		user, err := txRepos.User.GetByID(ctx, record.UserID)
		if err != nil {
			return err
		}

		user.PasswordHash = passwordHash
		if err := txRepos.User.Update(ctx, user); err != nil {
			return err
		}

		if err := s.refreshTokens.With(txRepos.RefreshToken).RevokeAllForUser(ctx, user.ID); err != nil {
			return err
		}

		s.logger.Info("Password reset", zap.Int64("user_id", user.ID), zap.String("email", user.Email))
		return nil
	})

	return s.collapseProofFailure(err, "password reset")
}

// GetUser returns the profile of an authenticated user.
func (s *authService) GetUser(ctx context.Context, userID int64) (*dto.UserResponse, error) {
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &dto.UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		EmailVerified: user.EmailVerified,
		Status:        string(user.Status),
		Provider:      string(user.Provider),
		Roles:         user.Roles,
		CreatedAt:     user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     user.UpdatedAt.Format(time.RFC3339),
	}, nil
}

// ValidateToken validates an access token for middleware use.
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.TokenClaims, error) {
	blacklisted, err := s.blacklist.IsTokenBlacklisted(ctx, token)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, domain.ErrInvalidToken
	}

	claims, err := s.codec.Verify(token)
	if err != nil {
		s.logger.Debug("Access token rejected", zap.Error(err))
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}

// collapseProofFailure maps the distinct proof token failure kinds to
// the single user-facing kind, keeping the precise cause in logs so
// responses never aid token enumeration.
func (s *authService) collapseProofFailure(err error, ledger string) error {
	if err == nil {
		return nil
	}
	if IsProofFailure(err) {
		s.logger.Warn("Proof token rejected", zap.String("ledger", ledger), zap.Error(err))
		return domain.ErrProofTokenSpent
	}
	return err
}

// notifyAsync dispatches a notification in a goroutine. Failures are
// logged and swallowed; sends never delay or fail the caller.
func (s *authService) notifyAsync(kind, email string, send func() error) {
	go func() {
		if err := send(); err != nil {
			s.logger.Warn("Failed to send "+kind, zap.String("email", email), zap.Error(err))
		}
	}()
}
