package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bappy/identity-service/internal/domain"
	"github.com/bappy/identity-service/internal/oauth2"
	"github.com/bappy/identity-service/internal/repository"
)

// IdentityResolver maps a social-provider profile payload onto an
// existing or newly created user record (account linking).
type IdentityResolver struct {
	users  repository.UserRepository
	logger *zap.Logger
}

// NewIdentityResolver creates a new identity resolver
func NewIdentityResolver(users repository.UserRepository, logger *zap.Logger) *IdentityResolver {
	return &IdentityResolver{users: users, logger: logger}
}

// Resolve extracts the provider profile and links or creates a user.
// Same email and a different provider link rather than duplicate: the
// first social login upgrades a LOCAL account in place.
func (r *IdentityResolver) Resolve(ctx context.Context, providerName string, attributes map[string]any) (*domain.User, error) {
	provider, profile, err := oauth2.ExtractProfile(providerName, attributes)
	if err != nil {
		return nil, err
	}

	user, err := r.users.GetByEmail(ctx, profile.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return r.registerNewUser(ctx, provider, profile)
		}
		return nil, err
	}

	return r.updateExistingUser(ctx, user, provider, profile)
}

func (r *IdentityResolver) registerNewUser(ctx context.Context, provider domain.AuthProvider, profile oauth2.Profile) (*domain.User, error) {
	r.logger.Info("Registering new oauth2 user",
		zap.String("email", profile.Email),
		zap.String("provider", string(provider)),
	)

	externalID := profile.ID
	user := &domain.User{
		Email:         profile.Email,
		FirstName:     profile.FirstName,
		LastName:      profile.LastName,
		EmailVerified: true, // the provider already verified the address
		Status:        domain.StatusActive,
		Provider:      provider,
		ProviderID:    &externalID,
		Roles:         []string{domain.RoleUser},
	}

	if err := r.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to register oauth2 user: %w", err)
	}

	return user, nil
}

func (r *IdentityResolver) updateExistingUser(ctx context.Context, user *domain.User, provider domain.AuthProvider, profile oauth2.Profile) (*domain.User, error) {
	changed := false

	// Take provider names only when non-empty and different; never
	// overwrite stored names with blanks.
	if profile.FirstName != "" && profile.FirstName != user.FirstName {
		user.FirstName = profile.FirstName
		changed = true
	}
	if profile.LastName != "" && profile.LastName != user.LastName {
		user.LastName = profile.LastName
		changed = true
	}

	// First social login upgrades a local account: link, don't duplicate.
	if user.Provider == domain.ProviderLocal {
		externalID := profile.ID
		user.Provider = provider
		user.ProviderID = &externalID
		changed = true

		r.logger.Info("Linked oauth2 provider to local account",
			zap.Int64("user_id", user.ID),
			zap.String("provider", string(provider)),
		)
	}

	if changed {
		if err := r.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to update oauth2 user: %w", err)
		}
	}

	return user, nil
}
