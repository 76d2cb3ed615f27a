package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/bappy/identity-service/internal/domain"
)

// UserRepository defines methods for user operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, user *domain.User) error

	// WithTx returns a copy of the repository bound to the transaction.
	WithTx(tx *sql.Tx) UserRepository
}

// RefreshTokenRepository defines methods for the refresh token ledger
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// Revoke flips the revoked flag for a non-revoked record and reports
	// whether a row changed. Exactly one caller wins a revocation race.
	Revoke(ctx context.Context, tokenHash string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	WithTx(tx *sql.Tx) RefreshTokenRepository
}

// ProofTokenRepository defines methods shared by the email-verification
// and password-reset token ledgers
type ProofTokenRepository interface {
	Create(ctx context.Context, token *domain.ProofToken) error
	GetByToken(ctx context.Context, token string) (*domain.ProofToken, error)

	// Consume marks an unconsumed, unexpired token as consumed and reports
	// whether a row changed. A second consumption attempt reports false.
	Consume(ctx context.Context, token string, now time.Time) (bool, error)
	DeleteAllForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	WithTx(tx *sql.Tx) ProofTokenRepository
}
