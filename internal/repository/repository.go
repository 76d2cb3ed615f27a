package repository

import (
	"context"
	"database/sql"

	"github.com/bappy/identity-service/pkg/database"
)

// Proof token ledger tables. Both ledgers share one schema shape but own
// separate tables.
const (
	emailVerificationTable = "email_verification_tokens"
	passwordResetTable     = "password_reset_tokens"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User              UserRepository
	RefreshToken      RefreshTokenRepository
	EmailVerification ProofTokenRepository
	PasswordReset     ProofTokenRepository

	db *database.Postgres
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:              NewUserRepository(db),
		RefreshToken:      NewRefreshTokenRepository(db),
		EmailVerification: NewProofTokenRepository(db, emailVerificationTable),
		PasswordReset:     NewProofTokenRepository(db, passwordResetTable),
		db:                db,
	}
}

// WithinTx runs fn with a set of repositories bound to a single
// transaction. Mutations across ledgers commit together or not at all.
// A set without a database handle is assumed to be bound to a single
// executor already and runs fn as-is.
func (r *Repositories) WithinTx(ctx context.Context, fn func(txRepos *Repositories) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithinTx(ctx, func(tx *sql.Tx) error {
		return fn(&Repositories{
			User:              r.User.WithTx(tx),
			RefreshToken:      r.RefreshToken.WithTx(tx),
			EmailVerification: r.EmailVerification.WithTx(tx),
			PasswordReset:     r.PasswordReset.WithTx(tx),
		})
	})
}
