package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bappy/identity-service/internal/domain"
	"github.com/bappy/identity-service/pkg/database"
)

// proofTokenRepository implements ProofTokenRepository for one ledger
// table. The email-verification and password-reset ledgers share this
// implementation over separate tables.
type proofTokenRepository struct {
	exec  database.Executor
	table string
}

// NewProofTokenRepository creates a proof token repository over the given table
func NewProofTokenRepository(db *database.Postgres, table string) ProofTokenRepository {
	return &proofTokenRepository{exec: db.DB, table: table}
}

func (r *proofTokenRepository) WithTx(tx *sql.Tx) ProofTokenRepository {
	return &proofTokenRepository{exec: tx, table: r.table}
}

// Create inserts a new proof token record
func (r *proofTokenRepository) Create(ctx context.Context, token *domain.ProofToken) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, token, expires_at, consumed)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, r.table)

	err := r.exec.QueryRowContext(ctx, query,
		token.UserID,
		token.Token,
		token.ExpiresAt,
		token.Consumed,
	).Scan(&token.ID, &token.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create proof token: %w", err)
	}

	return nil
}

// GetByToken retrieves a proof token record by its token string
func (r *proofTokenRepository) GetByToken(ctx context.Context, token string) (*domain.ProofToken, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, token, expires_at, consumed, created_at
		FROM %s
		WHERE token = $1
	`, r.table)

	record := &domain.ProofToken{}
	err := r.exec.QueryRowContext(ctx, query, token).Scan(
		&record.ID,
		&record.UserID,
		&record.Token,
		&record.ExpiresAt,
		&record.Consumed,
		&record.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("proof token not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get proof token: %w", err)
	}

	return record, nil
}

// Consume marks an unconsumed, unexpired token as consumed. The guard on
// consumed and expiry makes double-consumption races resolve to one winner.
func (r *proofTokenRepository) Consume(ctx context.Context, token string, now time.Time) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET consumed = TRUE
		WHERE token = $1 AND consumed = FALSE AND expires_at > $2
	`, r.table)

	result, err := r.exec.ExecContext(ctx, query, token, now)
	if err != nil {
		return false, fmt.Errorf("failed to consume proof token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// DeleteAllForUser deletes every token of a user from this ledger
func (r *proofTokenRepository) DeleteAllForUser(ctx context.Context, userID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, r.table)

	if _, err := r.exec.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete user proof tokens: %w", err)
	}

	return nil
}

// DeleteExpired deletes all tokens past their expiry
func (r *proofTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at < $1`, r.table)

	result, err := r.exec.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired proof tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
