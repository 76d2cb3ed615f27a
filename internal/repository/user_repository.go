package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/bappy/identity-service/internal/domain"
	"github.com/bappy/identity-service/pkg/database"
)

// userRepository implements UserRepository interface
type userRepository struct {
	exec database.Executor
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.Postgres) UserRepository {
	return &userRepository{exec: db.DB}
}

func (r *userRepository) WithTx(tx *sql.Tx) UserRepository {
	return &userRepository{exec: tx}
}

// Create inserts a new user together with its role assignments.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (email, password_hash, first_name, last_name, email_verified, status, provider, provider_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.exec.QueryRowContext(ctx, query,
		user.Email,
		nullString(user.PasswordHash),
		user.FirstName,
		user.LastName,
		user.EmailVerified,
		string(user.Status),
		string(user.Provider),
		user.ProviderID,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return fmt.Errorf("email %s taken: %w", user.Email, ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	if err := r.assignRoles(ctx, user.ID, user.Roles); err != nil {
		return err
	}

	return nil
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, "LOWER(email) = LOWER($1)", email)
}

// GetByID retrieves a user by id
func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getBy(ctx, "id = $1", id)
}

// ExistsByEmail reports whether a user with the email exists.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`

	if err := r.exec.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}

	return exists, nil
}

// Update persists mutable user fields. Roles are reference data assigned
// at creation and are not updated here.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET email = $2, password_hash = $3, first_name = $4, last_name = $5,
		    email_verified = $6, status = $7, provider = $8, provider_id = $9,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.exec.ExecContext(ctx, query,
		user.ID,
		user.Email,
		nullString(user.PasswordHash),
		user.FirstName,
		user.LastName,
		user.EmailVerified,
		string(user.Status),
		string(user.Provider),
		user.ProviderID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user %d: %w", user.ID, ErrNotFound)
	}

	return nil
}

func (r *userRepository) getBy(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := fmt.Sprintf(`
		SELECT id, email, password_hash, first_name, last_name, email_verified,
		       status, provider, provider_id, created_at, updated_at
		FROM users
		WHERE %s
	`, where)

	user := &domain.User{}
	var passwordHash sql.NullString
	var providerID sql.NullString

	err := r.exec.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&passwordHash,
		&user.FirstName,
		&user.LastName,
		&user.EmailVerified,
		&user.Status,
		&user.Provider,
		&providerID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.PasswordHash = passwordHash.String
	if providerID.Valid {
		user.ProviderID = &providerID.String
	}

	roles, err := r.loadRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles

	return user, nil
}

func (r *userRepository) loadRoles(ctx context.Context, userID int64) ([]string, error) {
	query := `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`

	rows, err := r.exec.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}

	return roles, nil
}

func (r *userRepository) assignRoles(ctx context.Context, userID int64, roles []string) error {
	if len(roles) == 0 {
		return nil
	}

	query := `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = ANY($2)
	`

	result, err := r.exec.ExecContext(ctx, query, userID, pq.Array(roles))
	if err != nil {
		return fmt.Errorf("failed to assign roles: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected != int64(len(roles)) {
		return fmt.Errorf("unknown role in %v: %w", roles, ErrNotFound)
	}

	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
