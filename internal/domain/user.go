package domain

import "time"

// UserStatus is the lifecycle state of a user account.
type UserStatus string

const (
	StatusPendingVerification UserStatus = "PENDING_VERIFICATION"
	StatusActive              UserStatus = "ACTIVE"
	StatusLocked              UserStatus = "LOCKED"
	StatusDisabled            UserStatus = "DISABLED"
	StatusDeleted             UserStatus = "DELETED"
)

// AuthProvider identifies how an account authenticates.
type AuthProvider string

const (
	ProviderLocal    AuthProvider = "LOCAL"
	ProviderGoogle   AuthProvider = "GOOGLE"
	ProviderGithub   AuthProvider = "GITHUB"
	ProviderFacebook AuthProvider = "FACEBOOK"
)

// Predefined role names, seeded by migration.
const (
	RoleUser      = "ROLE_USER"
	RoleAdmin     = "ROLE_ADMIN"
	RoleModerator = "ROLE_MODERATOR"
)

// User represents a user in the system. PasswordHash is empty for pure
// social accounts. ProviderID is the provider-assigned external id, set
// only when Provider is not LOCAL.
type User struct {
	ID            int64        `json:"id" db:"id"`
	Email         string       `json:"email" db:"email"`
	PasswordHash  string       `json:"-" db:"password_hash"`
	FirstName     string       `json:"first_name" db:"first_name"`
	LastName      string       `json:"last_name" db:"last_name"`
	EmailVerified bool         `json:"email_verified" db:"email_verified"`
	Status        UserStatus   `json:"status" db:"status"`
	Provider      AuthProvider `json:"provider" db:"provider"`
	ProviderID    *string      `json:"provider_id" db:"provider_id"`
	Roles         []string     `json:"roles" db:"-"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}

// Role is immutable reference data seeded out-of-band.
type Role struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// AuthenticatedSubject is the principal used for access token issuance.
// It deliberately carries only what the codec signs.
type AuthenticatedSubject struct {
	ID    int64
	Email string
	Roles []string
}

// Subject returns the token-issuance principal for the user.
func (u *User) Subject() AuthenticatedSubject {
	return AuthenticatedSubject{
		ID:    u.ID,
		Email: u.Email,
		Roles: u.Roles,
	}
}
