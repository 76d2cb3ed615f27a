package domain

import "time"

// TokenClaims represents verified access token claims
type TokenClaims struct {
	UserID int64    `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	Exp    int64    `json:"exp"`
	Iat    int64    `json:"iat"`
}

// IsExpired checks if the token is expired
func (tc TokenClaims) IsExpired() bool {
	return time.Now().Unix() > tc.Exp
}

// RefreshToken is a persisted refresh token record. The opaque token
// itself is never stored; TokenHash holds its SHA-256 hex digest.
type RefreshToken struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	Revoked   bool      `json:"revoked" db:"revoked"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsExpired reports whether the record is past its expiry.
func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// ProofToken is a single-use, time-boxed token proving possession of an
// out-of-band channel. The same shape backs both the email-verification
// and password-reset ledgers.
type ProofToken struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	Consumed  bool      `json:"consumed" db:"consumed"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsValid reports whether the token can still be consumed.
func (pt *ProofToken) IsValid() bool {
	return !pt.Consumed && time.Now().Before(pt.ExpiresAt)
}
