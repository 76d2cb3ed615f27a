package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bappy/identity-service/internal/domain"
)

// Codec failure kinds. Each is independently testable and callers can
// branch on them with errors.Is.
var (
	ErrTokenInvalidSignature = errors.New("token signature is invalid")
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenExpired          = errors.New("token is expired")
	ErrTokenUnsupported      = errors.New("token signing method is unsupported")
)

// TokenCodec signs and verifies access tokens. It is stateless: a pure
// function of its inputs and the configured secret, no I/O.
type TokenCodec struct {
	secret            []byte
	accessTokenExpiry time.Duration
}

// NewTokenCodec creates a new token codec
func NewTokenCodec(secret string, accessTokenExpiry time.Duration) *TokenCodec {
	return &TokenCodec{
		secret:            []byte(secret),
		accessTokenExpiry: accessTokenExpiry,
	}
}

// Sign produces a signed access token carrying the subject id, email and
// comma-joined roles, valid for the configured access token TTL.
func (c *TokenCodec) Sign(subject domain.AuthenticatedSubject) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   strconv.FormatInt(subject.ID, 10),
		"email": subject.Email,
		"roles": strings.Join(subject.Roles, ","),
		"iat":   now.Unix(),
		"exp":   now.Add(c.accessTokenExpiry).Unix(),
	})

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Verify parses and validates a token, returning its claims. Failure is
// one of ErrTokenInvalidSignature, ErrTokenMalformed, ErrTokenExpired or
// ErrTokenUnsupported.
func (c *TokenCodec) Verify(tokenString string) (*domain.TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", ErrTokenUnsupported, token.Header["alg"])
		}
		return c.secret, nil
	})

	if err != nil {
		return nil, classifyParseError(err)
	}

	if !token.Valid {
		return nil, ErrTokenInvalidSignature
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrTokenMalformed)
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}

	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: non-numeric subject", ErrTokenMalformed)
	}

	email, ok := claims["email"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing email", ErrTokenMalformed)
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: missing exp", ErrTokenMalformed)
	}

	iat, ok := claims["iat"].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: missing iat", ErrTokenMalformed)
	}

	var roles []string
	if joined, ok := claims["roles"].(string); ok && joined != "" {
		roles = strings.Split(joined, ",")
	}

	return &domain.TokenClaims{
		UserID: userID,
		Email:  email,
		Roles:  roles,
		Exp:    int64(exp),
		Iat:    int64(iat),
	}, nil
}

// AccessTokenExpirySeconds returns the access token TTL in seconds.
func (c *TokenCodec) AccessTokenExpirySeconds() int {
	return int(c.accessTokenExpiry.Seconds())
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, ErrTokenUnsupported):
		return fmt.Errorf("%w", ErrTokenUnsupported)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w", ErrTokenExpired)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w", ErrTokenInvalidSignature)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
