package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bappy/identity-service/internal/domain"
	"github.com/bappy/identity-service/internal/dto"
	"github.com/bappy/identity-service/internal/repository"
)

// tokenRejectedMessage is the single external message for every token
// verification failure. Not-found, expired, revoked and consumed are
// indistinguishable to callers to avoid aiding token enumeration.
const tokenRejectedMessage = "invalid or expired token"

// respondError maps a service failure to an HTTP status and a stable
// machine-readable code.
func respondError(c *gin.Context, err error) {
	var exchangeErr *domain.OAuth2ExchangeError

	switch {
	case errors.Is(err, domain.ErrValidation):
		respond(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, domain.ErrEmailExists):
		respond(c, http.StatusConflict, "EMAIL_EXISTS", "email is already registered")
	case errors.Is(err, domain.ErrInvalidCredentials):
		respond(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
	case errors.Is(err, domain.ErrAccountDisabled):
		respond(c, http.StatusForbidden, "ACCOUNT_DISABLED", "account is disabled, please contact support")
	case errors.Is(err, domain.ErrAccountLocked):
		respond(c, http.StatusForbidden, "ACCOUNT_LOCKED", "account is locked, please contact support")
	case errors.Is(err, domain.ErrAccountNotActive):
		respond(c, http.StatusForbidden, "ACCOUNT_NOT_ACTIVE", "account is not active")
	case errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrProofTokenSpent),
		errors.Is(err, domain.ErrRefreshTokenExpired),
		errors.Is(err, domain.ErrRefreshTokenRevoked):
		respond(c, http.StatusUnauthorized, "INVALID_TOKEN", tokenRejectedMessage)
	case errors.Is(err, domain.ErrUnsupportedProvider):
		respond(c, http.StatusBadRequest, "UNSUPPORTED_PROVIDER", err.Error())
	case errors.Is(err, domain.ErrMissingEmail):
		respond(c, http.StatusBadRequest, "MISSING_EMAIL", err.Error())
	case errors.As(err, &exchangeErr):
		respond(c, http.StatusBadRequest, "OAUTH2_EXCHANGE_FAILED", "failed to exchange oauth2 token")
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, repository.ErrNotFound):
		respond(c, http.StatusNotFound, "NOT_FOUND", "resource not found")
	default:
		respond(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// respondTokenError collapses every refresh verification failure to the
// generic 401, including not-found, which respondError would otherwise
// surface as 404.
func respondTokenError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, domain.ErrRefreshTokenExpired) ||
		errors.Is(err, domain.ErrRefreshTokenRevoked) {
		respond(c, http.StatusUnauthorized, "INVALID_TOKEN", tokenRejectedMessage)
		return
	}
	respondError(c, err)
}

func respond(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Message: message,
	})
}

func respondBindingError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   http.StatusText(http.StatusBadRequest),
		Code:    "VALIDATION_ERROR",
		Message: err.Error(),
	})
}
