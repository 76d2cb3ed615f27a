// Package notification delivers best-effort user messages. Sends are
// fire-and-forget from the caller's point of view: the orchestrator runs
// them in goroutines and only logs failures.
package notification

import "github.com/bappy/identity-service/internal/domain"

// Dispatcher is the outbound message contract consumed by the auth core.
type Dispatcher interface {
	SendVerification(user *domain.User, token string) error
	SendPasswordReset(user *domain.User, token string) error
	SendLoginAlert(user *domain.User, ip, userAgent string) error
}
