package notification

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/bappy/identity-service/internal/domain"
)

// Mailer dispatches notifications over SMTP using gomail.
type Mailer struct {
	dialer      *gomail.Dialer
	from        string
	baseURL     string
	frontendURL string
}

// NewMailer creates an SMTP-backed dispatcher
func NewMailer(host string, port int, username, password, from, baseURL, frontendURL string) *Mailer {
	return &Mailer{
		dialer:      gomail.NewDialer(host, port, username, password),
		from:        from,
		baseURL:     baseURL,
		frontendURL: frontendURL,
	}
}

var _ Dispatcher = (*Mailer)(nil)

// SendVerification sends the email-verification link.
func (m *Mailer) SendVerification(user *domain.User, token string) error {
	verificationURL := fmt.Sprintf("%s/api/v1/auth/verify-email?token=%s", m.baseURL, token)

	body := fmt.Sprintf(
		"Hello %s,\r\n\r\n"+
			"Please verify your email address by following this link:\r\n\r\n%s\r\n\r\n"+
			"The link is valid for a limited time. If you did not create an account, ignore this message.\r\n",
		m.greetingName(user), verificationURL)

	return m.send(user.Email, "Verify Your Email Address", body)
}

// SendPasswordReset sends the password-reset link.
func (m *Mailer) SendPasswordReset(user *domain.User, token string) error {
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", m.frontendURL, token)

	body := fmt.Sprintf(
		"Hello %s,\r\n\r\n"+
			"A password reset was requested for your account. Follow this link to choose a new password:\r\n\r\n%s\r\n\r\n"+
			"If you did not request a reset, ignore this message and your password will remain unchanged.\r\n",
		m.greetingName(user), resetURL)

	return m.send(user.Email, "Reset Your Password", body)
}

// SendLoginAlert notifies the user of a new login.
func (m *Mailer) SendLoginAlert(user *domain.User, ip, userAgent string) error {
	body := fmt.Sprintf(
		"Hello %s,\r\n\r\n"+
			"A new login to your account was detected.\r\n\r\nIP address: %s\r\nClient: %s\r\n\r\n"+
			"If this was you, no action is needed. Otherwise, reset your password immediately.\r\n",
		m.greetingName(user), orUnknown(ip), orUnknown(userAgent))

	return m.send(user.Email, "New Login to Your Account", body)
}

func (m *Mailer) send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	return nil
}

func (m *Mailer) greetingName(user *domain.User) string {
	if user.FirstName != "" {
		return user.FirstName
	}
	return user.Email
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
