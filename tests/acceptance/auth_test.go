package acceptance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bappy/identity-service/internal/dto"
)

func (s *Suite) signup(email, password string) *http.Response {
	reqBody := dto.SignupRequest{
		Email:     email,
		Password:  password,
		FirstName: "Test",
		LastName:  "User",
	}
	body, _ := json.Marshal(reqBody)

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/signup",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	return resp
}

func (s *Suite) verificationTokenFor(email string) string {
	var token string
	err := s.Postgres.DB.QueryRow(`
		SELECT t.token FROM email_verification_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE LOWER(u.email) = LOWER($1) AND NOT t.consumed
		ORDER BY t.id DESC LIMIT 1`, email).Scan(&token)
	s.Require().NoError(err, "Should find a live verification token for %s", email)
	return token
}

func (s *Suite) resetTokenFor(email string) string {
	var token string
	err := s.Postgres.DB.QueryRow(`
		SELECT t.token FROM password_reset_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE LOWER(u.email) = LOWER($1) AND NOT t.consumed
		ORDER BY t.id DESC LIMIT 1`, email).Scan(&token)
	s.Require().NoError(err, "Should find a live reset token for %s", email)
	return token
}

func (s *Suite) TestSignup_Success() {
	resp := s.signup("test@example.com", "Password123")
	defer resp.Body.Close()

	s.Equal(http.StatusCreated, resp.StatusCode)

	var authResp dto.AuthResponse
	err := json.NewDecoder(resp.Body).Decode(&authResp)
	s.Require().NoError(err)

	s.NotEmpty(authResp.AccessToken)
	s.NotEmpty(authResp.RefreshToken)
	s.Equal("Bearer", authResp.TokenType)
	s.NotZero(authResp.ExpiresIn)
	s.Equal("test@example.com", authResp.User.Email)
	s.Equal("PENDING_VERIFICATION", authResp.User.Status)
	s.False(authResp.User.EmailVerified)
	s.NotZero(authResp.User.ID)

	cookies := resp.Cookies()
	s.NotEmpty(cookies, "Should have refresh token cookie")
}

func (s *Suite) TestSignup_DuplicateEmail() {
	resp1 := s.signup("duplicate@example.com", "Password123")
	resp1.Body.Close()

	resp2 := s.signup("Duplicate@example.com", "Password123")
	defer resp2.Body.Close()

	s.Equal(http.StatusConflict, resp2.StatusCode)

	var errResp dto.ErrorResponse
	json.NewDecoder(resp2.Body).Decode(&errResp)
	s.Equal("EMAIL_EXISTS", errResp.Code)
}

func (s *Suite) TestSignup_InvalidEmail() {
	resp := s.signup("invalid-email", "Password123")
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestSignup_WeakPassword() {
	resp := s.signup("test@example.com", "weak")
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestLogin_Success() {
	registerResp := s.signup("login@example.com", "Password123")
	registerResp.Body.Close()

	loginReq := dto.LoginRequest{
		Email:    "login@example.com",
		Password: "Password123",
	}
	body, _ := json.Marshal(loginReq)

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/login",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var authResp dto.AuthResponse
	err = json.NewDecoder(resp.Body).Decode(&authResp)
	s.Require().NoError(err)

	s.NotEmpty(authResp.AccessToken)
	s.Equal("Bearer", authResp.TokenType)
	s.Equal("login@example.com", authResp.User.Email)

	cookies := resp.Cookies()
	s.NotEmpty(cookies, "Should have refresh token cookie")
}

func (s *Suite) TestLogin_WrongPassword() {
	registerResp := s.signup("wrongpass@example.com", "CorrectPassword123")
	registerResp.Body.Close()

	loginReq := dto.LoginRequest{
		Email:    "wrongpass@example.com",
		Password: "WrongPassword123",
	}
	body, _ := json.Marshal(loginReq)

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/login",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	var errResp dto.ErrorResponse
	json.NewDecoder(resp.Body).Decode(&errResp)
	s.Equal("INVALID_CREDENTIALS", errResp.Code)
}

func (s *Suite) TestLogin_UnknownEmail() {
	loginReq := dto.LoginRequest{
		Email:    "nonexistent@example.com",
		Password: "Password123",
	}
	body, _ := json.Marshal(loginReq)

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/login",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestGetMe_Success() {
	registerResp := s.signup("getme@example.com", "Password123")
	defer registerResp.Body.Close()

	var authResp dto.AuthResponse
	json.NewDecoder(registerResp.Body).Decode(&authResp)

	req, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/auth/me", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", authResp.AccessToken))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var userResp dto.UserResponse
	err = json.NewDecoder(resp.Body).Decode(&userResp)
	s.Require().NoError(err)

	s.NotZero(userResp.ID)
	s.Equal("getme@example.com", userResp.Email)
	s.Equal("Test", userResp.FirstName)
	s.Equal("LOCAL", userResp.Provider)
	s.Contains(userResp.Roles, "ROLE_USER")
	s.NotEmpty(userResp.CreatedAt)
	s.False(userResp.EmailVerified)
}

func (s *Suite) TestGetMe_NoToken() {
	req, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/auth/me", nil)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestGetMe_InvalidToken() {
	req, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestRefresh_Success() {
	registerResp := s.signup("refresh@example.com", "Password123")
	defer registerResp.Body.Close()

	cookies := registerResp.Cookies()
	s.Require().NotEmpty(cookies)

	req, _ := http.NewRequest("POST", s.BaseURL+"/api/v1/auth/refresh", nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var authResp dto.AuthResponse
	err = json.NewDecoder(resp.Body).Decode(&authResp)
	s.Require().NoError(err)

	s.NotEmpty(authResp.AccessToken)
	s.Equal("Bearer", authResp.TokenType)

	// The presented token is single-use
	reuse, _ := http.NewRequest("POST", s.BaseURL+"/api/v1/auth/refresh", nil)
	for _, cookie := range cookies {
		reuse.AddCookie(cookie)
	}
	reuseResp, err := http.DefaultClient.Do(reuse)
	s.Require().NoError(err)
	defer reuseResp.Body.Close()

	s.Equal(http.StatusUnauthorized, reuseResp.StatusCode)
}

func (s *Suite) TestRefresh_JSONBody() {
	registerResp := s.signup("refreshbody@example.com", "Password123")
	defer registerResp.Body.Close()

	var authResp dto.AuthResponse
	json.NewDecoder(registerResp.Body).Decode(&authResp)
	s.Require().NotEmpty(authResp.RefreshToken)

	body, _ := json.Marshal(dto.RefreshTokenRequest{RefreshToken: authResp.RefreshToken})
	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/refresh",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *Suite) TestRefresh_NoToken() {
	req, _ := http.NewRequest("POST", s.BaseURL+"/api/v1/auth/refresh", nil)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestLogout_Success() {
	registerResp := s.signup("logout@example.com", "Password123")
	defer registerResp.Body.Close()

	cookies := registerResp.Cookies()
	s.Require().NotEmpty(cookies)

	req, _ := http.NewRequest("POST", s.BaseURL+"/api/v1/auth/logout", nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var successResp dto.SuccessResponse
	json.NewDecoder(resp.Body).Decode(&successResp)
	s.Equal("logged out successfully", successResp.Message)

	// The revoked session cannot be refreshed
	refreshReq, _ := http.NewRequest("POST", s.BaseURL+"/api/v1/auth/refresh", nil)
	for _, cookie := range cookies {
		refreshReq.AddCookie(cookie)
	}
	refreshResp, err := http.DefaultClient.Do(refreshReq)
	s.Require().NoError(err)
	defer refreshResp.Body.Close()

	s.Equal(http.StatusUnauthorized, refreshResp.StatusCode)
}

func (s *Suite) TestVerifyEmail_Success() {
	registerResp := s.signup("verify@example.com", "Password123")
	defer registerResp.Body.Close()

	var authResp dto.AuthResponse
	json.NewDecoder(registerResp.Body).Decode(&authResp)

	token := s.verificationTokenFor("verify@example.com")

	resp, err := http.Get(s.BaseURL + "/api/v1/auth/verify-email?token=" + token)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	// The account is now active
	meReq, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/auth/me", nil)
	meReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", authResp.AccessToken))
	meResp, err := http.DefaultClient.Do(meReq)
	s.Require().NoError(err)
	defer meResp.Body.Close()

	var userResp dto.UserResponse
	json.NewDecoder(meResp.Body).Decode(&userResp)
	s.True(userResp.EmailVerified)
	s.Equal("ACTIVE", userResp.Status)

	// Single-use
	resp2, err := http.Get(s.BaseURL + "/api/v1/auth/verify-email?token=" + token)
	s.Require().NoError(err)
	defer resp2.Body.Close()

	s.Equal(http.StatusUnauthorized, resp2.StatusCode)
}

func (s *Suite) TestVerifyEmail_UnknownToken() {
	resp, err := http.Get(s.BaseURL + "/api/v1/auth/verify-email?token=never-issued")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestForgotPassword_UnknownEmail() {
	body, _ := json.Marshal(dto.ForgotPasswordRequest{Email: "nobody@example.com"})

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/forgot-password",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *Suite) TestResetPassword_Flow() {
	registerResp := s.signup("reset@example.com", "OldPassword123")
	defer registerResp.Body.Close()

	forgotBody, _ := json.Marshal(dto.ForgotPasswordRequest{Email: "reset@example.com"})
	forgotResp, err := http.Post(
		s.BaseURL+"/api/v1/auth/forgot-password",
		"application/json",
		bytes.NewBuffer(forgotBody),
	)
	s.Require().NoError(err)
	defer forgotResp.Body.Close()
	s.Equal(http.StatusOK, forgotResp.StatusCode)

	token := s.resetTokenFor("reset@example.com")

	resetBody, _ := json.Marshal(dto.ResetPasswordRequest{
		Token:       token,
		NewPassword: "NewPassword123",
	})
	resetResp, err := http.Post(
		s.BaseURL+"/api/v1/auth/reset-password",
		"application/json",
		bytes.NewBuffer(resetBody),
	)
	s.Require().NoError(err)
	defer resetResp.Body.Close()
	s.Equal(http.StatusOK, resetResp.StatusCode)

	// The old password is dead, the new one works
	oldLogin, _ := json.Marshal(dto.LoginRequest{Email: "reset@example.com", Password: "OldPassword123"})
	oldResp, err := http.Post(s.BaseURL+"/api/v1/auth/login", "application/json", bytes.NewBuffer(oldLogin))
	s.Require().NoError(err)
	defer oldResp.Body.Close()
	s.Equal(http.StatusUnauthorized, oldResp.StatusCode)

	newLogin, _ := json.Marshal(dto.LoginRequest{Email: "reset@example.com", Password: "NewPassword123"})
	newResp, err := http.Post(s.BaseURL+"/api/v1/auth/login", "application/json", bytes.NewBuffer(newLogin))
	s.Require().NoError(err)
	defer newResp.Body.Close()
	s.Equal(http.StatusOK, newResp.StatusCode)

	// The consumed token is single-use
	againBody, _ := json.Marshal(dto.ResetPasswordRequest{
		Token:       token,
		NewPassword: "AnotherPassword123",
	})
	againResp, err := http.Post(
		s.BaseURL+"/api/v1/auth/reset-password",
		"application/json",
		bytes.NewBuffer(againBody),
	)
	s.Require().NoError(err)
	defer againResp.Body.Close()
	s.Equal(http.StatusUnauthorized, againResp.StatusCode)
}

func (s *Suite) TestResetPassword_RevokesSessions() {
	registerResp := s.signup("resetsession@example.com", "OldPassword123")
	defer registerResp.Body.Close()

	cookies := registerResp.Cookies()
	s.Require().NotEmpty(cookies)

	forgotBody, _ := json.Marshal(dto.ForgotPasswordRequest{Email: "resetsession@example.com"})
	forgotResp, err := http.Post(
		s.BaseURL+"/api/v1/auth/forgot-password",
		"application/json",
		bytes.NewBuffer(forgotBody),
	)
	s.Require().NoError(err)
	forgotResp.Body.Close()

	resetBody, _ := json.Marshal(dto.ResetPasswordRequest{
		Token:       s.resetTokenFor("resetsession@example.com"),
		NewPassword: "NewPassword123",
	})
	resetResp, err := http.Post(
		s.BaseURL+"/api/v1/auth/reset-password",
		"application/json",
		bytes.NewBuffer(resetBody),
	)
	s.Require().NoError(err)
	resetResp.Body.Close()

	// The pre-reset session died with the old password
	req, _ := http.NewRequest("POST", s.BaseURL+"/api/v1/auth/refresh", nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestCompleteFlow() {
	email := "complete@example.com"
	password := "Password123"

	registerResp := s.signup(email, password)
	defer registerResp.Body.Close()
	s.Equal(http.StatusCreated, registerResp.StatusCode)

	var authResp dto.AuthResponse
	json.NewDecoder(registerResp.Body).Decode(&authResp)
	accessToken := authResp.AccessToken

	verifyResp, err := http.Get(s.BaseURL + "/api/v1/auth/verify-email?token=" + s.verificationTokenFor(email))
	s.Require().NoError(err)
	verifyResp.Body.Close()
	s.Equal(http.StatusOK, verifyResp.StatusCode)

	req, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/auth/me", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))
	meResp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer meResp.Body.Close()
	s.Equal(http.StatusOK, meResp.StatusCode)

	cookies := registerResp.Cookies()
	refreshReq, _ := http.NewRequest("POST", s.BaseURL+"/api/v1/auth/refresh", nil)
	for _, cookie := range cookies {
		refreshReq.AddCookie(cookie)
	}
	refreshResp, err := http.DefaultClient.Do(refreshReq)
	s.Require().NoError(err)
	defer refreshResp.Body.Close()
	s.Equal(http.StatusOK, refreshResp.StatusCode)

	var newAuthResp dto.AuthResponse
	json.NewDecoder(refreshResp.Body).Decode(&newAuthResp)

	logoutBody, _ := json.Marshal(dto.RefreshTokenRequest{RefreshToken: newAuthResp.RefreshToken})
	logoutReq, _ := http.NewRequest("POST", s.BaseURL+"/api/v1/auth/logout", bytes.NewBuffer(logoutBody))
	logoutReq.Header.Set("Content-Type", "application/json")
	logoutResp, err := http.DefaultClient.Do(logoutReq)
	s.Require().NoError(err)
	defer logoutResp.Body.Close()
	s.Equal(http.StatusOK, logoutResp.StatusCode)
}
