package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bappy/identity-service/internal/dto"
	"github.com/bappy/identity-service/internal/service"
)

const refreshCookieName = "refresh_token"

// refreshCookiePath scopes the cookie to the endpoints that read it.
const refreshCookiePath = "/api/v1/auth"

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Signup handles user registration
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.SignupRequest true "Signup request"
// @Success 201 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	result, err := h.authService.Signup(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setRefreshCookie(c, result)
	c.JSON(http.StatusCreated, result.AuthResponse)
}

// Login handles user login
// @Summary Login with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login request"
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondError(c, err)
		return
	}

	h.setRefreshCookie(c, result)
	c.JSON(http.StatusOK, result.AuthResponse)
}

// ExchangeOAuth2Token trades a redirect-carried access token for a full session pair
// @Summary Exchange OAuth2 token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.OAuth2TokenRequest true "OAuth2 token request"
// @Success 200 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/oauth2/token [post]
func (h *AuthHandler) ExchangeOAuth2Token(c *gin.Context) {
	var req dto.OAuth2TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	result, err := h.authService.ExchangeOAuth2Token(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setRefreshCookie(c, result)
	c.JSON(http.StatusOK, result.AuthResponse)
}

// Refresh handles token refresh. The refresh token is read from the
// httpOnly cookie when present, falling back to the JSON body for
// non-browser clients.
// @Summary Refresh tokens
// @Tags auth
// @Produce json
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken := h.refreshTokenFromRequest(c)
	if refreshToken == "" {
		respond(c, http.StatusBadRequest, "VALIDATION_ERROR", "refresh token not provided")
		return
	}

	result, err := h.authService.RefreshToken(c.Request.Context(), refreshToken)
	if err != nil {
		respondTokenError(c, err)
		return
	}

	h.setRefreshCookie(c, result)
	c.JSON(http.StatusOK, result.AuthResponse)
}

// Logout revokes the refresh token and clears the cookie
// @Summary Logout
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken := h.refreshTokenFromRequest(c)

	if err := h.authService.Logout(c.Request.Context(), refreshToken); err != nil {
		respondError(c, err)
		return
	}

	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", true, true)
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "logged out successfully"})
}

// VerifyEmail consumes an email verification token
// @Summary Verify email address
// @Tags auth
// @Produce json
// @Param token query string true "Verification token"
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/verify-email [get]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		respond(c, http.StatusBadRequest, "VALIDATION_ERROR", "token query parameter is required")
		return
	}

	if err := h.authService.VerifyEmail(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "email verified successfully"})
}

// ForgotPassword requests a password reset link
// @Summary Request password reset
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.ForgotPasswordRequest true "Forgot password request"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "password reset email sent"})
}

// ResetPassword sets a new password using a reset token
// @Summary Reset password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.ResetPasswordRequest true "Reset password request"
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "password reset successfully"})
}

// GetMe returns the current user's profile
// @Summary Get current user profile
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		respond(c, http.StatusUnauthorized, "UNAUTHORIZED", "user id not found in context")
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID.(int64))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, result *service.AuthResult) {
	c.SetCookie(refreshCookieName, result.RefreshToken, result.RefreshExpiresIn, refreshCookiePath, "", true, true)
}

func (h *AuthHandler) refreshTokenFromRequest(c *gin.Context) string {
	if token, err := c.Cookie(refreshCookieName); err == nil && token != "" {
		return token
	}

	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		return req.RefreshToken
	}

	return ""
}
