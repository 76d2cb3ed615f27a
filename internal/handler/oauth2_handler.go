package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bappy/identity-service/internal/dto"
	"github.com/bappy/identity-service/internal/service"
	"github.com/bappy/identity-service/internal/utils"
)

// OAuth2Handler completes the provider flow: it resolves the delivered
// profile to a user and redirects the browser to the frontend with an
// access token as a query parameter. The client then trades that token
// for a full session pair via the exchange endpoint.
type OAuth2Handler struct {
	resolver    *service.IdentityResolver
	codec       *utils.TokenCodec
	frontendURL string
	logger      *zap.Logger
}

// NewOAuth2Handler creates a new OAuth2 callback handler
func NewOAuth2Handler(resolver *service.IdentityResolver, codec *utils.TokenCodec, frontendURL string, logger *zap.Logger) *OAuth2Handler {
	return &OAuth2Handler{
		resolver:    resolver,
		codec:       codec,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// Callback handles a provider success callback
// @Summary Complete an OAuth2 login
// @Tags oauth2
// @Accept json
// @Param provider path string true "Provider name (google, github, facebook)"
// @Param request body dto.OAuth2CallbackRequest true "Provider profile attributes"
// @Success 302
// @Router /oauth2/callback/{provider} [post]
func (h *OAuth2Handler) Callback(c *gin.Context) {
	provider := c.Param("provider")

	var req dto.OAuth2CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.redirectWithError(c, "invalid_request")
		return
	}

	user, err := h.resolver.Resolve(c.Request.Context(), provider, req.Attributes)
	if err != nil {
		h.logger.Warn("OAuth2 callback failed",
			zap.String("provider", provider),
			zap.Error(err),
		)
		h.redirectWithError(c, "authentication_failed")
		return
	}

	token, err := h.codec.Sign(user.Subject())
	if err != nil {
		h.logger.Error("Failed to sign oauth2 redirect token", zap.Error(err))
		h.redirectWithError(c, "authentication_failed")
		return
	}

	c.Redirect(http.StatusFound, h.frontendURL+"/oauth2/redirect?token="+url.QueryEscape(token))
}

func (h *OAuth2Handler) redirectWithError(c *gin.Context, code string) {
	c.Redirect(http.StatusFound, h.frontendURL+"/oauth2/redirect?error="+url.QueryEscape(code))
}
