package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/bappy/identity-service/internal/config"
	"github.com/bappy/identity-service/internal/handler"
	"github.com/bappy/identity-service/internal/notification"
	"github.com/bappy/identity-service/internal/repository"
	"github.com/bappy/identity-service/internal/service"
	"github.com/bappy/identity-service/internal/utils"
	"github.com/bappy/identity-service/pkg/observability"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra   Infrastructure
	config  *config.Config
	router  *gin.Engine
	server  *http.Server
	sweeper *service.Sweeper
}

func NewApp(infra Infrastructure, cfg *config.Config) *App {
	repos := repository.NewRepositories(infra.Postgres())

	codec := utils.NewTokenCodec(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry.Duration)

	refreshTokens := service.NewTokenService(repos.RefreshToken, cfg.Tokens.RefreshExpiry.Duration)
	verificationTokens := service.NewProofTokenService(repos.EmailVerification, cfg.Tokens.VerificationExpiry.Duration)
	resetTokens := service.NewProofTokenService(repos.PasswordReset, cfg.Tokens.PasswordResetExpiry.Duration)

	blacklistService := service.NewTokenBlacklistService(infra.Redis())
	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra)

	mailer := notification.NewMailer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
		cfg.SMTP.From,
		cfg.App.BaseURL,
		cfg.App.FrontendURL,
	)

	authService := service.NewAuthService(
		repos,
		codec,
		refreshTokens,
		verificationTokens,
		resetTokens,
		blacklistService,
		mailer,
		infra.Logger(),
		cfg.Security.BCryptCost,
		cfg.Tokens.OAuth2ExchangeBlacklist.Duration,
	)

	resolver := service.NewIdentityResolver(repos.User, infra.Logger())

	authHandler := handler.NewAuthHandler(authService)
	oauth2Handler := handler.NewOAuth2Handler(resolver, codec, cfg.App.FrontendURL, infra.Logger())

	sweeper := service.NewSweeper(
		refreshTokens,
		verificationTokens,
		resetTokens,
		cfg.Tokens.SweepInterval.Duration,
		infra.Logger(),
	)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("identity-service"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, authHandler, oauth2Handler, authService, rateLimiter, healthChecker, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:   infra,
		config:  cfg,
		router:  router,
		server:  srv,
		sweeper: sweeper,
	}
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	oauth2Handler *handler.OAuth2Handler,
	authService service.AuthService,
	rateLimiter *service.RateLimiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	rateLimit := handler.RateLimitMiddleware(
		rateLimiter,
		cfg.Security.RateLimitRequests,
		cfg.Security.RateLimitWindow.Duration,
		handler.IPBasedKey,
	)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/signup", rateLimit, authHandler.Signup)
			auth.POST("/login", rateLimit, authHandler.Login)
			auth.POST("/oauth2/token", rateLimit, authHandler.ExchangeOAuth2Token)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/verify-email", authHandler.VerifyEmail)
			auth.POST("/forgot-password", rateLimit, authHandler.ForgotPassword)
			auth.POST("/reset-password", rateLimit, authHandler.ResetPassword)
			auth.GET("/me", handler.AuthMiddleware(authService), authHandler.GetMe)
		}

		oauth2 := api.Group("/oauth2")
		{
			oauth2.POST("/callback/:provider", oauth2Handler.Callback)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go a.sweeper.Run(sweepCtx)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
