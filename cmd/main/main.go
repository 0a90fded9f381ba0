package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gracegoods/server/src/auth"
	"github.com/gracegoods/server/src/cache"
	"github.com/gracegoods/server/src/config"
	"github.com/gracegoods/server/src/email"
	"github.com/gracegoods/server/src/logger"
	"github.com/gracegoods/server/src/middleware"
	"github.com/gracegoods/server/src/token"
)

func main() {
	_ = godotenv.Load()

	logger.Init(logger.Config{
		Env:   os.Getenv("APP_ENV"),
		Level: os.Getenv("LOG_LEVEL"),
	})
	defer logger.Sync()
	log := logger.L()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	log.Info("config loaded", zap.String("environment", cfg.Auth.Environment))

	store, err := cache.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer store.Close()
	log.Info("redis connected", zap.String("address", cfg.Redis.Address))

	codec, err := token.NewCodec(cfg.Auth.SessionSecret, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.SessionTTL)
	if err != nil {
		log.Fatal("failed to build token codec", zap.Error(err))
	}

	var oauthClient auth.OAuthClient
	if cfg.Auth.HasGoogleCredentials() {
		oauthClient = auth.NewGoogleClient(
			cfg.Auth.GoogleClientID,
			cfg.Auth.GoogleClientSecret,
			cfg.Auth.RedirectURL,
		)
		log.Info("google oauth configured", zap.String("redirect_url", cfg.Auth.RedirectURL))
	} else {
		log.Warn("google oauth credentials missing, login is disabled")
	}

	var notifier auth.Notifier = auth.NoopNotifier{}
	if mailer := email.NewMailer(&cfg.SMTP, logger.Named("email")); mailer != nil {
		notifier = mailer
		log.Info("smtp mailer configured", zap.String("host", cfg.SMTP.Host))
	}

	stateStore := auth.NewStateStore(store.Client(), cfg.Auth.StateTTL)
	userStore := auth.NewUserStore(store.Client())
	sessionStore := auth.NewSessionStore(store.Client())
	auditLog := auth.NewRedisAuditLog(store.Client(), logger.Named("audit"))

	service := auth.NewService(
		oauthClient,
		userStore,
		sessionStore,
		stateStore,
		auditLog,
		codec,
		notifier,
		logger.Named("auth"),
	)
	authHandler := auth.NewHandler(service, &cfg.Auth, store, auditLog, logger.Named("auth.http"))
	authMiddleware := middleware.NewAuthMiddleware(service, &cfg.Auth, logger.Named("middleware"))
	log.Info("authentication system initialized", zap.Int("admin_emails", len(cfg.Auth.AdminEmails)))

	if cfg.Auth.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		authRoutes := v1.Group("/auth")
		{
			authRoutes.GET("/login", authHandler.Login)
			authRoutes.GET("/callback", authHandler.Callback)
			authRoutes.GET("/logout", authHandler.Logout)
			authRoutes.POST("/logout", authHandler.Logout)
			authRoutes.GET("/user", authHandler.User)
			authRoutes.GET("/health", authHandler.Health)
		}

		admin := v1.Group("/admin")
		admin.Use(authMiddleware.RequireAdmin())
		{
			admin.GET("/audit", authHandler.AuditTrail)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()
	log.Info("server running", zap.String("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}
	log.Info("server exited")
}

func corsMiddleware() gin.HandlerFunc {
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	var allowedOrigins []string

	if allowedOriginsEnv != "" {
		allowedOrigins = strings.Split(allowedOriginsEnv, ",")
		for i := range allowedOrigins {
			allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
		}
	} else {
		allowedOrigins = []string{
			"http://localhost:3000",
			"http://localhost:3001",
		}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Requests without an Origin header (curl, health checks) pass
		// through untouched.
		if origin == "" {
			c.Next()
			return
		}

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin {
				allowed = true
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}
		if !allowed {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
