package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/serenvoice/gateway/internal/auth"
	"github.com/serenvoice/gateway/internal/background"
	"github.com/serenvoice/gateway/internal/client"
	"github.com/serenvoice/gateway/internal/clock"
	"github.com/serenvoice/gateway/internal/config"
	"github.com/serenvoice/gateway/internal/database"
	"github.com/serenvoice/gateway/internal/handlers"
	middlewareCustom "github.com/serenvoice/gateway/internal/middleware"
	"github.com/serenvoice/gateway/internal/repositories"
	"github.com/serenvoice/gateway/internal/routes"
	"github.com/serenvoice/gateway/internal/services"
	pkghttp "github.com/serenvoice/gateway/pkg/http"
	pkglogger "github.com/serenvoice/gateway/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("attempt_store", cfg.Storage.Backend),
		slog.String("mail_provider", cfg.Mail.Provider))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	storage, err := openStorage(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialize attempt store", slog.Any("error", err))
		os.Exit(1)
	}
	defer storage.close()

	backend, err := client.New(client.Config{
		BaseURL:           cfg.Backend.URL,
		Timeout:           cfg.Backend.Timeout,
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
		Burst:             cfg.Backend.Burst,
	}, logger)
	if err != nil {
		logger.Error("failed to create backend client", slog.Any("error", err))
		os.Exit(1)
	}

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid TRUSTED_PROXIES", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	mailer, err := newMailer(ctx, cfg.Mail, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialize mailer", slog.Any("error", err))
		os.Exit(1)
	}

	clk := clock.New()
	auditLogger := pkglogger.NewAuditLogger(logger)

	registry := services.NewSessionRegistry(services.SessionRegistryConfig{
		IdleTimeout:    cfg.Session.IdleTimeout,
		WarningBefore:  cfg.Session.WarningBefore,
		TimeoutEnabled: cfg.Session.TimeoutEnabled,
		RemoteLogout:   backend.Logout,
	}, storage.store, clk, logger)

	authService := services.NewAuthService(backend, auth.NewTokenInspector(cfg.Backend.TokenSecret), clk, logger, auditLogger)
	contactService := services.NewContactService(mailer, logger, auditLogger)

	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	cookieSecret, err := sessionSecret(cfg.Cookie.Secret, logger)
	if err != nil {
		logger.Error("failed to create session secret", slog.Any("error", err))
		os.Exit(1)
	}
	cookieConfig := auth.CookieConfig{
		Name:     cfg.Cookie.Name,
		Domain:   cfg.Cookie.Domain,
		Secure:   cfg.Cookie.Secure,
		SameSite: strings.ToLower(cfg.Cookie.SameSite),
		MaxAge:   cfg.Cookie.MaxAge,
		Secret:   cookieSecret,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	routes.RegisterRoutes(router, routes.Handlers{
		Auth:    handlers.NewAuthHandler(authService, registry, cookieConfig, ipConfig, logger),
		Session: handlers.NewSessionHandler(logger),
		Contact: handlers.NewContactHandler(contactService, ipConfig, logger),
		Proxy:   handlers.NewProxyHandler(backend, ipConfig, auditLogger, logger),
		Health:  handlers.NewHealthHandler(storage.checks, registry.Len),
	}, routes.Options{
		Registry:       registry,
		Cookie:         cookieConfig,
		IPConfig:       ipConfig,
		IPRateLimit:    cfg.Server.IPRateLimit,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupManager := background.NewCleanupManager(registry, storage.expirer, cfg.Session.AnonymousTTL, cfg.Session.CleanupInterval, logger)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	// stop idle and lockout timers before the store goes away
	registry.CloseAll()

	logger.Info("server stopped gracefully")
}

// attemptStorage is the selected AttemptStore plus what main needs around it
type attemptStorage struct {
	store   services.AttemptStore
	expirer background.ExpiredDeleter // nil for redis, which expires keys itself
	checks  map[string]handlers.HealthChecker
	close   func()
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*attemptStorage, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		repo := repositories.NewAttemptStateRepository(db)
		return &attemptStorage{
			store:   repo,
			expirer: repo,
			checks:  map[string]handlers.HealthChecker{"database": db},
			close:   db.Close,
		}, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		repo := repositories.NewRedisAttemptRepository(rdb, cfg.Redis.KeyPrefix)
		if err := repo.HealthCheck(ctx); err != nil {
			_ = rdb.Close()
			return nil, err
		}
		logger.Info("redis connected", slog.String("addr", cfg.Redis.Addr))
		return &attemptStorage{
			store:  repo,
			checks: map[string]handlers.HealthChecker{"redis": repo},
			close:  func() { _ = rdb.Close() },
		}, nil

	default:
		repo := repositories.NewMemoryAttemptRepository(clock.New())
		return &attemptStorage{
			store:   repo,
			expirer: repo,
			close:   func() {},
		}, nil
	}
}

func newMailer(ctx context.Context, cfg config.MailConfig, logger *slog.Logger) (services.Mailer, error) {
	switch cfg.Provider {
	case "ses":
		return services.NewSESMailer(ctx, cfg.AWSRegion, cfg.From, cfg.To, logger)
	case "smtp":
		return services.NewSMTPMailer(services.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.From,
			To:   cfg.To,
		})
	case "log":
		return services.NewLogMailer(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

// sessionSecret returns the configured cookie signing key, or a random one
// when none is set. Sessions then do not survive a restart.
func sessionSecret(configured string, logger *slog.Logger) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	logger.Warn("SESSION_SECRET not set, using a random key for this process")
	return secret, nil
}
