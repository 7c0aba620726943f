// Package app wires configuration, storage, cache, services, and the HTTP
// router into a runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freenoai/authd/internal/cache"
	httpapi "github.com/freenoai/authd/internal/http"
	"github.com/freenoai/authd/internal/provider"
	"github.com/freenoai/authd/internal/service"
	"github.com/freenoai/authd/internal/store"
	"github.com/freenoai/authd/internal/store/drivers/postgres"
	"github.com/freenoai/authd/pkg/jwtx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db    store.Store
	redis redis.UniversalClient
	cache *cache.Cache

	tokenService  *service.TokenService
	codeService   *service.VerificationService
	authService   *service.AuthService
	thesisService *service.ThesisService
	scenes        *provider.Scenes
	providers     *provider.Registry
	wechatMP      *provider.WeChatMP

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config, logger *slog.Logger) (*Application, error) {
	app := &Application{cfg: cfg, logger: logger}

	if cfg.JWTSecret == "" {
		if cfg.Env == "prod" {
			return nil, errors.New("JWT_SECRET is required in prod")
		}
		// Dev convenience only: sessions do not survive a restart.
		cfg.JWTSecret = jwtx.NewJTI()
		app.cfg.JWTSecret = cfg.JWTSecret
		logger.Warn("JWT_SECRET not set, generated an ephemeral secret")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	app.initCache()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"providers", app.providers.Enabled(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully stops the HTTP server and closes connections.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.redis.Close(); err != nil {
		app.logger.Error("error closing redis client", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	db, err := postgres.NewStore(app.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initCache() {
	app.redis = redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
	})
	app.cache = cache.New(app.redis, app.cfg.CachePrefix, app.cfg.CacheTTL, app.logger)
}

func (app *Application) initServices() {
	codec := jwtx.NewCodec([]byte(app.cfg.JWTSecret), app.cfg.Issuer, app.cfg.TokenLeeway)

	app.tokenService = &service.TokenService{
		Codec:      codec,
		Cache:      app.cache,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	}

	app.codeService = &service.VerificationService{
		Cache:        app.cache,
		Sender:       service.LogSender{},
		CodeTTL:      app.cfg.CodeTTL,
		SendInterval: app.cfg.CodeSendInterval,
	}

	app.wechatMP = provider.NewWeChatMP(app.cfg.WeChatMP)
	app.scenes = provider.NewScenes(app.wechatMP, app.cache, app.cfg.SceneTTL)

	app.providers = provider.NewRegistry(
		provider.NewEmailPassword(app.db.Users()),
		provider.NewPhoneCode(app.codeService),
		app.wechatMP,
		provider.NewWeChatMini(app.cfg.WeChatMini),
		provider.NewWeChatOpen(app.cfg.WeChatOpen),
		provider.NewApple(app.cfg.Apple),
		provider.NewGoogle(app.cfg.Google),
		provider.NewFacebook(app.cfg.Facebook),
		provider.NewGitHub(app.cfg.GitHub),
	)

	app.authService = &service.AuthService{
		Store:     app.db,
		Tokens:    app.tokenService,
		Codes:     app.codeService,
		Providers: app.providers,
	}

	app.thesisService = service.NewThesisService(app.db, app.cache, app.cfg.CheckerURL)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	router.AuthService = app.authService
	router.TokenService = app.tokenService
	router.CodeService = app.codeService
	router.ThesisService = app.thesisService
	router.Scenes = app.scenes
	router.WeChatMP = app.wechatMP
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
