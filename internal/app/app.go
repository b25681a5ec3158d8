package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/statelink/statelink/internal/config"
	"github.com/statelink/statelink/internal/httpserver"
	"github.com/statelink/statelink/internal/httpserver/deps"
	"github.com/statelink/statelink/internal/identity"
	"github.com/statelink/statelink/internal/keygen"
	"github.com/statelink/statelink/internal/logger"
	"github.com/statelink/statelink/internal/migrations"
	"github.com/statelink/statelink/internal/permissions"
	"github.com/statelink/statelink/internal/store/postgres"
	"github.com/statelink/statelink/internal/version"
)

type App struct {
	cfg    *config.Config
	logger logger.Logger
	server *httpserver.Server
	pool   *pgxpool.Pool
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Tenant configuration is validated up front: bad table identifiers
	// or sort orders must never reach query building.
	tenants, err := config.LoadTenants(cfg.TenantsFile)
	if err != nil {
		loggerClient.Errorf("Failed to load tenant configuration: %v", err)
		os.Exit(1)
	}
	loggerClient.Infof("Loaded tenants: %v", tenants.Names())

	// Connect to Postgres early - fail fast if unavailable
	pool, err := postgres.Connect(postgres.ConnectOptions{
		URL:            cfg.DatabaseURL,
		PoolMaxConns:   cfg.PoolMaxConns,
		ConnectTimeout: cfg.ConnectTimeout,
		RetryInterval:  cfg.RetryInterval,
		MaxWait:        cfg.MaxWait,
		PingTimeout:    cfg.PingTimeout,
		WarnThreshold:  cfg.WarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Postgres: %v", err)
		os.Exit(1)
	}

	if cfg.Migrate {
		if err := migrations.Up(cfg.DatabaseURL, loggerClient); err != nil {
			loggerClient.Errorf("Failed to migrate database: %v", err)
			os.Exit(1)
		}
	}

	store := postgres.NewStore(pool, keygen.New(), loggerClient)

	d := deps.Deps{
		Logger:               loggerClient,
		StartTime:            time.Now(),
		Version:              version.Version,
		Commit:               version.Commit,
		BuildDate:            version.BuildDate,
		GoVersion:            version.GoVersion,
		Store:                store,
		Tenants:              tenants,
		TenantHeader:         cfg.TenantHeader,
		Identity:             identity.New(cfg.AuthHeader),
		Permissions:          permissions.NewReader(),
		AllowPublicBookmarks: cfg.AllowPublicBookmarks,
		AllowedCIDRS:         cfg.AllowedCIDRS,
		TrustProxy:           cfg.TrustProxy,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:    cfg,
		logger: loggerClient,
		server: server,
		pool:   pool,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting statelink v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("statelink %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.pool != nil {
		a.pool.Close()
		a.logger.Info("✅ Postgres pool closed cleanly")
	}

	a.logger.Info("✅ statelink stopped cleanly")
	return nil
}
