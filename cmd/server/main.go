package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/gfranca/barberhub/internal/api"
	"github.com/gfranca/barberhub/internal/app"
	"github.com/gfranca/barberhub/internal/app/maintenance"
	iauth "github.com/gfranca/barberhub/internal/auth"
	"github.com/gfranca/barberhub/internal/auth/mfa"
	"github.com/gfranca/barberhub/internal/database"
	"github.com/gfranca/barberhub/internal/identity"
	"github.com/gfranca/barberhub/internal/services"
	"github.com/gfranca/barberhub/pkg/logger"
	"github.com/gfranca/barberhub/pkg/mail"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("barberhub-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	if err := ensureSecretsPresent(cfg); err != nil {
		return err
	}

	access, closeDB, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	mailer := initialiseMailer(cfg, log)

	jwtService, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	tempTokens, err := iauth.NewTempTokenService(cfg.Auth.TempTokenServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise temp token service: %w", err)
	}

	challenges, err := mfa.NewChallengeService(access, mailer, cfg.Auth.ChallengeServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise challenge service: %w", err)
	}

	registry, err := services.NewCredentialRegistry(access, nil, "BR")
	if err != nil {
		return fmt.Errorf("initialise credential registry: %w", err)
	}

	provider, err := initialiseIdentityClient(cfg, log)
	if err != nil {
		return err
	}

	authService, err := services.NewAuthService(access, registry, challenges, provider, jwtService, tempTokens, services.AuthConfig{
		Policy: cfg.Auth.PasswordPolicy(),
	})
	if err != nil {
		return fmt.Errorf("initialise auth service: %w", err)
	}

	var cleaner *maintenance.Cleaner
	if cfg.Maintenance.Enabled {
		cleaner = maintenance.NewCleaner(challenges, maintenance.WithChallengeSchedule(cfg.Maintenance.Schedule))
		if err := cleaner.Start(); err != nil {
			return fmt.Errorf("start maintenance jobs: %w", err)
		}
		defer func() {
			stopCtx := cleaner.Stop()
			if err := cleaner.RunOnce(stopCtx); err != nil {
				log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
			}
		}()
	}

	router, err := api.NewRouter(access, authService, jwtService)
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func ensureSecretsPresent(cfg *app.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Auth.JWT.Secret = strings.TrimSpace(cfg.Auth.JWT.Secret)
	if cfg.Auth.JWT.Secret == "" {
		return errors.New("auth.jwt.secret must be configured")
	}

	return nil
}

func initialiseDatabase(cfg *app.Config) (*database.Access, func(), error) {
	dbCfg := convertDatabaseConfig(cfg)

	manager, err := database.NewConnectionManager(dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	db, _ := manager.DB()
	if err := database.AutoMigrateAll(db); err != nil {
		return nil, nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	access, err := database.NewAccess(manager, database.RetryConfig{
		MaxRetries: cfg.Database.Retry.MaxRetries,
		BaseDelay:  cfg.Database.Retry.BaseDelay,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initialise resilient access: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	closeDB := func() {
		current, _ := manager.DB()
		sqlDB, err := current.DB()
		if err != nil {
			log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
			return
		}
		if err := sqlDB.Close(); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}

	return access, closeDB, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func initialiseMailer(cfg *app.Config, log *zap.Logger) mail.Mailer {
	if !cfg.Email.SMTP.Enabled {
		log.Warn("smtp disabled; MFA codes will not be delivered by email")
		return nil
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		log.Warn("smtp misconfigured; MFA codes will not be delivered by email", zap.Error(err))
		return nil
	}
	return mailer
}

func initialiseIdentityClient(cfg *app.Config, log *zap.Logger) (identity.Client, error) {
	if cfg.Identity.Stub {
		log.Warn("using in-memory identity provider stub; accounts will not persist")
		return identity.NewStubClient(), nil
	}

	client, err := identity.NewHTTPClient(cfg.Identity.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise identity client: %w", err)
	}
	return client, nil
}
