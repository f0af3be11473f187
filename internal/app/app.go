package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"steamtracker/steam-api/internal/audit"
	"steamtracker/steam-api/internal/auth"
	"steamtracker/steam-api/internal/config"
	"steamtracker/steam-api/internal/httpserver"
	"steamtracker/steam-api/internal/migrations"
	"steamtracker/steam-api/internal/observability"
	"steamtracker/steam-api/internal/steam"
	"steamtracker/steam-api/internal/telemetry"
)

type App struct {
	cfg       config.Config
	log       *slog.Logger
	db        *sql.DB
	auth      *auth.Service
	server    *httpserver.Server
	telemetry func(context.Context) error
}

func New(cfg config.Config) (*App, error) {
	logger := observability.NewLogger(cfg.Log, nil)

	shutdownTelemetry, err := telemetry.Setup(context.Background(), cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	db, dialect, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	closeDB := func() {
		if db != nil {
			_ = db.Close()
		}
	}

	var userStore auth.UserStore
	var sessionStore auth.SessionStore
	switch {
	case db == nil:
		logger.Warn("no database configured, users and sessions are kept in memory")
		userStore = auth.NewInMemoryUserStore()
		sessionStore = auth.NewInMemorySessionStore()
	default:
		version, err := migrations.Up(context.Background(), db, dialect)
		if err != nil {
			closeDB()
			return nil, fmt.Errorf("migrate %s schema: %w", dialect, err)
		}
		logger.Info("database ready", "dialect", dialect, "schema_version", version)

		userStore, sessionStore, err = newStores(db, dialect)
		if err != nil {
			closeDB()
			return nil, err
		}
	}

	steamClient := steam.New(cfg.Steam, nil, logger)
	provider := auth.NewSteamOpenID(cfg.Steam.OpenIDEndpoint, cfg.Auth.ReturnURL, cfg.Auth.Realm)
	authService, err := auth.NewService(userStore, sessionStore, provider, steamClient, auth.ServiceConfig{
		SessionSecret:   cfg.Auth.SessionSecret,
		SessionTTL:      cfg.Auth.SessionTTL,
		ClaimedIDPrefix: provider.ClaimedIDPrefix(),
	}, logger)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("create auth service: %w", err)
	}

	deps := httpserver.Deps{
		Steam: steamClient,
		Auth:  authService,
		Audit: audit.NewLogger(cfg.AuditLogFile),
		Login: httpserver.LoginConfig{
			ReturnURL:       cfg.Auth.ReturnURL,
			SuccessRedirect: cfg.Auth.SuccessRedirect,
			FailureRedirect: cfg.Auth.FailureRedirect,
			CookieName:      cfg.Auth.CookieName,
			SecureCookie:    cfg.Auth.SecureCookie,
		},
		FrontendURL: cfg.FrontendURL,
		Logger:      logger,
	}
	if db != nil {
		deps.DB = db
		deps.Schema = schemaStatus{db: db, dialect: dialect}
	}

	return &App{
		cfg:       cfg,
		log:       logger,
		db:        db,
		auth:      authService,
		server:    httpserver.New(cfg.HTTP, deps),
		telemetry: shutdownTelemetry,
	}, nil
}

// openDatabase picks Postgres when DATABASE_URL is set, then SQLite at
// SQLITE_PATH. It returns a nil db when neither is configured.
func openDatabase(cfg config.Config) (*sql.DB, migrations.Dialect, error) {
	switch {
	case cfg.DatabaseURL != "":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("open database: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, "", fmt.Errorf("ping database: %w", err)
		}
		return db, migrations.Postgres, nil
	case cfg.SQLitePath != "":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, "", fmt.Errorf("mkdir sqlite dir: %w", err)
		}
		db, err := sql.Open("sqlite", cfg.SQLitePath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		if err != nil {
			return nil, "", fmt.Errorf("open sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, "", fmt.Errorf("ping sqlite: %w", err)
		}
		return db, migrations.SQLite, nil
	default:
		return nil, "", nil
	}
}

// schemaStatus reads the migration state of the open database for /readyz.
type schemaStatus struct {
	db      *sql.DB
	dialect migrations.Dialect
}

func (s schemaStatus) SchemaVersion(ctx context.Context) (uint, bool, error) {
	return migrations.Version(ctx, s.db, s.dialect)
}

func newStores(db *sql.DB, dialect migrations.Dialect) (auth.UserStore, auth.SessionStore, error) {
	if dialect == migrations.Postgres {
		users, err := auth.NewPostgresUserStore(db)
		if err != nil {
			return nil, nil, fmt.Errorf("create postgres user store: %w", err)
		}
		sessions, err := auth.NewPostgresSessionStore(db)
		if err != nil {
			return nil, nil, fmt.Errorf("create postgres session store: %w", err)
		}
		return users, sessions, nil
	}

	users, err := auth.NewSQLiteUserStore(db)
	if err != nil {
		return nil, nil, fmt.Errorf("create sqlite user store: %w", err)
	}
	sessions, err := auth.NewSQLiteSessionStore(db)
	if err != nil {
		return nil, nil, fmt.Errorf("create sqlite session store: %w", err)
	}
	return users, sessions, nil
}

func (a *App) Run(ctx context.Context) error {
	defer func() {
		if a.db != nil {
			_ = a.db.Close()
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.telemetry(flushCtx); err != nil {
			a.log.Warn("telemetry shutdown failed", "err", err)
		}
	}()

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go a.auth.RunCleanup(cleanupCtx, a.cfg.Auth.CleanupInterval)

	errCh := make(chan error, 1)

	go func() {
		a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)
		errCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	}
}
