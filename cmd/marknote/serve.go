package main

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

	"github.com/d9705996/marknote/internal/account"
	marknoteapi "github.com/d9705996/marknote/internal/api"
	"github.com/d9705996/marknote/internal/api/handler"
	"github.com/d9705996/marknote/internal/api/middleware"
	"github.com/d9705996/marknote/internal/auth"
	"github.com/d9705996/marknote/internal/config"
	"github.com/d9705996/marknote/internal/db"
	"github.com/d9705996/marknote/internal/group"
	"github.com/d9705996/marknote/internal/health"
	"github.com/d9705996/marknote/internal/note"
	"github.com/d9705996/marknote/internal/oauth"
	"github.com/d9705996/marknote/internal/observability"
	"github.com/d9705996/marknote/internal/seed"
	"github.com/d9705996/marknote/internal/store"
	"github.com/d9705996/marknote/internal/version"
	"github.com/d9705996/marknote/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"gorm.io/gorm"
)

// process is the state shared by every subcommand: config, logger and an
// open, migrated database.
type process struct {
	cfg  *config.Config
	log  *slog.Logger
	obs  *observability.Provider
	db   *gorm.DB
	pool *pgxpool.Pool
}

func open(ctx context.Context) (*process, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// --- Observability -------------------------------------------------------
	obs, log, err := observability.New(ctx, &observability.Config{
		ServiceName:    "marknote",
		ServiceVersion: version.Version,
		Environment:    cfg.App.Env,
		LogLevel:       cfg.Log.Level,
		LogFormat:      cfg.Log.Format,
		OTLPEndpoint:   cfg.OTel.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}
	slog.SetDefault(log)

	// --- Database ------------------------------------------------------------
	// db.New opens the connection, runs migrations (AutoMigrate for SQLite,
	// golang-migrate for Postgres), and returns the GORM handle plus an
	// optional pgxpool (non-nil only for postgres, used by River).
	gormDB, pool, err := db.New(ctx, &cfg.DB)
	if err != nil {
		obs.Shutdown(context.Background())
		return nil, fmt.Errorf("open db: %w", err)
	}
	log.Info("database ready", "driver", cfg.DB.Driver)
	return &process{cfg: cfg, log: log, obs: obs, db: gormDB, pool: pool}, nil
}

func (rt *process) close() {
	if err := db.Close(rt.db); err != nil {
		rt.log.Error("close db", "err", err)
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
	rt.obs.Shutdown(context.Background())
}

func migrate(ctx context.Context) error {
	rt, err := open(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	if rt.pool != nil {
		if err := worker.MigrateRiver(ctx, rt.pool); err != nil {
			return fmt.Errorf("river migrations: %w", err)
		}
	}
	rt.log.Info("migrations applied")
	return nil
}

func purgeTrash(ctx context.Context, olderThan time.Duration) (int64, error) {
	rt, err := open(ctx)
	if err != nil {
		return 0, err
	}
	defer rt.close()
	notes := note.NewService(store.NewFiles(rt.db), store.NewGroups(rt.db), rt.log)
	return notes.PurgeExpired(ctx, olderThan)
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := open(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg, log := rt.cfg, rt.log
	log.Info("starting marknote", "version", version.Version, "commit", version.Commit, "db_driver", cfg.DB.Driver)

	// --- Services ------------------------------------------------------------
	files := store.NewFiles(rt.db)
	groups := store.NewGroups(rt.db)
	notes := note.NewService(files, groups, log)
	groupSvc := group.NewService(groups, log)
	accounts := account.NewService(store.NewUsers(rt.db), store.NewAccounts(rt.db), log)

	// --- Seed demo user ------------------------------------------------------
	if err := seed.EnsureDemoUser(ctx, accounts, notes, seed.DemoOptions{
		Email:    cfg.App.SeedDemoEmail,
		Password: cfg.App.SeedDemoPassword,
	}, log); err != nil {
		return fmt.Errorf("seed demo user: %w", err)
	}

	// --- Worker queue --------------------------------------------------------
	// River migrations only run when Postgres is available.
	if rt.pool != nil {
		if err := worker.MigrateRiver(ctx, rt.pool); err != nil {
			return fmt.Errorf("river migrations: %w", err)
		}
		log.Info("river migrations applied")
	}

	wq, err := worker.New(ctx, rt.pool, cfg.DB.Driver, worker.Options{
		Concurrency: cfg.Worker.Concurrency,
		Retention:   cfg.Trash.Retention,
		Purger:      notes,
	}, log)
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}
	if err := wq.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := wq.Stop(stopCtx); err != nil {
			log.Error("worker stop error", "err", err)
		}
	}()

	// --- HTTP routes ---------------------------------------------------------
	tokens := handler.TokenConfig{
		Secret:       cfg.JWT.Secret,
		AccessTTL:    cfg.JWT.AccessTTL,
		SecureCookie: cfg.App.Production(),
	}
	mux := http.NewServeMux()
	marknoteapi.RegisterRoutes(mux, marknoteapi.Handlers{
		Health: health.New(db.NewPinger(rt.db), cfg.DB.Driver),
		Auth:   handler.NewAuthHandler(accounts, auth.NewRefreshStore(rt.db, cfg.JWT.RefreshTTL), tokens, log),
		OAuth:  handler.NewOAuthHandler(oauth.NewRegistry(cfg.OAuth), accounts, tokens, cfg.App.ClientURL, log),
		Files:  handler.NewFileHandler(notes, log),
		Groups: handler.NewGroupHandler(groupSvc, log),
	}, cfg.JWT.Secret)
	// Prometheus metrics endpoint
	mux.Handle("GET /metrics", promhttp.Handler())

	// CORS must wrap everything so pre-flight requests never reach auth.
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.App.ClientURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      corsHandler.Handler(middleware.Logger(log)(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Start server --------------------------------------------------------
	log.Info("http server listening", "addr", srv.Addr, "client_url", cfg.App.ClientURL)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped cleanly")
	return nil
}
