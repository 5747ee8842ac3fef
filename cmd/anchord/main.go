// Command anchord polls the tracked accounts, publishes their posts to the
// record store, anchors each post's content id and patches the receipts back.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/tweet-anchoring/internal/anchor"
	"github.com/tbourn/tweet-anchoring/internal/config"
	"github.com/tbourn/tweet-anchoring/internal/cursor"
	httpapi "github.com/tbourn/tweet-anchoring/internal/http"
	"github.com/tbourn/tweet-anchoring/internal/observability"
	"github.com/tbourn/tweet-anchoring/internal/pipeline"
	"github.com/tbourn/tweet-anchoring/internal/recordstore"
	"github.com/tbourn/tweet-anchoring/internal/repo"
	"github.com/tbourn/tweet-anchoring/internal/sysutil"
	"github.com/tbourn/tweet-anchoring/internal/timeline"
)

// version is set at build time with -ldflags "-X main.version=...".
var version string

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("anchord exited")
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ver := sysutil.FirstNonEmpty(version, os.Getenv("ANCHORD_VERSION"), "dev")
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName, ver, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, ver)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	accounts := cfg.Pipeline.Accounts
	timeout := cfg.Pipeline.RequestTimeout

	store := recordstore.NewClient(cfg.Kinto.Server, cfg.Kinto.Auth, cfg.Kinto.Bucket, cfg.Kinto.MaxBatch, timeout)
	if err := store.Provision(ctx, accounts); err != nil {
		return fmt.Errorf("provision record store: %w", err)
	}

	cursors, closeCursors, err := openCursorStore(cfg.Cursor)
	if err != nil {
		return err
	}
	defer closeCursors()

	db, err := openLedger(cfg.DBPath)
	if err != nil {
		return err
	}
	var (
		ledger  pipeline.Ledger
		journal pipeline.Journal
	)
	if db != nil {
		ledger = &repo.Ledger{DB: db}
		journal = &repo.Journal{DB: db}
		defer func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}()
	}

	policy, err := pipeline.ParsePolicy(cfg.Pipeline.BatchPolicy)
	if err != nil {
		return err
	}
	cycle := &pipeline.Cycle{
		Timeline: timeline.NewClient(cfg.Twitter.TimelineURL, cfg.Twitter.BearerToken, cfg.Twitter.TimelineCount, timeout),
		Store:    store,
		Reconciler: &pipeline.Reconciler{
			Anchors:     anchor.NewClient(cfg.Woleet.Server, cfg.Woleet.BearerToken, cfg.Woleet.RPS, cfg.Woleet.Burst, timeout),
			Ledger:      ledger,
			Concurrency: cfg.Pipeline.AnchorConcurrency,
		},
		Cursors:      cursors,
		Policy:       policy,
		PatchTimeout: timeout,
	}
	sched := pipeline.NewScheduler(cycle, accounts, cursors, journal, pipeline.SchedulerConfig{
		Interval:     cfg.Pipeline.PollInterval,
		CycleTimeout: cfg.Pipeline.CycleTimeout,
		MaxParallel:  cfg.Pipeline.MaxParallel,
	})

	var srv *http.Server
	if cfg.Admin.Enabled {
		gin.SetMode(cfg.Admin.GinMode)
		engine := gin.New()
		httpapi.RegisterRoutes(engine, db, sched, accounts, cfg)
		srv = &http.Server{
			Addr:              net.JoinHostPort("", cfg.Admin.Port),
			Handler:           engine,
			ReadHeaderTimeout: cfg.Admin.ReadHeaderTimeout,
			IdleTimeout:       cfg.Admin.IdleTimeout,
		}
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("admin server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("admin server exited")
				stop()
			}
		}()
	}

	log.Info().
		Strs("accounts", accounts).
		Dur("interval", cfg.Pipeline.PollInterval).
		Str("policy", string(policy)).
		Str("cursor_backend", cfg.Cursor.Backend).
		Bool("ledger", db != nil).
		Msg("anchord started")

	sched.Run(ctx)
	log.Info().Msg("shutting down")

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("admin server shutdown")
		}
	}
	return nil
}

func openCursorStore(cfg config.CursorConfig) (cursor.Store, func(), error) {
	if cfg.Backend != config.CursorRedis {
		return cursor.NewMemoryStore(), func() {}, nil
	}
	rs, err := cursor.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open redis cursor store: %w", err)
	}
	return rs, func() { _ = rs.Close() }, nil
}

// openLedger returns nil when path is empty.
func openLedger(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, nil
	}
	db, err := repo.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}
