package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/inkeep/agents/internal/api"
	"github.com/inkeep/agents/internal/config"
	"github.com/inkeep/agents/internal/dolt"
	"github.com/inkeep/agents/internal/logging"
	"github.com/inkeep/agents/internal/runstore"
	"github.com/inkeep/agents/internal/store"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "agents-api",
	Short:   "Inkeep agents management API",
	Long:    `agents-api serves the multi-tenant agent management API backed by a versioned manage store and an execution-history run store`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("agents-api %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the manage store schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		if cfg.ManageStore.Enabled() {
			pool, err := dolt.Open(ctx, cfg.ManageStore.DSN(), cfg.ManageStore.PoolSize)
			if err != nil {
				return fmt.Errorf("connecting to manage store: %w", err)
			}
			defer pool.Close()
			if err := store.Migrate(ctx, pool.DB()); err != nil {
				return err
			}
			fmt.Println("Manage store schema applied")
			return nil
		}

		db, err := openFallbackStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		fmt.Println("Embedded manage store schema applied")
		return nil
	},
}

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <api-key>",
	Short: "Print the bcrypt hash of an API key for AGENTS_API_KEY_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		fmt.Println(string(hash))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(hashKeyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer() {
	// Baseline logger for early startup; re-initialized from config below.
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "info",
		Component: "agents-api",
	})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Format:    cfg.Logging.Format,
		Level:     cfg.Logging.Level,
		Component: "agents-api",
	})
	defer logging.Shutdown()

	log.Info().Str("version", Version).Msg("Starting agents API")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	vc := dolt.Procedures{
		RecoveryAuthorName:  "agents-api",
		RecoveryAuthorEmail: "api@inkeep.com",
	}

	var (
		pool     *dolt.Pool
		session  *api.SessionManager
		fallback *sql.DB
	)
	if cfg.ManageStore.Enabled() {
		pool, err = dolt.Open(ctx, cfg.ManageStore.DSN(), cfg.ManageStore.PoolSize)
		if err != nil {
			log.Fatal().Err(err).Str("host", cfg.ManageStore.Host).Msg("Failed to connect to manage store")
		}
		defer pool.Close()

		if err := store.Migrate(ctx, pool.DB()); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply manage store schema")
		}

		session = api.NewSessionManager(pool, vc, cfg.ManageStore.DefaultBranch, nil)
		log.Info().
			Str("host", cfg.ManageStore.Host).
			Str("database", cfg.ManageStore.Database).
			Str("default_branch", cfg.ManageStore.DefaultBranch).
			Int("pool_size", cfg.ManageStore.PoolSize).
			Msg("Manage store connected")
	} else {
		fallback, err = openFallbackStore(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open embedded manage store")
		}
		defer fallback.Close()

		session = api.NewSessionManager(nil, vc, cfg.ManageStore.DefaultBranch, fallback)
		log.Warn().Msg("No manage store host configured; running degraded with the embedded store (no branch isolation)")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.RunStore.Path), 0o755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create run store directory")
	}
	run, err := runstore.Open(cfg.RunStore.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.RunStore.Path).Msg("Failed to open run store")
	}
	defer run.Close()

	router := api.NewRouter(cfg, session, run, Version)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	startMetricsServer(gctx, fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort))

	if cfg.RunStore.RetentionDays > 0 {
		g.Go(func() error {
			runRetentionLoop(gctx, run, cfg.RunStore.RetentionDays)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
	log.Info().Msg("Shutdown complete")
}

// openFallbackStore opens the embedded manage store used when no Dolt
// sql-server is configured, applying the schema on the way.
func openFallbackStore(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	dir := filepath.Dir(cfg.RunStore.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "manage.db")

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// The embedded store serializes writers.
	db.SetMaxOpenConns(1)

	if err := store.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// runRetentionLoop prunes old executions once a day.
func runRetentionLoop(ctx context.Context, run *runstore.Store, retentionDays int) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	prune := func() {
		cutoff := time.Now().AddDate(0, 0, -retentionDays)
		n, err := run.PruneBefore(ctx, cutoff)
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune old executions")
			return
		}
		if n > 0 {
			log.Info().Int64("pruned", n).Time("cutoff", cutoff).Msg("Pruned old executions")
		}
	}

	prune()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
