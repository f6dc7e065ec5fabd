package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/diewo77/labdesk/internal/blob"
	"github.com/diewo77/labdesk/internal/catalog"
	"github.com/diewo77/labdesk/internal/db"
	"github.com/diewo77/labdesk/internal/kv"
	"github.com/diewo77/labdesk/internal/metrics"
	"github.com/diewo77/labdesk/internal/server"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg, log := opts.cfg, opts.log

	conn, err := opts.openDB()
	if err != nil {
		return err
	}
	if cfg.App.Migrations {
		if err := db.Migrate(conn, cfg.Database, true); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations completed")
	}
	if err := db.Seed(conn); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	store, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	cat, err := loadCatalog(cfg.App.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	var shared kv.KV
	if cfg.Redis.Addr != "" {
		rc, err := kv.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rc.Close()
		shared = kv.NewRedisKV(rc)
		log.Info("shared role cache enabled", zap.String("redis", cfg.Redis.Addr))
	}

	app := server.New(server.Deps{
		DB:      conn,
		Config:  cfg,
		Log:     log,
		Store:   store,
		Catalog: cat,
		KV:      shared,
		Metrics: metrics.New(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      http.MaxBytesHandler(app, int64(cfg.Server.MaxUploadMB)<<20),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.Bool("dev", cfg.App.Dev),
			zap.String("blob", string(store.Driver())),
			zap.Int("catalog_tests", cat.Len()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped gracefully")
	return nil
}
