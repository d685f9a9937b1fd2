package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/groundtrack/internal/api"
	"github.com/star/groundtrack/internal/groundtrack"
	"github.com/star/groundtrack/internal/kvstore"
	"github.com/star/groundtrack/internal/tle"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the stored state over HTTP and keep it refreshed",
	Long: `serve resumes from the store (or the newest cached element record),
refreshes the snapshot and the track on their configured intervals, and serves
the state, a live state stream, pass predictions, fetch/refresh triggers,
health probes and metrics over HTTP.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		a.start(ctx)

		srv := api.NewServer(api.Config{
			Addr:       cfg.HTTPAddr,
			Auth:       cfg.Auth,
			TrustProxy: cfg.TrustProxy,
			NoradID:    cfg.NoradID,
			Creds:      cfg.Creds,
			Stream:     cfg.Stream,
		}, a.session, a.store, a.predictor, logger, func(ctx context.Context) error {
			return kvstore.Reachable(ctx, a.store)
		})

		go a.refreshLoop(ctx, "snapshot", cfg.SnapshotInterval, a.session.RefreshSnapshot)
		go a.refreshLoop(ctx, "series", cfg.SeriesInterval, a.session.RefreshSeries)

		errc := make(chan error, 1)
		go func() {
			logger.Info("starting server",
				"addr", cfg.HTTPAddr,
				"auth_enabled", cfg.Auth.Enabled,
				"store", cfg.StoreBackend,
				"source", cfg.SourceKind,
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
			return err
		}

		logger.Info("server stopped")
		return nil
	},
}

// start loads elements from the store, falling back to the newest cached
// record. Without either, the server waits for POST /api/v1/fetch.
func (a *app) start(ctx context.Context) {
	err := a.session.Resume(ctx)
	if err == nil {
		return
	}
	if !errors.Is(err, groundtrack.ErrNoElements) {
		logger.Warn("resuming from store failed", "error", err)
	}
	if a.cache == nil {
		logger.Info("no stored elements, waiting for fetch")
		return
	}

	path, ts, err := a.cache.Latest()
	if err != nil {
		logger.Info("no stored or cached elements, waiting for fetch", "error", err)
		return
	}
	if err := a.session.FetchFrom(ctx, tle.NewFileSource(path, logger), ""); err != nil {
		logger.Warn("loading cached elements failed", "path", path, "error", err)
		return
	}
	logger.Info("loaded elements from cache", "path", path, "cached_at", ts.Format(time.RFC3339))
}

func (a *app) refreshLoop(ctx context.Context, name string, every time.Duration, refresh func(context.Context) error) {
	if every <= 0 {
		logger.Info("refresh loop disabled", "loop", name)
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// Failures are logged by the session.
			_ = refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "HTTP listen address")
}
