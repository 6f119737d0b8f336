package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/cli/config"
	httpctrl "github.com/secmon-lab/kioku/pkg/controller/http"
	"github.com/secmon-lab/kioku/pkg/service/worker"
	"github.com/secmon-lab/kioku/pkg/usecase"
	"github.com/secmon-lab/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var appCfg config.App
	var repoCfg config.Repository
	var sourceCfg config.Source
	var cacheCfg config.Cache

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("KIOKU_ADDR"),
			Destination: &addr,
		},
	}

	// Add shared config flags
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, sourceCfg.Flags()...)
	flags = append(flags, cacheCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			app, err := appCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load app configuration")
			}

			// Initialize archive repository based on backend type
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			src, closeSource, err := sourceCfg.Configure(ctx, repo)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize message source")
			}
			defer closeSource()

			cache, err := cacheCfg.Configure(c, app, src)
			if err != nil {
				return err
			}

			uc := usecase.New(cache, usecase.WithArchive(repo.Message()))

			// Start cache warmer if channels are configured
			var warmer *worker.CacheWarmer
			if targets := app.WarmTargets(); len(targets) > 0 {
				var opts []worker.WarmerOption
				if app.Warm.Concurrency > 0 {
					opts = append(opts, worker.WithConcurrency(app.Warm.Concurrency))
				}
				warmer, err = worker.NewCacheWarmer(cache, targets, app.WarmInterval(), opts...)
				if err != nil {
					return goerr.Wrap(err, "failed to create cache warmer")
				}
				if err := warmer.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start cache warmer")
				}
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server",
					"addr", addr,
					"source", sourceCfg,
					"cache", cacheCfg,
					"warm_channels", len(app.Warm.Channels))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			// Wait for shutdown signal or server error
			select {
			case err := <-errCh:
				if warmer != nil {
					warmer.Stop()
				}
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				// Stop cache warmer first
				if warmer != nil {
					warmer.Stop()
				}

				// Create shutdown context with timeout
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				// Attempt graceful shutdown
				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
