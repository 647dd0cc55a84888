package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/frappe/release/pkg/cli/config"
	controller "github.com/frappe/release/pkg/controller/http"
	"github.com/frappe/release/pkg/domain/interfaces"
	"github.com/frappe/release/pkg/domain/types"
	firestorerepo "github.com/frappe/release/pkg/infra/firestore"
	githubinfra "github.com/frappe/release/pkg/infra/github"
	"github.com/frappe/release/pkg/infra/memory"
	"github.com/frappe/release/pkg/infra/slacknotify"
	"github.com/frappe/release/pkg/usecase"
)

func cmdServe() *cli.Command {
	var (
		serverCfg config.Server
		githubCfg config.GitHub
		policyCfg config.Policy
		storeCfg  config.Store
		notifyCfg config.Notify
	)

	flags := append(serverCfg.Flags(), githubCfg.Flags()...)
	flags = append(flags, policyCfg.Flags()...)
	flags = append(flags, storeCfg.Flags()...)
	flags = append(flags, notifyCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting release server",
				slog.String("addr", serverCfg.Addr),
			)

			if serverCfg.SentryDSN != "" {
				if err := sentry.Init(sentry.ClientOptions{
					Dsn:     serverCfg.SentryDSN,
					Release: types.Version,
				}); err != nil {
					return goerr.Wrap(err, "failed to initialize Sentry")
				}
				defer sentry.Flush(2 * time.Second)
			}

			policy, err := policyCfg.Load()
			if err != nil {
				return err
			}

			// Persistence: Firestore when configured, in-memory otherwise
			var releases interfaces.ReleaseRepository
			var pulls interfaces.PullRequestRepository
			if storeCfg.FirestoreProjectID != "" {
				repo, err := firestorerepo.New(ctx, storeCfg.FirestoreProjectID)
				if err != nil {
					return err
				}
				defer func() {
					if err := repo.Close(); err != nil {
						logger.Warn("Failed to close Firestore client", slog.Any("error", err))
					}
				}()
				releases = repo.Releases()
				pulls = repo.PullRequests()
			} else {
				logger.Warn("No Firestore project configured, using in-memory store")
				repo := memory.New()
				releases = repo.Releases()
				pulls = repo.PullRequests()
			}

			var notifier interfaces.Notifier = slacknotify.Discard{}
			if notifyCfg.SlackToken != "" && notifyCfg.SlackChannel != "" {
				notifier = slacknotify.New(notifyCfg.SlackToken, notifyCfg.SlackChannel)
			}

			backend := githubinfra.NewClient(githubCfg.Token)

			releaseUC := usecase.NewRelease(backend, releases, pulls, notifier, policy)
			pullUC := usecase.NewPullRequest(backend, releases, pulls, releaseUC)

			server, err := controller.NewServer(
				ctx,
				releaseUC,
				pullUC,
				controller.WithAddr(serverCfg.Addr),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			// Start server in goroutine
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
