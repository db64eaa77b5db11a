package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/contextbridge/internal/api"
	"github.com/MikeSquared-Agency/contextbridge/internal/hermes"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP dashboard and JSON API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, source, closeSource, err := bootstrap(ctx, os.Stdout)
	if err != nil {
		return err
	}
	defer closeSource()

	slog.Info("contextbridge starting", "port", cfg.Port, "models", cfg.Models)

	// NATS/Hermes (optional, approval is disabled without it)
	var publisher api.Publisher
	var hermesClient *hermes.Client
	if cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			return err
		}
		publisher = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL, "subject", cfg.HandoverSubject)

		if err := hermesClient.Publish("swarm.agent.contextbridge.registered", map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
			"models":    cfg.Models,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	} else {
		slog.Warn("NATS not configured, handover approval disabled")
	}

	sessions := newSessions(cfg, source, slog.Default())
	srv := api.NewServer(api.Options{
		Port:            cfg.Port,
		Account:         cfg.AccountName,
		HandoverSubject: cfg.HandoverSubject,
	}, sessions, newExtractor(cfg, slog.Default()), publisher, slog.Default())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		if hermesClient != nil {
			hermesClient.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("contextbridge stopped")
	return nil
}
