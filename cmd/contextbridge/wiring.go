package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/MikeSquared-Agency/contextbridge/internal/config"
	"github.com/MikeSquared-Agency/contextbridge/internal/credential"
	"github.com/MikeSquared-Agency/contextbridge/internal/extractor"
	"github.com/MikeSquared-Agency/contextbridge/internal/llm"
	"github.com/MikeSquared-Agency/contextbridge/internal/llm/gemini"
	"github.com/MikeSquared-Agency/contextbridge/internal/llm/openai"
	"github.com/MikeSquared-Agency/contextbridge/internal/store"
)

// openSecretSource returns the managed secret source selected by config and a
// func that releases it. A nil source means manual entry only.
func openSecretSource(ctx context.Context, cfg config.Config) (credential.SecretSource, func(), error) {
	noop := func() {}
	switch cfg.SecretsBackend {
	case "", "env":
		return credential.EnvSource{}, noop, nil
	case "none":
		return nil, noop, nil
	case "file":
		if cfg.SecretsFile == "" {
			return nil, noop, fmt.Errorf("CONTEXTBRIDGE_SECRETS_FILE is required for the file secrets backend")
		}
		src, err := credential.LoadFileSource(cfg.SecretsFile)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, noop, fmt.Errorf("DATABASE_URL is required for the postgres secrets backend")
		}
		src, err := credential.NewPostgresSource(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		return src, src.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown secrets backend %q", cfg.SecretsBackend)
}

func newGenerator(cfg config.Config) *llm.Router {
	router := llm.NewRouter(cfg.DefaultProvider)
	router.Register("gemini", gemini.NewClient(cfg.GeminiBaseURL, cfg.RequestTimeout))
	router.Register("openai", openai.NewClient(cfg.OpenAIBaseURL, cfg.RequestTimeout))
	return router
}

func newExtractor(cfg config.Config, logger *slog.Logger) *extractor.Extractor {
	return extractor.New(newGenerator(cfg), cfg.Models, logger)
}

func newSessions(cfg config.Config, source credential.SecretSource, logger *slog.Logger) *store.Sessions {
	sessions := store.NewSessions(cfg.SessionTTL, func() *credential.Resolver {
		return credential.NewResolver(source, cfg.SecretKey, logger)
	}, logger)
	sessions.SetMaxSessions(cfg.MaxSessions)
	return sessions
}

// bootstrap loads config, configures logging and opens the secret source.
func bootstrap(ctx context.Context, logTo io.Writer) (config.Config, credential.SecretSource, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	setupLogging(cfg.LogLevel, logTo)

	source, closeSource, err := openSecretSource(ctx, cfg)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("open secrets backend: %w", err)
	}
	slog.Info("secrets backend ready", "backend", cfg.SecretsBackend, "key", cfg.SecretKey)
	return cfg, source, closeSource, nil
}
