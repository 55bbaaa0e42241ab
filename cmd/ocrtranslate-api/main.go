package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ocrtranslate/internal/config"
	"ocrtranslate/internal/extraction"
	"ocrtranslate/internal/httpapi"
	"ocrtranslate/internal/imagedecode"
	"ocrtranslate/internal/modelclient"
	"ocrtranslate/internal/observability"
	"ocrtranslate/internal/pipeline"
	"ocrtranslate/internal/translation"
	"ocrtranslate/internal/upstream/gemini"
	"ocrtranslate/internal/upstream/openai"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	metrics := observability.NewMetrics()

	backend, closeBackend, err := newBackend(context.Background(), cfg, metrics)
	if err != nil {
		logger.Error("model client init failed", "provider", cfg.Provider, "error", err)
		os.Exit(1)
	}
	defer closeBackend()

	extractionService := extraction.New(backend, cfg.Model, cfg.ExtractionTimeout)
	translationService := translation.New(backend, cfg.Model, cfg.TranslationTimeout)
	pipelineService := pipeline.New(imagedecode.New(cfg.MaxImageDimension), extractionService, translationService)

	handler := httpapi.NewServer(cfg, logger, httpapi.Dependencies{
		Pipeline:       pipelineService,
		Upstream:       backend,
		Metrics:        metrics,
		MetricsHandler: metrics.Handler(),
	})

	// Two provider calls run back to back, so the write deadline covers both stage timeouts.
	writeTimeout := cfg.ExtractionTimeout + cfg.TranslationTimeout + 10*time.Second
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", cfg.ListenAddr,
			"provider", cfg.Provider,
			"model", cfg.Model,
			"target_language", translationService.TargetLanguage(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server exited", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// newBackend builds the single model client shared by both stages.
func newBackend(ctx context.Context, cfg config.Config, metrics *observability.Metrics) (modelclient.Backend, func(), error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		transport := &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		httpClient := &http.Client{Timeout: cfg.RequestTimeout, Transport: transport}
		client := openai.New(cfg.BaseURL, cfg.APIKey, httpClient, openai.WithObserver(metrics.ObserveUpstream))
		return client, httpClient.CloseIdleConnections, nil
	case config.ProviderGemini:
		client, err := gemini.New(ctx, cfg.APIKey, cfg.BaseURL, gemini.WithObserver(metrics.ObserveUpstream))
		if err != nil {
			return nil, nil, err
		}
		return client, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn", "warning":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))
}
