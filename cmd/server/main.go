package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/luminadash/backend/internal/client"
	"github.com/luminadash/backend/internal/infrastructure/config"
	"github.com/luminadash/backend/internal/logging"
	"github.com/luminadash/backend/internal/queue"
	"github.com/luminadash/backend/internal/server"
)

func main() {
	port := flag.String("port", "", "Server port (overrides PORT)")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		logger = logging.NewDefault()
	}

	registry := queue.NewRegistry()
	registerWorkKinds(registry, logger)

	srv, err := server.New(server.Options{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Targets:  dependencyTargets(),
	})
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}

	registerClientKinds(registry, srv.Client(), logger)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("error during shutdown", zap.Error(err))
		}
	case err := <-errChan:
		logger.Fatal("server error", zap.Error(err))
	}
}

// registerWorkKinds installs the built-in work kinds that need no outbound
// dependencies.
func registerWorkKinds(registry *queue.Registry, logger *logging.Logger) {
	// echo returns its payload unchanged; used by smoke tests and demos.
	must(queue.RegisterWorkKind(registry, "echo", func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		return payload, nil
	}), logger)

	// sleep simulates long-running work, reporting progress as it goes.
	type sleepRequest struct {
		DurationMS int64 `json:"duration_ms"`
	}
	must(queue.RegisterWorkKind(registry, "sleep", func(ctx context.Context, req sleepRequest) (string, error) {
		total := time.Duration(req.DurationMS) * time.Millisecond
		steps := 10
		for i := 1; i <= steps; i++ {
			select {
			case <-time.After(total / time.Duration(steps)):
				queue.ReportProgress(ctx, i*100/steps)
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return "slept " + total.String(), nil
	}), logger)
}

// registerClientKinds installs work kinds that fan out to configured
// dependency targets through the resilient client.
func registerClientKinds(registry *queue.Registry, cl *client.Client, logger *logging.Logger) {
	type fetchRequest struct {
		Target string            `json:"target"`
		Path   string            `json:"path"`
		Query  map[string]string `json:"query,omitempty"`
	}
	type fetchResponse struct {
		Status int             `json:"status"`
		Cached bool            `json:"cached"`
		Body   json.RawMessage `json:"body"`
	}

	// fetch performs a read-only dependency call as background work, so slow
	// upstreams never block a dashboard request thread.
	must(queue.RegisterWorkKind(registry, "fetch", func(ctx context.Context, req fetchRequest) (fetchResponse, error) {
		resp, err := cl.Call(ctx, req.Target, client.Request{
			Method: "GET",
			Path:   req.Path,
			Query:  req.Query,
		})
		if err != nil {
			return fetchResponse{}, err
		}
		body := resp.Body
		if !json.Valid(body) {
			encoded, err := json.Marshal(string(body))
			if err != nil {
				return fetchResponse{}, err
			}
			body = encoded
		}
		return fetchResponse{Status: resp.Status, Cached: resp.Cached, Body: body}, nil
	}), logger)
}

// dependencyTargets builds outbound targets from TARGET_<NAME>_URL
// environment variables, e.g. TARGET_ANALYTICS_URL=https://analytics.internal.
func dependencyTargets() []client.TargetConfig {
	var targets []client.TargetConfig
	for _, env := range os.Environ() {
		key, url, ok := strings.Cut(env, "=")
		if !ok || url == "" {
			continue
		}
		name, ok := strings.CutPrefix(key, "TARGET_")
		if !ok {
			continue
		}
		name, ok = strings.CutSuffix(name, "_URL")
		if !ok || name == "" {
			continue
		}
		targets = append(targets, client.TargetConfig{
			Name:    strings.ToLower(name),
			BaseURL: url,
		})
	}
	return targets
}

func must(err error, logger *logging.Logger) {
	if err != nil {
		logger.Fatal("work kind registration failed", zap.Error(err))
	}
}
