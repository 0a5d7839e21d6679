// cmd/app-deployer/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"app-deployer/internal/common/config"
	"app-deployer/internal/common/git"
	"app-deployer/internal/common/github"
	"app-deployer/internal/common/logger"
	"app-deployer/internal/common/observability"
	"app-deployer/internal/pipeline"
	"app-deployer/internal/pool"
	"app-deployer/internal/server"

	da "app-deployer/internal/workers/attachments/decode-attachments"
	ne "app-deployer/internal/workers/delivery/notify-evaluator"
	cp "app-deployer/internal/workers/generation/compose-prompt"
	ga "app-deployer/internal/workers/generation/generate-artifact"
	pr "app-deployer/internal/workers/repository/publish-repository"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP endpoint and the background round workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}
		return serve(cmd.Context(), cfg)
	},
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log.Info("Starting app-deployer", map[string]interface{}{
		"environment": cfg.App.Environment,
		"registry":    cfg.Registry.Backend,
		"workers":     cfg.Pool.Workers,
	})

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	store, checks, closeStore, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	gh := github.NewClient(cfg.GitHub.APIURL, cfg.GitHub.Token, config.GetDuration(cfg.GitHub.Timeout))
	gitCLI := git.NewCLI(cfg.Git.Binary, config.GetDuration(cfg.Git.CommandTimeout))

	pipe := pipeline.New(pipeline.Deps{
		Attachments:   da.NewHandler(da.LoadConfig(cfg), nil, log),
		Prompts:       cp.NewHandler(cp.LoadConfig(cfg), log),
		Generator:     ga.NewHandler(ga.LoadConfig(cfg), log),
		Repositories:  pr.NewHandler(pr.LoadConfig(cfg), gh, gitCLI, log),
		Notifier:      ne.NewHandler(ne.LoadConfig(cfg), nil, log),
		Store:         store,
		Observability: obs,
	}, log)

	workers := pool.New(pool.Config{Workers: cfg.Pool.Workers, QueueSize: cfg.Pool.QueueSize}, pipe, log)
	drained := make(chan struct{})
	go func() {
		drainResults(workers.Results(), log)
		close(drained)
	}()

	front := server.New(server.Config{
		Secret:       cfg.Server.Secret,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, workers, log, checks...)

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           front.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       config.GetDuration(cfg.Server.ReadTimeout),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"address": srv.Addr})
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-shutdown:
		log.Info("Shutdown signal received, draining rounds", nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed, forcing close", map[string]interface{}{"error": err.Error()})
		_ = srv.Close()
	}
	if err := workers.Shutdown(shutdownCtx); err != nil {
		log.Error("In-flight rounds did not finish before the shutdown deadline", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	<-drained

	log.Info("app-deployer stopped gracefully", nil)
	return nil
}

// drainResults logs each finished round until the pool closes its channel.
func drainResults(results <-chan *pipeline.RoundResult, log logger.Logger) {
	for r := range results {
		fields := map[string]interface{}{
			"roundId":  r.RoundID,
			"task":     r.Task,
			"round":    r.Round,
			"status":   r.Status,
			"duration": r.Duration.String(),
		}
		if r.Succeeded() {
			fields["commitSha"] = r.CommitSHA
			fields["pagesUrl"] = r.PagesURL
			fields["degraded"] = r.Degraded
			log.Info("round finished", fields)
			continue
		}
		fields["failureKind"] = string(r.FailureKind)
		log.Warn("round finished without notification", fields)
	}
}
