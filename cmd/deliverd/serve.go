package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deliverd/internal/collab"
	"github.com/fyrsmithlabs/deliverd/internal/config"
	"github.com/fyrsmithlabs/deliverd/internal/events"
	"github.com/fyrsmithlabs/deliverd/internal/fixtree"
	"github.com/fyrsmithlabs/deliverd/internal/flow"
	"github.com/fyrsmithlabs/deliverd/internal/logging"
	"github.com/fyrsmithlabs/deliverd/internal/metrics"
	"github.com/fyrsmithlabs/deliverd/internal/redisstore"
	"github.com/fyrsmithlabs/deliverd/internal/rules"
	"github.com/fyrsmithlabs/deliverd/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the deliverd HTTP server",
	Long: `Start the deliverd daemon: loads configuration and rules, wires the
orchestrator, fix service and risk assessor, and serves the HTTP API until
SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			cancel()
		}()

		return runServe(ctx)
	},
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logging.Sync(logger) }()

	logger.Info("starting deliverd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Backend))

	// Rule tables: file overrides built-ins, with optional hot reload.
	ruleSet := rules.Default()
	if cfg.Rules.Path != "" {
		ruleSet, err = rules.LoadFile(cfg.Rules.Path)
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		logger.Info("rules loaded", zap.String("path", cfg.Rules.Path))
	}
	live := rules.NewLive(ruleSet)

	// Persistence.
	var (
		flowStore flow.Store
		fixStore  fixtree.SessionStore
	)
	switch cfg.Store.Backend {
	case "redis":
		client, err := redisstore.NewClient(ctx, redisstore.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		flowStore = redisstore.NewFlowStore(client)
		fixStore = redisstore.NewSessionStore(client)
		logger.Info("connected to redis", zap.String("addr", cfg.Store.Redis.Addr))
	default:
		flowStore = flow.NewMemoryStore()
		fixStore = fixtree.NewMemoryStore()
	}

	// Event publishing is optional.
	var (
		flowPub flow.EventPublisher      = events.Noop{}
		fixPub  fixtree.SessionPublisher = events.Noop{}
	)
	if cfg.NATS.URL != "" {
		pub, err := events.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		flowPub, fixPub = pub, pub
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	collabs := collab.NewLocal(collab.Options{
		ReportDir: cfg.Flow.ReportDir,
		Logger:    logger.Named("collab"),
	})
	orch, err := flow.NewOrchestrator(flowStore, collabs, live.Classifier(), flow.OrchestratorOptions{
		Logger:       logger.Named("flow"),
		Publisher:    flowPub,
		Observer:     m,
		PhaseTimeout: cfg.Flow.PhaseTimeout,
	})
	if err != nil {
		return err
	}

	runner := collab.NewProbeRunner(cfg.Fix.ProbeURL, logger.Named("fix"))
	fixSvc, err := fixtree.NewService(fixStore, runner, fixtree.Options{
		Chains:    live.Chains(),
		Logger:    logger.Named("fix"),
		Observer:  m,
		Publisher: fixPub,
	})
	if err != nil {
		return err
	}

	// Hot reload swaps the classifier, tiers, and strategy chains.
	if cfg.Rules.Path != "" && cfg.Rules.Watch {
		watcher, err := rules.Watch(cfg.Rules.Path, func(set *rules.Set) {
			live.Apply(set)
			if err := fixSvc.SetChains(set.Chains); err != nil {
				logger.Warn("rejecting reloaded chains", zap.Error(err))
			}
		}, logger.Named("rules"))
		if err != nil {
			return err
		}
		defer func() { _ = watcher.Close() }()
	}

	srv, err := server.NewServer(server.Deps{
		Orchestrator: orch,
		Fix:          fixSvc,
		Rules:        live,
		Gatherer:     registry,
		Observer:     m,
	}, logger.Named("http"), server.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
