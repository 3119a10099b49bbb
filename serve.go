package main

import (
	"context"
	"fmt"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storybook/composer"
	"storybook/core"
	"storybook/db"
	"storybook/imagegen"
	"storybook/metrics"
	"storybook/pipeline"
	"storybook/sdruntime"
	"storybook/session"
	"storybook/shutdown"
	"storybook/webui"
)

const (
	historyQueueSize = 256
	cleanupInterval  = 24 * time.Hour
)

// history is the optional SQLite audit log.
type history struct {
	database *db.Database
	repo     *db.Repository
	writer   *db.AsyncWriter
}

func openHistory(ctx context.Context, path string, logger *zap.Logger) (*history, error) {
	database, err := db.OpenDatabase(ctx, path)
	if err != nil {
		return nil, err
	}
	// The writer's handler needs a repository and the repository needs the
	// writer, so the handler comes from a writer-less repository.
	direct := db.NewRepository(database, nil)
	writer := db.NewAsyncWriter(direct.AsyncWriteHandler(), historyQueueSize, func(err error) {
		logger.Warn("Task history write failed", zap.Error(err))
	})
	writer.Start()

	return &history{
		database: database,
		repo:     db.NewRepository(database, writer),
		writer:   writer,
	}, nil
}

// buildPipeline wires the model runtime, acquisition service and composer
// into a pipeline. The runtime is registered with mgr for shutdown.
func buildPipeline(cfg *core.Config, log *zap.Logger, recorder metrics.Recorder, mgr *shutdown.Manager) (*pipeline.Pipeline, *sdruntime.Runtime, error) {
	backend, err := imagegen.NewBackend(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	comp, err := composer.New(
		composer.WithLogger(log),
		composer.WithRecorder(recorder),
		composer.WithMaxImagePixels(cfg.ComposerMaxImagePixels),
	)
	if err != nil {
		return nil, nil, err
	}

	model := sdruntime.New(backend, sdruntime.ConfigFrom(cfg), log)
	mgr.Register("model", shutdown.PriorityModel, model.Shutdown)

	svc := imagegen.NewService(model, log, imagegen.WithOperations(mgr), imagegen.WithRecorder(recorder))
	return pipeline.New(nil, svc, comp, log, recorder), model, nil
}

func runServe(ctx context.Context, _ *cli.Command) error {
	env := envFrom(ctx)
	cfg, log := env.Cfg, env.Log.Zap()

	if err := preflight(ctx, env); err != nil {
		return err
	}

	mgr := shutdown.NewManager(log, shutdown.WithParent(ctx))
	mgr.Start()
	mgr.Register("logger", shutdown.PriorityLogger, func(context.Context) error {
		return env.Log.Sync()
	})

	store := metrics.NewStore(metrics.DefaultStoreConfig(), time.Now())
	recorder := metrics.Recorder(store)

	deps := webui.Deps{
		Sessions:   session.NewStore(cfg.SessionTTL),
		Metrics:    store,
		Operations: mgr,
		Logger:     log,
	}

	if cfg.HistoryDBPath != "" {
		h, err := openHistory(ctx, cfg.HistoryDBPath, log)
		if err != nil {
			_ = mgr.Shutdown()
			return fmt.Errorf("unable to open task history: %w", err)
		}
		mgr.Register("history-writer", shutdown.PriorityHistoryWriter, h.writer.Stop)
		mgr.Register("database", shutdown.PriorityDatabase, core.Closer(h.database.Close))

		recorder = metrics.Tee(store, db.NewHistoryRecorder(h.repo, log))
		deps.History = h.repo

		h.database.StartCleanupScheduler(mgr.Context(), cfg.HistoryRetentionDays, cleanupInterval,
			func(res db.CleanupResult, err error) {
				if err != nil {
					log.Warn("Task history cleanup failed", zap.Error(err))
					return
				}
				if res.Deleted > 0 {
					log.Info("Task history cleanup finished",
						zap.Int64("deleted", res.Deleted),
						zap.Duration("duration", res.Duration))
				}
			})
		log.Info("Task history enabled",
			zap.String("path", cfg.HistoryDBPath),
			zap.Int("retention_days", cfg.HistoryRetentionDays))
	}

	p, model, err := buildPipeline(cfg, log, recorder, mgr)
	if err != nil {
		_ = mgr.Shutdown()
		return err
	}
	deps.Pipeline = p
	deps.Model = model

	srv, err := webui.NewServer(webui.ServerConfigFromCore(cfg, core.Version), deps)
	if err != nil {
		_ = mgr.Shutdown()
		return err
	}
	mgr.Register("http-server", shutdown.PriorityHTTPServer, srv.Shutdown)
	mgr.Register("broadcaster", shutdown.PriorityBroadcaster, srv.Broadcaster().Shutdown)

	log.Info("Configuration loaded",
		zap.String("addr", cfg.ListenAddr),
		zap.String("image_backend", model.BackendName()),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Int("acquire_rate_per_min", cfg.AcquireRatePerMin),
		zap.Bool("history", cfg.HistoryDBPath != ""),
	)

	g, gctx := errgroup.WithContext(mgr.Context())
	g.Go(func() error {
		// Stopped by the broadcaster handler, after the HTTP server drains.
		return srv.Broadcaster().Run(context.WithoutCancel(gctx))
	})
	g.Go(func() error {
		if err := srv.Start(gctx); err != nil {
			mgr.Trigger("http server failed")
			return err
		}
		return nil
	})

	mgr.Wait()
	log.Info("Shutting down", zap.String("reason", mgr.Reason()))
	shutdownErr := mgr.Shutdown()
	if err := g.Wait(); err != nil {
		return err
	}
	return shutdownErr
}
