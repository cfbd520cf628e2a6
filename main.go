package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"classifyd/config"
	"classifyd/db"
	qhttp "classifyd/http"
	"classifyd/logger"
	"classifyd/ml"
	"classifyd/monitoring"
	"classifyd/serving"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// os.Exit skips defers, so everything that needs cleanup lives in run
	os.Exit(run(*configPath))
}

func run(configPath string) int {
	// 1. Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		return 1
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Load the model; a missing or broken artifact leaves the service degraded
	registry := ml.NewRegistry(cfg.ML.ModelPath, log)
	if err := registry.Reload(); err != nil {
		log.Warn("starting without a model", zap.Error(err))
	}

	// 3. Supporting services
	metrics := monitoring.NewMetricsCollector()
	metrics.Start(10 * time.Second)
	defer metrics.Stop()

	events := monitoring.NewEventHub(log)
	go events.Run(ctx)

	var store *db.PredictionStore
	if cfg.Database.Path != "" {
		store, err = db.Open(cfg.Database.Path)
		if err != nil {
			log.Error("prediction log disabled", zap.String("path", cfg.Database.Path), zap.Error(err))
		} else {
			defer store.Close()
			log.Info("prediction log opened", zap.String("path", cfg.Database.Path))
		}
	}

	if cfg.ML.Watch {
		watcher := ml.NewWatcher(registry, cfg.ML.WatchDebounce, log)
		watcher.OnReload = func(snap ml.Snapshot) {
			events.Publish("model", map[string]interface{}{
				"generation":             snap.Generation,
				"supports_probabilities": snap.SupportsProbabilities(),
			})
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Error("model watcher stopped", zap.Error(err))
			}
		}()
	}

	// 4. Serving
	server := qhttp.NewServer(serverConfig(cfg), qhttp.NewAPI(buildDependencies(cfg, registry, store, metrics, events, log)))
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	exitCode := 0
	if err := waitForShutdown(serverErr, quit); err != nil {
		log.Error("HTTP server failed", zap.Error(err))
		exitCode = 1
	} else {
		log.Info("shutting down")
	}

	if err := server.Stop(); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	log.Info("exiting")
	return exitCode
}

// waitForShutdown blocks until a signal arrives or the server stops on its
// own. It returns the server's error in the second case.
func waitForShutdown(serverErr <-chan error, quit <-chan os.Signal) error {
	select {
	case <-quit:
		return nil
	case err := <-serverErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return errors.New("HTTP server stopped unexpectedly")
		}
		return err
	}
}

func serverConfig(cfg *config.Config) qhttp.ServerConfig {
	return qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		ReadTimeout:    cfg.Http.ReadTimeout,
		WriteTimeout:   cfg.Http.WriteTimeout,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
		AllowedOrigins: cfg.Http.AllowedOrigins,
	}
}

func buildDependencies(cfg *config.Config, registry *ml.Registry, store *db.PredictionStore, metrics *monitoring.MetricsCollector, events *monitoring.EventHub, log *zap.Logger) qhttp.Dependencies {
	opts := []serving.ClassifierOption{
		serving.WithMaxBatchSize(cfg.ML.MaxBatchSize),
		serving.WithEventPublisher(events),
	}
	if cfg.ML.CacheSize > 0 {
		cache, err := serving.NewPredictionCache(cfg.ML.CacheSize)
		if err != nil {
			log.Warn("prediction cache disabled", zap.Error(err))
		} else {
			opts = append(opts, serving.WithCache(cache))
		}
	}

	deps := qhttp.Dependencies{
		Models:     registry,
		Classifier: serving.NewClassifier(registry, log.Named("classify"), append(opts, withSink(store)...)...),
		Retrainer: serving.NewRetrainer(serving.RetrainConfig{
			Classification:     serving.TrainerCommand{Command: cfg.Retrain.Classification.Command, Dir: cfg.Retrain.Classification.Dir},
			Generic:            serving.TrainerCommand{Command: cfg.Retrain.Generic.Command, Dir: cfg.Retrain.Generic.Dir},
			ReloadAfterRetrain: cfg.Retrain.Reload(),
		}, serving.ExecRunner{}, registry, events, log.Named("retrain")),
		Metrics: metrics,
		Events:  events,
		Logger:  log,
	}
	// a nil *PredictionStore must not become a non-nil interface
	if store != nil {
		deps.Predictions = store
	}
	return deps
}

func withSink(store *db.PredictionStore) []serving.ClassifierOption {
	if store == nil {
		return nil
	}
	return []serving.ClassifierOption{serving.WithPredictionSink(store)}
}
