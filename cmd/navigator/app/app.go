package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roman-kulish/drone-navigator/internal/link"
	"github.com/roman-kulish/drone-navigator/internal/metrics"
	"github.com/roman-kulish/drone-navigator/internal/storage"
	"github.com/roman-kulish/drone-navigator/internal/worker"
)

const (
	storageDir = "data"

	shutdownTimeout = 5 * time.Second
)

// Run connects to the vehicle and navigates it toward the configured target
// until ctx is cancelled or the configured run time elapses
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	l, err := createLink(&config.Link, logger)
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	defer func() {
		if err := l.Close(); err != nil {
			logger.Error(fmt.Sprintf("error closing link: %s", err.Error()))
		}
	}()

	options := []func(*Orchestrator){
		WithRunFor(time.Duration(config.Settings.RunFor)),
		WithMaxBatchSize(config.Storage.MaxBatchSize),
		WithWorkerOptions(
			worker.WithPollInterval(time.Duration(config.Workers.PollInterval)),
			worker.WithHeartbeatPeriod(time.Duration(config.Workers.HeartbeatPeriod)),
			worker.WithCommanderOptions(config.Workers.CommanderOptions()...),
		),
	}

	if config.Storage.Enabled {
		store, dbPath, err := createStorage(&config.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error(fmt.Sprintf("error closing storage: %s", err.Error()))
				return
			}
			if stat, err := os.Stat(dbPath); err == nil {
				logger.Info("flight log written", slog.String("path", dbPath), slog.String("size", humanize.Bytes(uint64(stat.Size()))))
			}
		}()

		options = append(options, WithStore(store, config.Link.Type.String(), config))
	}

	if config.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		m, err := metrics.New(reg)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}

		shutdown, err := serveMetrics(config.Metrics.Address, reg, logger)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer shutdown()

		options = append(options, WithMetrics(m))
	}

	orchestrator := NewOrchestrator(l, config.Target, logger, options...)
	if _, err = orchestrator.Run(ctx); err != nil {
		return fmt.Errorf("running navigator: %w", err)
	}

	return nil
}

func createLink(config *LinkConfig, logger *slog.Logger) (link.Link, error) {
	switch config.Type {
	case LinkSerial:
		l, err := link.OpenSerial(config.Serial.Port, config.Serial.PortOptions,
			link.WithLogger(logger),
			link.WithReadTimeout(time.Duration(config.Serial.ReadTimeout)),
		)
		if err != nil {
			return nil, fmt.Errorf("opening serial link: %w", err)
		}
		return l, nil

	case LinkSim:
		return link.NewSimulator(
			link.WithSimLogger(logger),
			link.WithSimPeriod(time.Duration(config.Sim.Period)),
			link.WithStart(config.Sim.Start, config.Sim.Yaw*math.Pi/180),
			link.WithDrift(config.Sim.DriftX, config.Sim.DriftY),
		), nil

	default:
		return nil, fmt.Errorf("creating link: unknown type '%s'", config.Type)
	}
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, string, error) {
	dbPath := config.DataDirectory
	if dbPath == "" {
		dbPath = storageDir
	}

	if !filepath.IsAbs(dbPath) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get current working directory: %w", err)
		}
		dbPath = filepath.Join(wd, dbPath)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, "", fmt.Errorf("checking storage directory '%s': %w", dbPath, err)
	}
	if !stat.IsDir() {
		return nil, "", fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("flight_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), dbPath, nil
}

// serveMetrics exposes reg on /metrics along with a /healthz probe. The
// returned function shuts the server down.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(fmt.Sprintf("metrics server error: %s", err.Error()))
			errCh <- err
		}
		close(errCh)
	}()

	// fail fast on an address already in use
	select {
	case err, ok := <-errCh:
		if ok {
			return nil, err
		}
	case <-time.After(50 * time.Millisecond):
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("error stopping metrics server: %s", err.Error()))
		}
	}, nil
}
