// Package bootstrap wires config, logger, storage engine, admin HTTP plane,
// and TCP front-end into a running server using a dig container, the same
// composition style catalinm00-KVDB's bootstrap package uses for its
// service graph.
package bootstrap

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"

	"github.com/ridgedb/ridgedb/internal/adminhttp"
	"github.com/ridgedb/ridgedb/internal/config"
	"github.com/ridgedb/ridgedb/internal/logging"
	"github.com/ridgedb/ridgedb/internal/netserver"
	"github.com/ridgedb/ridgedb/internal/storage"
)

func loadServerConfig() config.ServerConfig {
	return config.LoadServerConfig()
}

func newLogger(cfg config.ServerConfig) *logrus.Logger {
	return logging.New(cfg.LogLevel)
}

func newRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func newMetrics(reg *prometheus.Registry) *storage.Metrics {
	return storage.NewMetrics(reg)
}

func newEngine(cfg config.ServerConfig, logger *logrus.Logger, metrics *storage.Metrics) (*storage.LSM, error) {
	engineCfg := storage.Config{
		DataDir:               cfg.DataDir,
		MemTableSizeThreshold: cfg.MemTableSizeThreshold,
		SSTableCountThreshold: cfg.SSTableCountThreshold,
		CompactionInterval:    cfg.CompactionInterval,
	}
	return storage.Open(engineCfg, logger, metrics)
}

func newAdminServer(cfg config.ServerConfig, engine *storage.LSM, reg *prometheus.Registry, logger *logrus.Logger) *adminhttp.Server {
	return adminhttp.New(cfg.AdminAddr, engine, reg, logger)
}

func newNetServer(cfg config.ServerConfig, engine *storage.LSM, logger *logrus.Logger) (*netserver.Server, error) {
	listener, err := netserver.Listen(cfg.ListenAddr)
	if err != nil {
		return nil, err
	}
	return netserver.New(listener, engine, logger), nil
}

// Server is the fully-wired running process: the storage engine, the admin
// HTTP plane, and the TCP front-end.
type Server struct {
	Engine      *storage.LSM
	AdminServer *adminhttp.Server
	NetServer   *netserver.Server
	Logger      *logrus.Logger
}

// RunServer builds the service graph with a dig container and starts the
// admin HTTP plane and the TCP front-end. It blocks until ctx is canceled,
// then closes the engine (flushing the active and queued memtables).
func RunServer(ctx context.Context) error {
	container := dig.New()

	constructors := []interface{}{
		loadServerConfig,
		newLogger,
		newRegistry,
		newMetrics,
		newEngine,
		newAdminServer,
		newNetServer,
	}
	for _, ctor := range constructors {
		if err := container.Provide(ctor); err != nil {
			return err
		}
	}

	return container.Invoke(func(
		cfg config.ServerConfig,
		logger *logrus.Logger,
		engine *storage.LSM,
		admin *adminhttp.Server,
		tcp *netserver.Server,
	) error {
		defer engine.Close()

		errCh := make(chan error, 2)
		go func() {
			errCh <- admin.ListenAndServe()
		}()
		go func() {
			errCh <- tcp.Serve(ctx)
		}()

		logger.WithFields(logrus.Fields{
			"listen_addr": cfg.ListenAddr,
			"admin_addr":  cfg.AdminAddr,
			"data_dir":    cfg.DataDir,
		}).Info("ridgedb server started")

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.CompactionInterval*5)
			defer cancel()
			_ = admin.Shutdown(shutdownCtx)
			firstErr := <-errCh
			if secondErr := <-errCh; secondErr != nil && firstErr == nil {
				firstErr = secondErr
			}
			return firstErr
		case err := <-errCh:
			return err
		}
	})
}
