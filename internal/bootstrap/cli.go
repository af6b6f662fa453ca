package bootstrap

import (
	"github.com/sirupsen/logrus"

	"github.com/ridgedb/ridgedb/internal/config"
	"github.com/ridgedb/ridgedb/internal/logging"
	"github.com/ridgedb/ridgedb/internal/storage"
)

// OpenCLIEngine builds a storage engine for the interactive shell directly,
// with no TCP front-end or admin HTTP plane. The CLI does not register a
// Prometheus registry: a nil *storage.Metrics keeps every recording call a
// no-op.
func OpenCLIEngine() (*storage.LSM, *logrus.Logger, error) {
	cfg := config.LoadCLIConfig()
	logger := logging.New(cfg.LogLevel)

	engineCfg := storage.Config{
		DataDir:               cfg.DataDir,
		MemTableSizeThreshold: cfg.MemTableSizeThreshold,
		SSTableCountThreshold: cfg.SSTableCountThreshold,
		CompactionInterval:    cfg.CompactionInterval,
	}
	engine, err := storage.Open(engineCfg, logger, nil)
	if err != nil {
		return nil, nil, err
	}
	return engine, logger, nil
}
