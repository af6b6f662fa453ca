// Package config loads server and CLI configuration from flags,
// environment variables, and a .env file, in that order of precedence
// (a .env entry never overrides a variable already set in the environment).
package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var (
	listenAddrFlag   = flag.String("listen", "", "TCP address the wire protocol listens on")
	adminAddrFlag    = flag.String("admin", "", "HTTP address the admin plane listens on")
	dataDirFlag      = flag.String("data-dir", "", "data directory for SSTables")
	logLevelFlag     = flag.String("log-level", "", "log level: debug, info, warn, error")
	memtableSizeFlag = flag.Int64("memtable-size", 0, "memtable rotation threshold in bytes")
	sstableCountFlag = flag.Int("sstable-count", 0, "sstable count that triggers compaction")
)

// ServerConfig holds everything cmd/ridgedb-server needs to start.
type ServerConfig struct {
	ListenAddr            string
	AdminAddr             string
	DataDir               string
	LogLevel              string
	MemTableSizeThreshold int64
	SSTableCountThreshold int
	CompactionInterval    time.Duration
}

// CLIConfig holds everything cmd/ridgedb-cli needs to open its own engine.
type CLIConfig struct {
	DataDir               string
	LogLevel              string
	MemTableSizeThreshold int64
	SSTableCountThreshold int
	CompactionInterval    time.Duration
}

// LoadServerConfig loads a .env file if present, then layers flags over
// environment variables over compiled-in defaults.
func LoadServerConfig() ServerConfig {
	parseFlagsOnce()
	godotenv.Load(".env")

	return ServerConfig{
		ListenAddr:            firstNonEmpty(*listenAddrFlag, os.Getenv("RIDGEDB_LISTEN_ADDR"), ":6380"),
		AdminAddr:             firstNonEmpty(*adminAddrFlag, os.Getenv("RIDGEDB_ADMIN_ADDR"), ":6381"),
		DataDir:               firstNonEmpty(*dataDirFlag, os.Getenv("RIDGEDB_DATA_DIR"), "data"),
		LogLevel:              firstNonEmpty(*logLevelFlag, os.Getenv("RIDGEDB_LOG_LEVEL"), "info"),
		MemTableSizeThreshold: firstPositiveInt64(*memtableSizeFlag, envInt64("RIDGEDB_MEMTABLE_SIZE"), 32*1024*1024),
		SSTableCountThreshold: firstPositiveInt(*sstableCountFlag, envInt("RIDGEDB_SSTABLE_COUNT"), 100),
		CompactionInterval:    2 * time.Second,
	}
}

// LoadCLIConfig mirrors LoadServerConfig for the embedded-engine CLI.
func LoadCLIConfig() CLIConfig {
	parseFlagsOnce()
	godotenv.Load(".env")

	return CLIConfig{
		DataDir:               firstNonEmpty(*dataDirFlag, os.Getenv("RIDGEDB_DATA_DIR"), "data"),
		LogLevel:              firstNonEmpty(*logLevelFlag, os.Getenv("RIDGEDB_LOG_LEVEL"), "info"),
		MemTableSizeThreshold: firstPositiveInt64(*memtableSizeFlag, envInt64("RIDGEDB_MEMTABLE_SIZE"), 32*1024*1024),
		SSTableCountThreshold: firstPositiveInt(*sstableCountFlag, envInt("RIDGEDB_SSTABLE_COUNT"), 100),
		CompactionInterval:    2 * time.Second,
	}
}

// parseFlagsOnce parses the command-line flags the first time a Load*
// function is called, guarded so a second Load call in the same process
// (e.g. in tests) does not attempt to parse twice.
func parseFlagsOnce() {
	if !flag.Parsed() {
		flag.Parse()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositiveInt64(values ...int64) int64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstPositiveInt(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func envInt64(name string) int64 {
	v, err := strconv.ParseInt(os.Getenv(name), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func envInt(name string) int {
	v, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return 0
	}
	return v
}
