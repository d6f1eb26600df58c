// Package config provides centralized configuration for the ingestion tool.
// Settings load from environment variables with defaults, may be overridden
// by CLI flags, and are validated once at startup so a misconfigured run
// fails before touching the source file or the store.
package config

import "time"

// Config holds all tool configuration.
type Config struct {
	Store   StoreConfig
	Source  SourceConfig
	Retry   RetryConfig
	Logging LoggingConfig
}

// StoreConfig holds document store connection settings.
type StoreConfig struct {
	// URI is the store connection string.
	URI string `env:"MONGODB_URI" default:"mongodb://localhost:27017/?authSource=admin"`

	// Database is the target database name.
	Database string `env:"MONGODB_DB" default:"iot"`

	// Collection is the target collection name.
	Collection string `env:"MONGODB_COLLECTION" default:"measurements"`

	// ConnectTimeout bounds the startup connect-and-ping sequence.
	ConnectTimeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT" default:"10s"`
}

// SourceConfig holds source file format settings. The file path itself is a
// required CLI argument, not an environment variable.
type SourceConfig struct {
	// ChunkSize is rows per bulk insert (default: 50000)
	ChunkSize int `env:"CHUNK_SIZE" default:"50000"`

	// Separator is the field separator (default: ",")
	Separator string `env:"CSV_SEP" default:","`

	// Encoding is the IANA charset name of the source (default: utf-8)
	Encoding string `env:"CSV_ENCODING" default:"utf-8"`

	// EpochUnit selects timestamp interpretation: s, ms, or auto
	EpochUnit string `env:"EPOCH_UNIT" default:"auto"`

	// KeepRaw folds unmapped columns into a raw sub-document
	KeepRaw bool `env:"KEEP_RAW" default:"false"`
}

// RetryConfig holds transient-failure retry settings.
type RetryConfig struct {
	// MaxAttempts is bulk insert attempts per chunk (default: 3)
	MaxAttempts int `env:"INGEST_MAX_ATTEMPTS" default:"3"`

	// Delay is the fixed wait between attempts (default: 2s)
	Delay time.Duration `env:"INGEST_RETRY_DELAY" default:"2s"`
}

// LoggingConfig holds logging and metrics output settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json
	Format string `env:"LOG_FORMAT" default:"text"`

	// Dir receives ingestion.log and metrics.json (default: logs)
	Dir string `env:"LOG_DIR" default:"logs"`
}

// SeparatorRune returns the configured field separator as a rune, defaulting
// to a comma. "\t" is accepted for tab-separated sources.
func (s *SourceConfig) SeparatorRune() rune {
	if s.Separator == "\\t" || s.Separator == "\t" {
		return '\t'
	}
	for _, r := range s.Separator {
		return r
	}
	return ','
}
