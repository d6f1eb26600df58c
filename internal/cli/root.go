// Package cli wires the ingestion pipeline into a single cobra command:
// flag handling, startup sequencing (config, logging, store, source), the
// run itself, and the final report.
package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mwarner/iot-ingest/internal/config"
	"github.com/mwarner/iot-ingest/internal/ingest"
	"github.com/mwarner/iot-ingest/internal/logging"
	"github.com/mwarner/iot-ingest/internal/store"
)

// metricsFileName is the run summary artifact written under the log dir.
const metricsFileName = "metrics.json"

var (
	sourceFile  string
	mongoURI    string
	dbName      string
	collection  string
	chunkSize   int
	separator   string
	encoding    string
	epochUnit   string
	keepRaw     bool
	maxAttempts int
	logLevel    string
)

// rootCmd is the whole surface of the tool: one batch run per invocation.
var rootCmd = &cobra.Command{
	Use:   "iotingest",
	Short: "Batch-load IoT sensor CSV data into MongoDB",
	Long: `iotingest reads a delimited file of sensor readings in bounded-size
chunks, normalizes each row into a canonical document keyed by a
deterministic hash of (device, timestamp), and bulk-inserts the documents
into a MongoDB collection. Re-running the same file is safe: previously
loaded readings are rejected as duplicates by the store's unique key.

The exit status reflects only startup failures (unreadable file, unreachable
store). Partial loss within a run is reported in the summary but does not
fail the run.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		closeLog, err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Dir)
		if err != nil {
			return fmt.Errorf("set up logging: %w", err)
		}
		defer closeLog()

		return run(cmd, cfg)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&sourceFile, "file", "", "path to the source CSV file (required)")
	f.StringVar(&mongoURI, "mongodb-uri", "", "store connection URI (default from MONGODB_URI)")
	f.StringVar(&dbName, "db", "", "target database name (default from MONGODB_DB)")
	f.StringVar(&collection, "collection", "", "target collection name (default from MONGODB_COLLECTION)")
	f.IntVar(&chunkSize, "chunk-size", 0, "rows per bulk insert (default from CHUNK_SIZE)")
	f.StringVar(&separator, "sep", "", "field separator (default from CSV_SEP)")
	f.StringVar(&encoding, "encoding", "", "source text encoding (default from CSV_ENCODING)")
	f.StringVar(&epochUnit, "epoch-unit", "", "timestamp unit: s, ms or auto (default from EPOCH_UNIT)")
	f.BoolVar(&keepRaw, "keep-raw", false, "include unmapped columns in a 'raw' field")
	f.IntVar(&maxAttempts, "max-attempts", 0, "bulk insert attempts per chunk (default from INGEST_MAX_ATTEMPTS)")
	f.StringVar(&logLevel, "log-level", "", "minimum log level (default from LOG_LEVEL)")
	rootCmd.MarkFlagRequired("file")
}

// loadConfig loads env-backed configuration and lets changed flags override
// it, then re-validates the merged result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("mongodb-uri") {
		cfg.Store.URI = mongoURI
	}
	if f.Changed("db") {
		cfg.Store.Database = dbName
	}
	if f.Changed("collection") {
		cfg.Store.Collection = collection
	}
	if f.Changed("chunk-size") {
		cfg.Source.ChunkSize = chunkSize
	}
	if f.Changed("sep") {
		cfg.Source.Separator = separator
	}
	if f.Changed("encoding") {
		cfg.Source.Encoding = encoding
	}
	if f.Changed("epoch-unit") {
		cfg.Source.EpochUnit = epochUnit
	}
	if f.Changed("keep-raw") {
		cfg.Source.KeepRaw = keepRaw
	}
	if f.Changed("max-attempts") {
		cfg.Retry.MaxAttempts = maxAttempts
	}
	if f.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// run performs one ingestion run. Any error returned here is a startup
// failure; once chunk processing begins, per-chunk conditions are absorbed
// into the report instead.
func run(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	log := slog.Default()

	log.Info("starting batch ingestion",
		"file", sourceFile,
		"db", cfg.Store.Database,
		"collection", cfg.Store.Collection,
		"chunk_size", cfg.Source.ChunkSize,
		"epoch_unit", cfg.Source.EpochUnit,
		"keep_raw", cfg.Source.KeepRaw,
	)

	st, err := store.Connect(ctx, store.Config{
		URI:            cfg.Store.URI,
		Database:       cfg.Store.Database,
		Collection:     cfg.Store.Collection,
		ConnectTimeout: cfg.Store.ConnectTimeout,
	})
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	chunks, err := ingest.OpenChunks(sourceFile, ingest.ReaderOptions{
		Separator: cfg.Source.SeparatorRune(),
		Encoding:  cfg.Source.Encoding,
		ChunkSize: cfg.Source.ChunkSize,
	})
	if err != nil {
		return err
	}
	defer chunks.Close()

	var metricsPath string
	if cfg.Logging.Dir != "" {
		metricsPath = filepath.Join(cfg.Logging.Dir, metricsFileName)
	}
	reporter := ingest.NewReporter(log, metricsPath)

	loader := ingest.NewLoader(st, log, ingest.LoaderOptions{
		Normalize: ingest.NormalizeOptions{
			EpochUnit: ingest.EpochUnit(cfg.Source.EpochUnit),
			KeepRaw:   cfg.Source.KeepRaw,
		},
		MaxAttempts: cfg.Retry.MaxAttempts,
		RetryDelay:  cfg.Retry.Delay,
	})

	runErr := loader.Run(ctx, chunks, reporter)
	if err := reporter.Close(); err != nil {
		log.Error("failed to write run metrics", "error", err)
	}
	if runErr != nil {
		return fmt.Errorf("ingestion aborted: %w", runErr)
	}

	log.Info("ingestion completed")
	return nil
}
