package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// RunReport is the run summary artifact, written once per run independent
// of per-chunk logging.
type RunReport struct {
	RunID         string    `json:"run_id"`
	RowsSeen      int       `json:"rows_seen"`
	Inserted      int       `json:"inserted"`
	Duplicates    int       `json:"duplicates"`
	Dropped       int       `json:"dropped"`
	Lost          int       `json:"lost"`
	Chunks        int       `json:"chunks"`
	ChunksSkipped int       `json:"chunks_skipped"`
	ChunksLost    int       `json:"chunks_lost"`
	DurationSec   float64   `json:"duration_sec"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Reporter aggregates per-chunk outcomes into run-level totals and writes
// the metrics artifact when the run closes. It is updated only by the
// single processing goroutine; it carries no locking.
//
// Lifecycle: create at run start, Observe per chunk, Close at run end.
type Reporter struct {
	log     *slog.Logger
	path    string // metrics file destination, "" disables the artifact
	runID   string
	started time.Time
	report  RunReport
}

// NewReporter starts a reporter for one run. path may be empty to skip the
// metrics file.
func NewReporter(logger *slog.Logger, path string) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Reporter{
		log:     logger.With("run_id", id),
		path:    path,
		runID:   id,
		started: time.Now(),
	}
}

// RunID identifies this run in logs and the metrics artifact.
func (r *Reporter) RunID() string { return r.runID }

// Observe folds one chunk outcome into the running totals.
func (r *Reporter) Observe(c ChunkReport) {
	r.report.Chunks++
	r.report.RowsSeen += c.Rows
	r.report.Dropped += c.Dropped
	r.report.Inserted += c.Inserted
	r.report.Duplicates += c.Duplicates
	r.report.Lost += c.Lost
	switch c.Status {
	case ChunkSkipped:
		r.report.ChunksSkipped++
	case ChunkLost:
		r.report.ChunksLost++
	}
}

// Summary returns the totals as they stand, stamping duration and
// completion time.
func (r *Reporter) Summary() RunReport {
	s := r.report
	s.RunID = r.runID
	s.DurationSec = time.Since(r.started).Seconds()
	s.CompletedAt = time.Now().UTC().Truncate(time.Second)
	return s
}

// Close logs the run summary and writes the metrics artifact. Partial loss
// within the run is reported here but does not make Close fail; only an
// unwritable artifact does.
func (r *Reporter) Close() error {
	s := r.Summary()
	r.log.Info("run complete",
		"rows_seen", s.RowsSeen,
		"inserted", s.Inserted,
		"duplicates", s.Duplicates,
		"dropped", s.Dropped,
		"lost", s.Lost,
		"chunks", s.Chunks,
		"chunks_skipped", s.ChunksSkipped,
		"duration_sec", fmt.Sprintf("%.2f", s.DurationSec),
	)

	if r.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	r.log.Info("metrics written", "path", r.path)
	return nil
}
