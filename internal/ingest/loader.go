package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson"
)

// ErrTransient marks a store failure that is expected to be recoverable by
// retrying (lost connection, timeout). Store adapters join it onto such
// errors so the loader can classify without knowing driver types.
var ErrTransient = errors.New("transient store error")

// InsertResult is the store's accounting for one unordered bulk insert.
// Duplicate-key rejections are an expected outcome, not an error: the store
// adapter absorbs them and reports counts instead.
type InsertResult struct {
	Inserted   int
	Duplicates int
	// Failed counts write rejections that were neither inserts nor
	// duplicates. They are terminal for the affected rows.
	Failed int
}

// Sink is the narrow contract the loader needs from the document store.
type Sink interface {
	BulkInsert(ctx context.Context, docs []bson.M) (InsertResult, error)
}

// ChunkSource yields chunks until io.EOF. Satisfied by *ChunkReader.
type ChunkSource interface {
	Next() (*Chunk, error)
}

// ChunkStatus is the terminal state of one chunk's READ→NORMALIZE→INSERT
// sequence.
type ChunkStatus string

const (
	// ChunkSuccess: every submitted document was inserted.
	ChunkSuccess ChunkStatus = "success"
	// ChunkPartial: inserted alongside duplicate-key rejections.
	ChunkPartial ChunkStatus = "partial"
	// ChunkEmpty: no row in the chunk produced a valid document.
	ChunkEmpty ChunkStatus = "empty"
	// ChunkSkipped: a required column is missing; nothing was submitted.
	ChunkSkipped ChunkStatus = "skipped"
	// ChunkLost: transient failures exhausted the retry budget; the
	// chunk's rows were neither inserted nor counted as duplicates.
	ChunkLost ChunkStatus = "lost"
	// ChunkFailed: an unclassified insert failure; the chunk was
	// abandoned.
	ChunkFailed ChunkStatus = "failed"
)

// ChunkReport is the tagged outcome of one chunk.
type ChunkReport struct {
	Index      int
	Status     ChunkStatus
	Rows       int // raw rows seen in the chunk
	Dropped    int // rows without a computable id, filtered pre-submit
	Inserted   int
	Duplicates int
	Failed     int
	Lost       int // rows lost to retry exhaustion or abandonment
	Attempts   int
	Err        error
}

// LoaderOptions tunes the batch loader.
type LoaderOptions struct {
	Normalize   NormalizeOptions
	MaxAttempts int           // bulk insert attempts per chunk, default 3
	RetryDelay  time.Duration // fixed delay between attempts, default 2s
}

// Loader drives the ingestion run: it pulls chunks from a source,
// normalizes rows, and submits the surviving documents as unordered bulk
// inserts, applying bounded retry on transient store errors.
//
// Chunks are processed strictly sequentially. One chunk's failure, loss, or
// skip never aborts the run; only the source erroring out does.
type Loader struct {
	sink Sink
	log  *slog.Logger
	opts LoaderOptions
}

// NewLoader builds a Loader. A nil logger falls back to slog.Default.
func NewLoader(sink Sink, logger *slog.Logger, opts LoaderOptions) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	return &Loader{sink: sink, log: logger, opts: opts}
}

// Run processes every chunk the source yields, reporting each outcome to
// the reporter. It returns an error only when the source itself fails;
// per-chunk conditions are reflected in the reporter's totals.
func (l *Loader) Run(ctx context.Context, src ChunkSource, rep *Reporter) error {
	for {
		chunk, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		rep.Observe(l.ProcessChunk(ctx, chunk))
	}
}

// ProcessChunk runs one chunk through normalize-then-insert and returns its
// tagged outcome.
func (l *Loader) ProcessChunk(ctx context.Context, chunk *Chunk) ChunkReport {
	report := ChunkReport{Index: chunk.Index, Rows: len(chunk.Rows)}
	log := l.log.With("chunk", chunk.Index)

	// Identity cannot be computed for any row without the required
	// columns, so the chunk is skipped wholesale rather than partially
	// processed.
	if !chunk.Columns.HasRequired() {
		report.Status = ChunkSkipped
		log.Error("missing required columns, skipping chunk",
			"required", []string{DeviceColumn, TimeColumn})
		return report
	}

	docs := make([]bson.M, 0, len(chunk.Rows))
	for _, row := range chunk.Rows {
		doc, ok := NormalizeRow(row, chunk.Columns, l.opts.Normalize)
		if !ok {
			report.Dropped++
			continue
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		report.Status = ChunkEmpty
		log.Warn("no valid documents in chunk", "rows", report.Rows)
		return report
	}

	res, attempts, err := l.insertWithRetry(ctx, log, docs)
	report.Attempts = attempts
	switch {
	case err == nil:
		report.Inserted = res.Inserted
		report.Duplicates = res.Duplicates
		report.Failed = res.Failed
		if res.Duplicates > 0 || res.Failed > 0 {
			report.Status = ChunkPartial
			log.Warn("chunk partially inserted",
				"inserted", res.Inserted,
				"duplicates", res.Duplicates,
				"failed", res.Failed,
				"submitted", len(docs))
		} else {
			report.Status = ChunkSuccess
			log.Info("chunk inserted", "inserted", res.Inserted, "submitted", len(docs))
		}
	case errors.Is(err, ErrTransient):
		report.Status = ChunkLost
		report.Lost = len(docs)
		report.Err = err
		log.Error("chunk lost after exhausting retries",
			"attempts", attempts, "rows", len(docs), "error", err)
	default:
		report.Status = ChunkFailed
		report.Lost = len(docs)
		report.Err = err
		log.Error("unexpected insert failure, abandoning chunk",
			"rows", len(docs), "error", err)
	}
	return report
}

// insertWithRetry submits one unordered bulk insert, retrying only
// transient failures with a fixed delay up to the attempt ceiling.
// Duplicate-key outcomes arrive as a successful InsertResult and are never
// retried; any other error is permanent for the chunk.
func (l *Loader) insertWithRetry(ctx context.Context, log *slog.Logger, docs []bson.M) (InsertResult, int, error) {
	var res InsertResult
	attempts := 0

	op := func() error {
		attempts++
		var err error
		res, err = l.sink.BulkInsert(ctx, docs)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrTransient) {
			log.Error("bulk insert attempt failed", "attempt", attempts, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(l.opts.RetryDelay),
			uint64(l.opts.MaxAttempts-1),
		),
		ctx,
	)
	err := backoff.Retry(op, policy)
	return res, attempts, err
}
