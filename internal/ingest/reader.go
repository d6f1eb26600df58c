package ingest

// reader.go streams a delimited source file as fixed-size chunks of raw
// rows, keeping peak memory independent of file size. The byte stream is
// wrapped in order: BOM stripping, charset decoding, byte counting. Header
// normalization happens once per reader; each chunk carries the resulting
// HeaderIndex so a chunk is self-describing.

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// DefaultChunkSize bounds how many rows are normalized and submitted as one
// bulk insert. Large enough to amortize round trips, small enough to keep a
// chunk's documents comfortably in memory.
const DefaultChunkSize = 50_000

// ReaderOptions configures the source file format.
type ReaderOptions struct {
	Separator rune   // field separator, ',' when zero
	Encoding  string // IANA charset name, UTF-8 when empty
	ChunkSize int    // rows per chunk, DefaultChunkSize when zero
}

// Chunk is one bounded batch of raw rows plus the header they were read
// under. Chunks are numbered from 1 for log correlation.
type Chunk struct {
	Index   int
	Columns HeaderIndex
	Rows    [][]string
}

// ChunkReader reads a delimited file chunk by chunk.
type ChunkReader struct {
	csv     *csv.Reader
	counter *countingReader
	closer  io.Closer
	cols    HeaderIndex
	size    int
	index   int
}

// OpenChunks opens path and prepares a ChunkReader over it. The header row
// is consumed and normalized immediately; an unreadable header is a startup
// failure, not a chunk failure.
func OpenChunks(path string, opts ReaderOptions) (*ChunkReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	cr, err := NewChunkReader(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	cr.closer = f
	return cr, nil
}

// NewChunkReader wraps an already-open stream.
func NewChunkReader(r io.Reader, opts ReaderOptions) (*ChunkReader, error) {
	decoded, err := decodeReader(skipBOM(r), opts.Encoding)
	if err != nil {
		return nil, err
	}
	counter := &countingReader{r: decoded}

	c := csv.NewReader(counter)
	c.Comma = opts.Separator
	if c.Comma == 0 {
		c.Comma = ','
	}
	c.FieldsPerRecord = -1
	c.LazyQuotes = true
	c.ReuseRecord = false

	header, err := c.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("source file is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	return &ChunkReader{
		csv:     c,
		counter: counter,
		cols:    MakeHeaderIndex(header),
		size:    size,
	}, nil
}

// Columns returns the normalized header index for the source.
func (c *ChunkReader) Columns() HeaderIndex { return c.cols }

// BytesRead reports decoded bytes consumed so far, for progress logging.
func (c *ChunkReader) BytesRead() int64 { return c.counter.n }

// Next returns the next chunk of rows, or io.EOF when the source is
// exhausted. Malformed lines are skipped, mirroring the lenient posture of
// the rest of the pipeline: a bad line costs one row, never the run.
func (c *ChunkReader) Next() (*Chunk, error) {
	rows := make([][]string, 0, c.size)
	for len(rows) < c.size {
		rec, err := c.csv.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return nil, fmt.Errorf("read row: %w", err)
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, io.EOF
	}
	c.index++
	return &Chunk{Index: c.index, Columns: c.cols, Rows: rows}, nil
}

// Close releases the underlying file, if the reader owns one.
func (c *ChunkReader) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// skipBOM strips a leading UTF-8 byte order mark, commonly added by Windows
// tools that exported the source file.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		br.Discard(3)
	}
	return br
}

// decodeReader resolves an IANA charset name and wraps r so downstream
// consumers always see UTF-8.
func decodeReader(r io.Reader, name string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return r, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// countingReader tracks bytes read for progress reporting.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
