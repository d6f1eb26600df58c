package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporterAggregates(t *testing.T) {
	rep := NewReporter(discardLogger(), "")

	rep.Observe(ChunkReport{Index: 1, Status: ChunkSuccess, Rows: 100, Inserted: 100})
	rep.Observe(ChunkReport{Index: 2, Status: ChunkPartial, Rows: 100, Inserted: 90, Duplicates: 10})
	rep.Observe(ChunkReport{Index: 3, Status: ChunkSkipped, Rows: 50})
	rep.Observe(ChunkReport{Index: 4, Status: ChunkLost, Rows: 80, Dropped: 5, Lost: 75})

	sum := rep.Summary()
	assert.Equal(t, 330, sum.RowsSeen)
	assert.Equal(t, 190, sum.Inserted)
	assert.Equal(t, 10, sum.Duplicates)
	assert.Equal(t, 5, sum.Dropped)
	assert.Equal(t, 75, sum.Lost)
	assert.Equal(t, 4, sum.Chunks)
	assert.Equal(t, 1, sum.ChunksSkipped)
	assert.Equal(t, 1, sum.ChunksLost)
	assert.Equal(t, rep.RunID(), sum.RunID)
	assert.False(t, sum.CompletedAt.IsZero())
}

func TestReporterWritesMetricsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "metrics.json")
	rep := NewReporter(discardLogger(), path)
	rep.Observe(ChunkReport{Index: 1, Status: ChunkSuccess, Rows: 3, Inserted: 3})

	require.NoError(t, rep.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got RunReport
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 3, got.RowsSeen)
	assert.Equal(t, 3, got.Inserted)
	assert.Equal(t, rep.RunID(), got.RunID)
}

func TestReporterNoPathSkipsArtifact(t *testing.T) {
	rep := NewReporter(discardLogger(), "")
	assert.NoError(t, rep.Close())
}
