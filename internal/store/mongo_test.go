package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mwarner/iot-ingest/internal/ingest"
)

func dupWriteError(index int) mongo.BulkWriteError {
	return mongo.BulkWriteError{
		WriteError: mongo.WriteError{
			Index:   index,
			Code:    11000,
			Message: "E11000 duplicate key error collection: iot.measurements",
		},
	}
}

func TestClassifyCleanInsert(t *testing.T) {
	res, err := classify(100, nil)
	require.NoError(t, err)
	assert.Equal(t, ingest.InsertResult{Inserted: 100}, res)
}

func TestClassifyDuplicatesArePartialSuccess(t *testing.T) {
	bwe := mongo.BulkWriteException{
		WriteErrors: []mongo.BulkWriteError{
			dupWriteError(3), dupWriteError(17), dupWriteError(42),
		},
	}

	res, err := classify(100, bwe)
	require.NoError(t, err, "duplicate rejections must not surface as an error")
	assert.Equal(t, 97, res.Inserted)
	assert.Equal(t, 3, res.Duplicates)
	assert.Zero(t, res.Failed)
}

func TestClassifyMixedWriteErrors(t *testing.T) {
	bwe := mongo.BulkWriteException{
		WriteErrors: []mongo.BulkWriteError{
			dupWriteError(0),
			{WriteError: mongo.WriteError{Index: 1, Code: 121, Message: "Document failed validation"}},
		},
	}

	res, err := classify(10, bwe)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Inserted)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Failed)
}

func TestClassifyTransient(t *testing.T) {
	netErr := mongo.CommandError{
		Code:    6,
		Message: "connection closed",
		Labels:  []string{"NetworkError"},
	}

	_, err := classify(10, netErr)
	assert.ErrorIs(t, err, ingest.ErrTransient)

	_, err = classify(10, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ingest.ErrTransient)
}

func TestClassifyUnexpectedPassesThrough(t *testing.T) {
	boom := errors.New("object too large")
	_, err := classify(10, boom)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ingest.ErrTransient)
}
