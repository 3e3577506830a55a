package spool

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shanaa-yasmin/Cognivex/internal/database"
	"github.com/Shanaa-yasmin/Cognivex/internal/models"
)

func setupTestSpool(t *testing.T) *Spool {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "cognivex-spool-test-*")
	require.NoError(t, err)

	db, err := database.New(filepath.Join(tmpDir, "test.db"), zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
		os.RemoveAll(tmpDir)
	})

	return New(db.DB, zap.NewNop())
}

func testBatch(id string, events int) models.BatchRecord {
	batch := models.BatchRecord{
		BatchID: id,
		UserID:  "user-1",
	}
	for i := 0; i < events; i++ {
		batch.KeystrokeData = append(batch.KeystrokeData, models.CaptureEvent{
			Type:      models.EventKeyDown,
			Timestamp: int64(i),
			Key:       &models.KeyData{Key: "a"},
		})
	}
	return batch
}

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	s := setupTestSpool(t)

	require.NoError(t, s.Enqueue(testBatch("b1", 3)))
	require.NoError(t, s.Enqueue(testBatch("b2", 1)))

	count, err := s.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	batches, ids, err := s.Dequeue(10)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	require.Len(t, ids, 2)

	// oldest first
	assert.Equal(t, "b1", batches[0].BatchID)
	assert.Len(t, batches[0].KeystrokeData, 3)
	assert.Equal(t, "a", batches[0].KeystrokeData[0].Key.Key)
	assert.Equal(t, "b2", batches[1].BatchID)
}

func TestDequeueRespectsLimit(t *testing.T) {
	s := setupTestSpool(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Enqueue(testBatch("b", 1)))
	}

	batches, _, err := s.Dequeue(2)
	require.NoError(t, err)
	assert.Len(t, batches, 2)
}

func TestRemoveDeletesDelivered(t *testing.T) {
	s := setupTestSpool(t)

	require.NoError(t, s.Enqueue(testBatch("b1", 1)))
	require.NoError(t, s.Enqueue(testBatch("b2", 1)))

	_, ids, err := s.Dequeue(1)
	require.NoError(t, err)
	require.NoError(t, s.Remove(ids))

	count, err := s.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	batches, _, err := s.Dequeue(10)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "b2", batches[0].BatchID)
}

func TestRemoveEmptyIsNoop(t *testing.T) {
	s := setupTestSpool(t)
	assert.NoError(t, s.Remove(nil))
}

func TestIncrementRetry(t *testing.T) {
	s := setupTestSpool(t)

	require.NoError(t, s.Enqueue(testBatch("b1", 1)))
	_, ids, err := s.Dequeue(1)
	require.NoError(t, err)

	require.NoError(t, s.IncrementRetry(ids))
	require.NoError(t, s.IncrementRetry(ids))

	// the batch is still pending after failed attempts
	count, err := s.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCleanupOldSparesRecentAndRetryable(t *testing.T) {
	s := setupTestSpool(t)

	require.NoError(t, s.Enqueue(testBatch("fresh", 1)))
	require.NoError(t, s.CleanupOld(time.Hour))

	count, err := s.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
