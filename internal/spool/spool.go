// Package spool persists batches that could not be delivered or that
// overflowed the in-memory buffer cap during a sustained sink outage.
// Spooled batches are retried by the monitor's drain loop.
package spool

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Shanaa-yasmin/Cognivex/internal/models"
)

// Spool manages the local queue of undelivered batches
type Spool struct {
	db     *sql.DB
	logger *zap.Logger
}

// New creates a spool backed by the given database
func New(db *sql.DB, logger *zap.Logger) *Spool {
	return &Spool{
		db:     db,
		logger: logger,
	}
}

// Enqueue persists one batch
func (s *Spool) Enqueue(batch models.BatchRecord) error {
	batchJSON, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO spooled_batches (batch_json, event_count, created_at, retry_count)
		VALUES (?, ?, ?, 0)
	`, string(batchJSON), batch.EventCount(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to spool batch: %w", err)
	}

	s.logger.Debug("Batch spooled",
		zap.String("batch_id", batch.BatchID),
		zap.Int("event_count", batch.EventCount()),
	)

	return nil
}

// Dequeue retrieves up to limit spooled batches, oldest first
func (s *Spool) Dequeue(limit int) ([]models.BatchRecord, []int64, error) {
	rows, err := s.db.Query(`
		SELECT id, batch_json, retry_count
		FROM spooled_batches
		ORDER BY created_at ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query spooled batches: %w", err)
	}
	defer rows.Close()

	var batches []models.BatchRecord
	var ids []int64

	for rows.Next() {
		var id int64
		var batchJSON string
		var retryCount int

		if err := rows.Scan(&id, &batchJSON, &retryCount); err != nil {
			s.logger.Error("Failed to scan row", zap.Error(err))
			continue
		}

		var batch models.BatchRecord
		if err := json.Unmarshal([]byte(batchJSON), &batch); err != nil {
			s.logger.Error("Failed to unmarshal spooled batch", zap.Error(err), zap.Int64("id", id))
			// Remove corrupted entry
			s.db.Exec("DELETE FROM spooled_batches WHERE id = ?", id)
			continue
		}

		batches = append(batches, batch)
		ids = append(ids, id)
	}

	return batches, ids, nil
}

// Remove deletes spooled batches by id after successful delivery
func (s *Spool) Remove(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := "DELETE FROM spooled_batches WHERE id IN ("
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		args[i] = id
	}
	query += ")"

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to remove spooled batches: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	s.logger.Debug("Spooled batches removed",
		zap.Int64("count", rowsAffected),
	)

	return nil
}

// IncrementRetry bumps the retry count after a failed delivery attempt
func (s *Spool) IncrementRetry(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := "UPDATE spooled_batches SET retry_count = retry_count + 1, last_attempt = ? WHERE id IN ("
	args := make([]interface{}, len(ids)+1)
	args[0] = time.Now()
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		args[i+1] = id
	}
	query += ")"

	_, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to increment retry: %w", err)
	}

	return nil
}

// PendingCount returns the number of spooled batches
func (s *Spool) PendingCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM spooled_batches`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending count: %w", err)
	}
	return count, nil
}

// CleanupOld removes batches older than the given age that have
// exhausted their retries
func (s *Spool) CleanupOld(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	result, err := s.db.Exec(`
		DELETE FROM spooled_batches
		WHERE created_at < ? AND retry_count > 10
	`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup old batches: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.logger.Info("Cleaned up old spooled batches",
			zap.Int64("count", rowsAffected),
		)
	}

	return nil
}
