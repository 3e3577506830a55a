// Package monitor owns the behavioral event buffer and drives the flush
// policy: a count threshold checked after every capture, an idle timer
// re-armed on every flush decision, and forced flushes for visibility,
// unload and logout signals.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shanaa-yasmin/Cognivex/internal/buffer"
	"github.com/Shanaa-yasmin/Cognivex/internal/models"
	"github.com/Shanaa-yasmin/Cognivex/internal/pagectx"
)

// Sink delivers one batch per call to the remote data store
type Sink interface {
	Insert(ctx context.Context, batch models.BatchRecord) error
}

// SessionResolver resolves the acting user identity
type SessionResolver interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// BatchSpool persists batches across sink outages
type BatchSpool interface {
	Enqueue(batch models.BatchRecord) error
	Dequeue(limit int) ([]models.BatchRecord, []int64, error)
	Remove(ids []int64) error
	IncrementRetry(ids []int64) error
	PendingCount() (int, error)
}

// ContextSource supplies the page context for batch metadata
type ContextSource interface {
	Latest() (pagectx.PageContext, bool)
}

// Options configures a Monitor
type Options struct {
	BatchSize         int           // threshold trigger, events across all families
	BatchInterval     time.Duration // idle timer
	MaxBufferedEvents int           // buffer cap during sink outages, 0 = unbounded
	SpoolInterval     time.Duration // spool drain cadence
	ClientID          string
}

// Monitor buffers captured events and flushes them as batches
type Monitor struct {
	sink    Sink
	session SessionResolver
	spool   BatchSpool
	pages   ContextSource
	opts    Options
	logger  *zap.Logger

	mu         sync.Mutex
	buf        *buffer.Buffer
	monitoring bool
	idleTimer  *time.Timer
	lastUserID string

	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a monitor. The spool and page context source may be nil.
func New(sink Sink, session SessionResolver, spool BatchSpool, pages ContextSource, opts Options, logger *zap.Logger) *Monitor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.BatchInterval <= 0 {
		opts.BatchInterval = 10 * time.Second
	}
	if opts.SpoolInterval <= 0 {
		opts.SpoolInterval = 60 * time.Second
	}

	m := &Monitor{
		sink:     sink,
		session:  session,
		spool:    spool,
		pages:    pages,
		opts:     opts,
		logger:   logger,
		buf:      buffer.New(),
		stopChan: make(chan struct{}),
	}

	if m.spool != nil {
		m.wg.Add(1)
		go m.drainLoop()
	}

	return m
}

// Start begins monitoring. Idempotent: a second call while monitoring is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.monitoring {
		return
	}
	m.monitoring = true
	m.armIdleTimerLocked()

	m.logger.Info("Behavior monitoring started",
		zap.Int("batch_size", m.opts.BatchSize),
		zap.Duration("batch_interval", m.opts.BatchInterval),
	)
}

// Stop halts monitoring and cancels the pending idle timer. Buffered events
// are retained: stopping is not flushing. Callers needing a clean handoff
// flush first (the logout flow flushes, then stops, in that order).
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.monitoring {
		return
	}
	m.monitoring = false
	m.cancelIdleTimerLocked()

	m.logger.Info("Behavior monitoring stopped",
		zap.Int("buffered_events", m.buf.Len()),
	)
}

// IsMonitoring reports whether capture is active
func (m *Monitor) IsMonitoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.monitoring
}

// Record appends one captured event. Events arriving while monitoring is
// stopped are dropped, not queued. When the buffered total reaches the batch
// size a send is triggered before this call returns.
func (m *Monitor) Record(ev models.CaptureEvent) {
	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return
	}
	m.buf.Append(ev)
	if m.buf.Len() < m.opts.BatchSize {
		m.mu.Unlock()
		return
	}

	// Threshold reached: detach the snapshot in the same critical section
	// so overlapping sends never see the same events twice.
	snap := m.detachLocked()
	m.mu.Unlock()

	if err := m.transmit(context.Background(), snap); err != nil {
		m.logger.Warn("Threshold flush failed",
			zap.Error(err),
			zap.Int("event_count", snap.Len()),
		)
	}
}

// Flush sends whatever is buffered. A no-op when monitoring is stopped.
// An empty buffer skips the network send but still re-arms the idle timer.
func (m *Monitor) Flush(ctx context.Context) error {
	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return nil
	}
	if m.buf.Len() == 0 {
		m.cancelIdleTimerLocked()
		m.armIdleTimerLocked()
		m.mu.Unlock()
		return nil
	}
	snap := m.detachLocked()
	m.mu.Unlock()

	return m.transmit(ctx, snap)
}

// Shutdown performs a final flush, spools anything that could not be
// delivered, and stops the monitor and its drain loop.
func (m *Monitor) Shutdown(ctx context.Context) {
	if err := m.Flush(ctx); err != nil {
		m.logger.Warn("Final flush failed", zap.Error(err))
	}
	m.Stop()

	// Failed final flushes restore to the buffer; don't lose them across restarts.
	m.mu.Lock()
	snap := m.buf.Snapshot()
	m.buf.Clear()
	userID := m.lastUserID
	m.mu.Unlock()

	if snap.Len() > 0 {
		if m.spool != nil {
			if err := m.spool.Enqueue(m.buildBatchRecord(snap, userID)); err != nil {
				m.logger.Error("Failed to spool remaining events", zap.Error(err),
					zap.Int("event_count", snap.Len()))
			} else {
				m.logger.Info("Spooled remaining events for next run",
					zap.Int("event_count", snap.Len()))
			}
		} else {
			m.logger.Warn("Dropping undelivered events on shutdown",
				zap.Int("event_count", snap.Len()))
		}
	}

	m.closeOnce.Do(func() { close(m.stopChan) })
	m.wg.Wait()
}

// Status returns diagnostic counters
func (m *Monitor) Status() map[string]interface{} {
	m.mu.Lock()
	keystrokes, pointer, scroll := m.buf.Counts()
	monitoring := m.monitoring
	m.mu.Unlock()

	status := map[string]interface{}{
		"monitoring":          monitoring,
		"buffered_keystrokes": keystrokes,
		"buffered_pointer":    pointer,
		"buffered_scroll":     scroll,
	}
	if m.spool != nil {
		if pending, err := m.spool.PendingCount(); err == nil {
			status["spooled_batches"] = pending
		}
	}
	return status
}

// detachLocked snapshots and clears the buffer and cancels the pending idle
// timer as one step. Caller holds the lock.
func (m *Monitor) detachLocked() buffer.Snapshot {
	m.cancelIdleTimerLocked()
	snap := m.buf.Snapshot()
	m.buf.Clear()
	return snap
}

// transmit delivers a detached snapshot. On failure the snapshot is merged
// back ahead of anything captured since; the idle timer is re-armed on both
// paths so a failed send never leaves the scheduler permanently idle.
func (m *Monitor) transmit(ctx context.Context, snap buffer.Snapshot) error {
	batch := m.buildBatchRecord(snap, m.resolveActor(ctx))

	err := m.sink.Insert(ctx, batch)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.buf.Restore(snap)
		m.enforceCapLocked()
		m.armIdleTimerLocked()
		m.logger.Warn("Batch send failed, buffer preserved for retry",
			zap.Error(err),
			zap.Int("event_count", snap.Len()),
		)
		return err
	}

	m.armIdleTimerLocked()
	m.logger.Debug("Batch delivered",
		zap.String("batch_id", batch.BatchID),
		zap.Int("event_count", snap.Len()),
	)
	return nil
}

// resolveActor returns the current user id, degrading to the anonymous
// sentinel on any session failure
func (m *Monitor) resolveActor(ctx context.Context) string {
	userID, err := m.session.CurrentUserID(ctx)
	if err != nil || userID == "" {
		m.logger.Debug("Session resolution failed, recording as anonymous", zap.Error(err))
		userID = models.AnonymousUser
	}

	m.mu.Lock()
	m.lastUserID = userID
	m.mu.Unlock()
	return userID
}

func (m *Monitor) buildBatchRecord(snap buffer.Snapshot, userID string) models.BatchRecord {
	var meta models.BatchMetadata
	if m.pages != nil {
		if pc, ok := m.pages.Latest(); ok {
			meta = pc.Metadata()
		}
	}
	if userID == "" {
		userID = models.AnonymousUser
	}

	return models.BatchRecord{
		BatchID:       uuid.New().String(),
		ClientID:      m.opts.ClientID,
		UserID:        userID,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		KeystrokeData: snap.Keystrokes,
		MouseData:     snap.Pointer,
		ScrollData:    snap.Scroll,
		Metadata:      meta,
	}
}

// enforceCapLocked bounds buffer growth during sustained sink outages by
// moving the oldest overflow into the spool, or dropping it when no spool
// is configured. Caller holds the lock.
func (m *Monitor) enforceCapLocked() {
	if m.opts.MaxBufferedEvents <= 0 || m.buf.Len() <= m.opts.MaxBufferedEvents {
		return
	}
	overflow := m.buf.Len() - m.opts.MaxBufferedEvents
	trimmed := m.buf.TrimOldest(overflow)

	if m.spool == nil {
		m.logger.Warn("Buffer cap reached, dropping oldest events",
			zap.Int("dropped", trimmed.Len()),
		)
		return
	}

	if err := m.spool.Enqueue(m.buildBatchRecord(trimmed, m.lastUserID)); err != nil {
		m.logger.Error("Failed to spool overflow events", zap.Error(err),
			zap.Int("event_count", trimmed.Len()))
		return
	}
	m.logger.Info("Buffer cap reached, overflow spooled",
		zap.Int("event_count", trimmed.Len()),
	)
}

// armIdleTimerLocked schedules the idle flush. At most one timer is pending
// at any instant: any previous timer was cancelled by the caller's flush
// decision. Caller holds the lock.
func (m *Monitor) armIdleTimerLocked() {
	if !m.monitoring {
		return
	}
	m.cancelIdleTimerLocked()
	m.idleTimer = time.AfterFunc(m.opts.BatchInterval, m.onIdleTimeout)
}

func (m *Monitor) cancelIdleTimerLocked() {
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
}

func (m *Monitor) onIdleTimeout() {
	if err := m.Flush(context.Background()); err != nil {
		m.logger.Warn("Idle flush failed", zap.Error(err))
	}
}

// drainLoop retries spooled batches until shutdown
func (m *Monitor) drainLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.SpoolInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.drainSpool()
		case <-m.stopChan:
			// one last attempt before exiting
			m.drainSpool()
			return
		}
	}
}

// drainSpool attempts to deliver spooled batches, oldest first, stopping at
// the first failure
func (m *Monitor) drainSpool() {
	pending, err := m.spool.PendingCount()
	if err != nil {
		m.logger.Error("Failed to get spool count", zap.Error(err))
		return
	}
	if pending == 0 {
		return
	}

	m.logger.Debug("Draining spooled batches", zap.Int("pending", pending))

	batches, ids, err := m.spool.Dequeue(10)
	if err != nil {
		m.logger.Error("Failed to dequeue spooled batches", zap.Error(err))
		return
	}

	var delivered []int64
	for i, batch := range batches {
		if err := m.sink.Insert(context.Background(), batch); err != nil {
			m.logger.Warn("Failed to send spooled batch",
				zap.Error(err),
				zap.String("batch_id", batch.BatchID),
			)
			if retryErr := m.spool.IncrementRetry(ids[i:]); retryErr != nil {
				m.logger.Error("Failed to increment retry count", zap.Error(retryErr))
			}
			break
		}
		delivered = append(delivered, ids[i])
	}

	if len(delivered) > 0 {
		if err := m.spool.Remove(delivered); err != nil {
			m.logger.Error("Failed to remove delivered batches from spool", zap.Error(err))
		} else {
			m.logger.Info("Delivered spooled batches", zap.Int("count", len(delivered)))
		}
	}
}
