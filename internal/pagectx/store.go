package pagectx

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Shanaa-yasmin/Cognivex/internal/models"
)

// PageContext is the page/session environment reported by the extension
// for one tab. It feeds the metadata block of every batch.
type PageContext struct {
	TabID     string `json:"tab_id"`
	URL       string `json:"url"`
	Referrer  string `json:"referrer"`
	UserAgent string `json:"user_agent"`
	ScreenW   int    `json:"screen_w"`
	ScreenH   int    `json:"screen_h"`
	ViewportW int    `json:"viewport_w"`
	ViewportH int    `json:"viewport_h"`
}

// Metadata renders the context as batch metadata
func (p PageContext) Metadata() models.BatchMetadata {
	meta := models.BatchMetadata{
		UserAgent: p.UserAgent,
		URL:       p.URL,
		Referrer:  p.Referrer,
	}
	if p.ScreenW > 0 || p.ScreenH > 0 {
		meta.ScreenResolution = fmt.Sprintf("%dx%d", p.ScreenW, p.ScreenH)
	}
	if p.ViewportW > 0 || p.ViewportH > 0 {
		meta.ViewportSize = fmt.Sprintf("%dx%d", p.ViewportW, p.ViewportH)
	}
	return meta
}

type entry struct {
	ctx       PageContext
	updatedAt time.Time
}

// Store provides thread-safe storage of the latest page context per tab,
// with TTL-based expiration
type Store struct {
	mu        sync.RWMutex
	tabs      map[string]*entry
	latestTab string
	ttl       time.Duration
	logger    *zap.Logger
	stopChan  chan struct{}
	cleanupWg sync.WaitGroup
}

// NewStore creates a page context store with TTL-based expiration
func NewStore(ttlSeconds int, logger *zap.Logger) *Store {
	store := &Store{
		tabs:     make(map[string]*entry),
		ttl:      time.Duration(ttlSeconds) * time.Second,
		logger:   logger,
		stopChan: make(chan struct{}),
	}

	store.cleanupWg.Add(1)
	go store.cleanupLoop()

	return store
}

// Update stores or refreshes the context for a tab
func (s *Store) Update(ctx PageContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ctx.TabID
	s.tabs[key] = &entry{ctx: ctx, updatedAt: time.Now()}
	s.latestTab = key

	s.logger.Debug("Page context updated",
		zap.String("tab_id", ctx.TabID),
		zap.String("url", ctx.URL),
	)
}

// Latest returns the most recently updated, unexpired page context.
// The zero value is returned when nothing usable is stored; batch
// metadata then carries empty fields rather than stale ones.
func (s *Store) Latest() (PageContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.tabs[s.latestTab]; ok && time.Since(e.updatedAt) <= s.ttl {
		return e.ctx, true
	}

	// fall back to any unexpired tab
	var best *entry
	for _, e := range s.tabs {
		if time.Since(e.updatedAt) > s.ttl {
			continue
		}
		if best == nil || e.updatedAt.After(best.updatedAt) {
			best = e
		}
	}
	if best == nil {
		return PageContext{}, false
	}
	return best.ctx, true
}

// Get returns the unexpired context for a specific tab
func (s *Store) Get(tabID string) (PageContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.tabs[tabID]
	if !ok || time.Since(e.updatedAt) > s.ttl {
		return PageContext{}, false
	}
	return e.ctx, true
}

func (s *Store) cleanupLoop() {
	defer s.cleanupWg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			return
		}
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	expiredCount := 0

	for key, e := range s.tabs {
		if now.Sub(e.updatedAt) > s.ttl {
			delete(s.tabs, key)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		s.logger.Debug("Cleaned up expired page contexts",
			zap.Int("count", expiredCount),
		)
	}
}

// Stop stops the cleanup goroutine
func (s *Store) Stop() {
	close(s.stopChan)
	s.cleanupWg.Wait()
	s.logger.Info("Page context store stopped")
}
