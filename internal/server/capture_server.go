package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Shanaa-yasmin/Cognivex/internal/models"
	"github.com/Shanaa-yasmin/Cognivex/internal/pagectx"
)

// MonitorControl is the lifecycle surface the server drives from page signals
type MonitorControl interface {
	Start()
	Stop()
	Flush(ctx context.Context) error
	Status() map[string]interface{}
}

// TokenTarget receives session tokens forwarded by the extension
type TokenTarget interface {
	SetAccessToken(token string)
}

// LifecycleRequest is a page lifecycle signal from the extension
type LifecycleRequest struct {
	Signal      string `json:"signal"` // visible | hidden | unload | login | logout
	AccessToken string `json:"access_token,omitempty"`
}

// SessionRequest forwards the user's access token
type SessionRequest struct {
	AccessToken string `json:"access_token"`
}

// CaptureServer handles HTTP and WebSocket traffic from the browser extension
type CaptureServer struct {
	monitor      MonitorControl
	pages        *pagectx.Store
	tokenTargets []TokenTarget
	maxPerPost   int
	logger       *zap.Logger
	upgrader     websocket.Upgrader

	mu          sync.RWMutex
	subscribers map[int]func(models.RawEvent)
	nextSubID   int
}

// NewCaptureServer creates a capture server. tokenTargets receive session
// tokens carried by login signals and session updates.
func NewCaptureServer(monitor MonitorControl, pages *pagectx.Store, maxPerPost int, logger *zap.Logger, tokenTargets ...TokenTarget) *CaptureServer {
	if maxPerPost <= 0 {
		maxPerPost = 500
	}
	return &CaptureServer{
		monitor:      monitor,
		pages:        pages,
		tokenTargets: tokenTargets,
		maxPerPost:   maxPerPost,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			// extension pages carry extension origins; the listener is loopback-only
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subscribers: make(map[int]func(models.RawEvent)),
	}
}

// Subscribe registers a raw event handler. The returned function releases
// the subscription.
func (s *CaptureServer) Subscribe(handler func(models.RawEvent)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *CaptureServer) dispatch(ev models.RawEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, handler := range s.subscribers {
		handler(ev)
	}
}

// ServeHTTP implements http.Handler
func (s *CaptureServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.setCORSHeaders(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch r.URL.Path {
	case "/api/v1/events":
		s.requireMethod(w, r, http.MethodPost, s.handleEvents)
	case "/api/v1/stream":
		s.requireMethod(w, r, http.MethodGet, s.handleStream)
	case "/api/v1/context":
		s.requireMethod(w, r, http.MethodPost, s.handleContext)
	case "/api/v1/lifecycle":
		s.requireMethod(w, r, http.MethodPost, s.handleLifecycle)
	case "/api/v1/session":
		s.requireMethod(w, r, http.MethodPost, s.handleSession)
	case "/api/v1/health":
		s.requireMethod(w, r, http.MethodGet, s.handleHealth)
	case "/api/v1/status":
		s.requireMethod(w, r, http.MethodGet, s.handleStatus)
	default:
		http.NotFound(w, r)
	}
}

func (s *CaptureServer) requireMethod(w http.ResponseWriter, r *http.Request, method string, h http.HandlerFunc) {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h(w, r)
}

func (s *CaptureServer) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// handleEvents ingests a JSON array of raw events. Individual malformed
// events are skipped downstream; telemetry ingest never fails the page.
func (s *CaptureServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	var events []models.RawEvent

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&events); err != nil {
		s.logger.Warn("Failed to decode events payload", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if len(events) > s.maxPerPost {
		s.logger.Warn("Event post truncated",
			zap.Int("received", len(events)),
			zap.Int("limit", s.maxPerPost),
		)
		events = events[:s.maxPerPost]
	}

	for _, ev := range events {
		s.dispatch(ev)
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleStream upgrades to a WebSocket and reads one raw event per message
func (s *CaptureServer) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.logger.Info("Event stream connected", zap.String("remote_addr", r.RemoteAddr))

	for {
		var ev models.RawEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Event stream error", zap.Error(err))
			} else {
				s.logger.Info("Event stream closed", zap.String("remote_addr", r.RemoteAddr))
			}
			return
		}
		s.dispatch(ev)
	}
}

func (s *CaptureServer) handleContext(w http.ResponseWriter, r *http.Request) {
	var ctx pagectx.PageContext

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&ctx); err != nil {
		s.logger.Warn("Failed to decode context update", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if ctx.URL == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	s.pages.Update(ctx)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleLifecycle maps page lifecycle signals onto the monitor. The logout
// flush is awaited before monitoring stops; hidden/unload flushes are best
// effort and never surface an error to the page.
func (s *CaptureServer) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	var req LifecycleRequest

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		s.logger.Warn("Failed to decode lifecycle signal", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.logger.Info("Lifecycle signal received", zap.String("signal", req.Signal))

	switch req.Signal {
	case "login":
		if req.AccessToken != "" {
			s.setToken(req.AccessToken)
		}
		s.monitor.Start()

	case "logout":
		// flush first, then stop, in that order
		if err := s.monitor.Flush(context.Background()); err != nil {
			s.logger.Warn("Logout flush failed", zap.Error(err))
		}
		s.monitor.Stop()
		s.setToken("")

	case "hidden", "unload":
		if err := s.monitor.Flush(context.Background()); err != nil {
			s.logger.Warn("Best-effort flush failed",
				zap.String("signal", req.Signal),
				zap.Error(err),
			)
		}

	case "visible":
		// resume capture after a hidden/logout pause
		s.monitor.Start()

	default:
		http.Error(w, "Unknown signal", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *CaptureServer) handleSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		s.logger.Warn("Failed to decode session update", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.setToken(req.AccessToken)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *CaptureServer) setToken(token string) {
	for _, target := range s.tokenTargets {
		target.SetAccessToken(token)
	}
}

func (s *CaptureServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

func (s *CaptureServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.monitor.Status())
}
