// Package server provides the HTTP and WebSocket status surface.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/noisebuster/platform/internal/monitor"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

type LevelMessage struct {
	Type string    `json:"type"`
	End  time.Time `json:"end"`
	Peak float64   `json:"peak"`
}

type EventMessage struct {
	Type  string    `json:"type"`
	Time  time.Time `json:"time"`
	Level float64   `json:"level"`
}

type StatusMessage struct {
	Type      string              `json:"type"`
	MinimumDB float64             `json:"minimum_db"`
	Buffering bool                `json:"buffering"`
	Recording bool                `json:"recording"`
	Telemetry bool                `json:"telemetry"`
	RetryLen  int                 `json:"retry_queue"`
	LastEvent *monitor.NoiseEvent `json:"last_event,omitempty"`
}

type RateLimitedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// RecorderStatus is the slice of the recorder the server needs.
type RecorderStatus interface {
	Active() bool
	Trigger(ts time.Time, level float64) bool
}

// BufferStatus reports whether the segment buffer process is alive.
type BufferStatus interface {
	Running() bool
}

// TelemetryStatus exposes sink health for the status endpoints.
type TelemetryStatus interface {
	Enabled() bool
	QueueLen() int
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server fans monitor output out to WebSocket clients and answers REST
// status queries.
type Server struct {
	mon      *monitor.Monitor
	recorder RecorderStatus
	buffer   BufferStatus
	sink     TelemetryStatus

	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
}

// New creates a server over the monitor's channels. recorder and buffer may
// be nil when video is disabled.
func New(mon *monitor.Monitor, recorder RecorderStatus, buffer BufferStatus, sink TelemetryStatus) *Server {
	s := &Server{
		mon:        mon,
		recorder:   recorder,
		buffer:     buffer,
		sink:       sink,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
	}

	go s.broadcastSamples()
	go s.broadcastEvents()

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("POST /api/record", s.handleRecord)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	ctx := r.Context()
	slog.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var msg json.RawMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			slog.Debug("websocket read error", "error", err)
			return
		}

		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			slog.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(ctx, conn, RateLimitedMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "status":
			_ = wsjson.Write(ctx, conn, s.status())
		}
	}
}

// status assembles the current pipeline state.
func (s *Server) status() StatusMessage {
	msg := StatusMessage{
		Type:      "status",
		MinimumDB: s.mon.Minimum(),
	}
	if s.buffer != nil {
		msg.Buffering = s.buffer.Running()
	}
	if s.recorder != nil {
		msg.Recording = s.recorder.Active()
	}
	if s.sink != nil {
		msg.Telemetry = s.sink.Enabled()
		msg.RetryLen = s.sink.QueueLen()
	}
	if last, ok := s.mon.History().Last(); ok {
		msg.LastEvent = &last
	}
	return msg
}

func (s *Server) broadcastSamples() {
	for sample := range s.mon.Samples() {
		s.broadcast(LevelMessage{Type: "level", End: sample.End, Peak: sample.Peak})
	}
}

func (s *Server) broadcastEvents() {
	for ev := range s.mon.Events() {
		s.broadcast(EventMessage{Type: "event", Time: ev.Time, Level: ev.Level})
	}
}

func (s *Server) broadcast(msg interface{}) {
	s.mu.RLock()
	for conn := range s.conns {
		go func(c *websocket.Conn, m interface{}) {
			_ = wsjson.Write(context.Background(), c, m)
		}(conn, msg)
	}
	s.mu.RUnlock()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.status())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	seconds := DefaultHistorySeconds
	if q := r.URL.Query().Get("seconds"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			http.Error(w, "invalid seconds parameter", http.StatusBadRequest)
			return
		}
		seconds = n
	}

	events := s.mon.History().Recent(seconds)
	if events == nil {
		events = []monitor.NoiseEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"seconds": seconds,
		"events":  events,
	})
}

// handleRecord triggers a manual recording at the current threshold level.
// A busy recorder answers 409, never queues.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.recorder == nil {
		http.Error(w, "video recording disabled", http.StatusConflict)
		return
	}
	if !s.recorder.Trigger(time.Now(), s.mon.Minimum()) {
		http.Error(w, "recording unavailable or already in progress", http.StatusConflict)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "recording_started"})
}
