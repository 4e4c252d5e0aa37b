package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/noisebuster/platform/internal/config"
	"github.com/noisebuster/platform/internal/monitor"
)

type fakeRecorder struct {
	active    bool
	triggerOK bool
	triggers  int
}

func (f *fakeRecorder) Active() bool { return f.active }
func (f *fakeRecorder) Trigger(time.Time, float64) bool {
	f.triggers++
	return f.triggerOK
}

type fakeBuffer struct{ running bool }

func (f *fakeBuffer) Running() bool { return f.running }

type fakeSink struct {
	enabled bool
	queued  int
}

func (f *fakeSink) Enabled() bool { return f.enabled }
func (f *fakeSink) QueueLen() int { return f.queued }

func newTestServer(rec *fakeRecorder, buf *fakeBuffer, sink *fakeSink) (*Server, *monitor.Monitor) {
	cfg := config.Device{MinimumNoiseLevel: 60, TimeWindowDuration: 1}
	mon := monitor.New(cfg, nil, nil, nil)

	var r RecorderStatus
	if rec != nil {
		r = rec
	}
	var b BufferStatus
	if buf != nil {
		b = buf
	}
	var s TelemetryStatus
	if sink != nil {
		s = sink
	}
	return New(mon, r, b, s), mon
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("OPTIONS", "/test", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("OPTIONS status = %d, want %d", rec.Code, http.StatusOK)
	}
	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("CORS origin = %q, want %q", v, "*")
	}

	req = httptest.NewRequest("GET", "/test", http.NoBody)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET status = %d, want %d", rec.Code, http.StatusOK)
	}
	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("CORS origin on GET = %q, want %q", v, "*")
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, mon := newTestServer(
		&fakeRecorder{active: true},
		&fakeBuffer{running: true},
		&fakeSink{enabled: true, queued: 3},
	)
	mon.History().Add(monitor.NoiseEvent{Time: time.Now(), Level: 81.5})

	req := httptest.NewRequest("GET", "/api/status", http.NoBody)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got StatusMessage
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if got.Type != "status" {
		t.Errorf("type = %q, want %q", got.Type, "status")
	}
	if got.MinimumDB != 60 {
		t.Errorf("minimum_db = %v, want 60", got.MinimumDB)
	}
	if !got.Buffering || !got.Recording || !got.Telemetry {
		t.Errorf("flags = buffering:%v recording:%v telemetry:%v, want all true",
			got.Buffering, got.Recording, got.Telemetry)
	}
	if got.RetryLen != 3 {
		t.Errorf("retry_queue = %d, want 3", got.RetryLen)
	}
	if got.LastEvent == nil || got.LastEvent.Level != 81.5 {
		t.Errorf("last_event = %+v, want level 81.5", got.LastEvent)
	}
}

func TestStatusEndpointNilCollaborators(t *testing.T) {
	srv, _ := newTestServer(nil, nil, nil)

	req := httptest.NewRequest("GET", "/api/status", http.NoBody)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got StatusMessage
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if got.Buffering || got.Recording || got.Telemetry {
		t.Errorf("flags should all be false with nil collaborators: %+v", got)
	}
	if got.LastEvent != nil {
		t.Errorf("last_event = %+v, want nil with empty history", got.LastEvent)
	}
}

func TestEventsEndpoint(t *testing.T) {
	srv, mon := newTestServer(nil, nil, nil)
	mon.History().Add(monitor.NoiseEvent{Time: time.Now().Add(-2 * time.Hour), Level: 70})
	mon.History().Add(monitor.NoiseEvent{Time: time.Now().Add(-30 * time.Second), Level: 75})

	req := httptest.NewRequest("GET", "/api/events?seconds=60", http.NoBody)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got struct {
		Seconds int                  `json:"seconds"`
		Events  []monitor.NoiseEvent `json:"events"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding events: %v", err)
	}
	if got.Seconds != 60 {
		t.Errorf("seconds = %d, want 60", got.Seconds)
	}
	if len(got.Events) != 1 || got.Events[0].Level != 75 {
		t.Errorf("events = %+v, want only the recent 75dB event", got.Events)
	}
}

func TestEventsEndpointInvalidRange(t *testing.T) {
	srv, _ := newTestServer(nil, nil, nil)

	for _, q := range []string{"seconds=0", "seconds=-5", "seconds=abc"} {
		req := httptest.NewRequest("GET", "/api/events?"+q, http.NoBody)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", q, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestEventsEndpointEmptyHistory(t *testing.T) {
	srv, _ := newTestServer(nil, nil, nil)

	req := httptest.NewRequest("GET", "/api/events", http.NoBody)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var got struct {
		Events []monitor.NoiseEvent `json:"events"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding events: %v", err)
	}
	if got.Events == nil {
		t.Error("events = null, want empty array")
	}
}

func TestRecordEndpoint(t *testing.T) {
	rec := &fakeRecorder{triggerOK: true}
	srv, _ := newTestServer(rec, nil, nil)

	req := httptest.NewRequest("POST", "/api/record", http.NoBody)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if rec.triggers != 1 {
		t.Errorf("triggers = %d, want 1", rec.triggers)
	}
}

func TestRecordEndpointBusy(t *testing.T) {
	srv, _ := newTestServer(&fakeRecorder{triggerOK: false}, nil, nil)

	req := httptest.NewRequest("POST", "/api/record", http.NoBody)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestRecordEndpointDisabled(t *testing.T) {
	srv, _ := newTestServer(nil, nil, nil)

	req := httptest.NewRequest("POST", "/api/record", http.NoBody)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := &rateLimiter{}

	for i := 0; i < RateLimitMessages; i++ {
		if !rl.allow() {
			t.Fatalf("message %d rejected below the limit", i)
		}
	}
	if rl.allow() {
		t.Error("message above the limit was allowed")
	}
}

func TestMessageTypes(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{}
		typeVal string
	}{
		{"level", LevelMessage{Type: "level", End: time.Now(), Peak: 45.2}, "level"},
		{"event", EventMessage{Type: "event", Time: time.Now(), Level: 80.1}, "event"},
		{"status", StatusMessage{Type: "status", MinimumDB: 60}, "status"},
		{"error", RateLimitedMessage{Type: "error", Message: "rate limit exceeded"}, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.msg)
			if err != nil {
				t.Fatalf("json.Marshal error: %v", err)
			}

			var base Message
			if err := json.Unmarshal(data, &base); err != nil {
				t.Fatalf("json.Unmarshal error: %v", err)
			}

			if base.Type != tt.typeVal {
				t.Errorf("type = %q, want %q", base.Type, tt.typeVal)
			}
		})
	}
}
