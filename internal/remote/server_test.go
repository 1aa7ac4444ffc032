package remote

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/narrate/internal/metrics"
	"github.com/dgnsrekt/narrate/internal/store"
)

func newTestStore(tracks int) *store.Store {
	s := store.New(store.WithLogger(log.New(io.Discard)))
	if tracks > 0 {
		s.Load(store.NewDocument("doc", make([]store.Track, tracks), true))
	}
	return s
}

func newTestServer(ctrl Controller, opts ...Option) http.Handler {
	opts = append([]Option{WithLogger(log.New(io.Discard))}, opts...)
	return NewServer(ctrl, opts...).Routes()
}

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, store.Status) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var st store.Status
	if rec.Code == http.StatusOK && strings.HasPrefix(path, "/") && path != "/metrics" {
		if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rec, st
}

func TestStatus(t *testing.T) {
	h := newTestServer(newTestStore(3))

	rec, st := do(t, h, http.MethodGet, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if !st.Active || st.Total != 3 || st.Position != 0 || st.Playing {
		t.Errorf("status = %+v", st)
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		wantPos     int
		wantPlaying bool
	}{
		{"play", "/play", 0, true},
		{"toggle", "/toggle", 0, true},
		{"pause", "/pause", 0, false},
		{"next", "/next", 1, false},
		{"position", "/position/2", 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(newTestStore(3))

			rec, st := do(t, h, http.MethodPost, tt.path)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if st.Position != tt.wantPos || st.Playing != tt.wantPlaying {
				t.Errorf("status = pos %d playing %v, want %d %v", st.Position, st.Playing, tt.wantPos, tt.wantPlaying)
			}
		})
	}
}

func TestPrevious(t *testing.T) {
	s := newTestStore(3)
	s.GoToPosition(2)
	h := newTestServer(s)

	if _, st := do(t, h, http.MethodPost, "/previous"); st.Position != 1 {
		t.Errorf("position = %d, want 1", st.Position)
	}
}

func TestBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		tracks int
		method string
		path   string
		want   int
	}{
		{"no document", 0, http.MethodPost, "/play", http.StatusConflict},
		{"bad position", 3, http.MethodPost, "/position/abc", http.StatusBadRequest},
		{"negative position", 3, http.MethodPost, "/position/-1", http.StatusBadRequest},
		{"wrong method", 3, http.MethodGet, "/play", http.StatusMethodNotAllowed},
		{"unknown route", 3, http.MethodGet, "/nope", http.StatusNotFound},
		{"stop disabled", 3, http.MethodPost, "/stop", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(newTestStore(tt.tracks))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestStop(t *testing.T) {
	stopped := 0
	h := newTestServer(newTestStore(1), WithStop(func() { stopped++ }))

	if rec, _ := do(t, h, http.MethodPost, "/stop"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stopped != 1 {
		t.Errorf("stop called %d times, want 1", stopped)
	}
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.New()
	h := newTestServer(newTestStore(1), WithMetrics(m))

	do(t, h, http.MethodPost, "/play")
	rec, _ := do(t, h, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `narrate_remote_requests_total{code="2xx"} 1`) {
		t.Errorf("request not counted:\n%s", rec.Body.String())
	}
}

func TestListenAndServeShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	srv := NewServer(newTestStore(1), WithLogger(log.New(io.Discard)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, addr) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/status")
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe() error = %v", err)
		}
	case <-time.After(shutdownTimeout):
		t.Fatal("server did not shut down")
	}
}

func TestTracks(t *testing.T) {
	s := newTestStore(0)
	doc := store.NewDocument("doc", []store.Track{
		{Title: "one", Audio: []byte{1, 2, 3}},
		{Title: "two"},
	}, false)
	s.Load(doc)

	rec := httptest.NewRecorder()
	newTestServer(s).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tracks", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var tracks []store.TrackInfo
	if err := json.NewDecoder(rec.Body).Decode(&tracks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(tracks))
	}
	if !tracks[0].Loaded || tracks[0].Size != 3 || tracks[0].Title != "one" {
		t.Errorf("tracks[0] = %+v", tracks[0])
	}
	if tracks[1].Loaded {
		t.Errorf("tracks[1] = %+v, want not loaded", tracks[1])
	}

	s.Unload()
	rec = httptest.NewRecorder()
	newTestServer(s).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tracks", nil))
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("tracks without document = %q, want []", body)
	}
}
