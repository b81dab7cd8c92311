package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdcast/presenced/internal/engine"
	"github.com/crowdcast/presenced/internal/host"
	"github.com/crowdcast/presenced/internal/registry"
)

type fakeProbe struct {
	mu        sync.Mutex
	frontmost string
	wayland   bool
}

func (p *fakeProbe) set(frontmost string) {
	p.mu.Lock()
	p.frontmost = frontmost
	p.mu.Unlock()
}

func (p *fakeProbe) FrontmostAppID() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frontmost == "" {
		return "", false
	}
	return p.frontmost, true
}

func (p *fakeProbe) IsWayland() bool { return p.wayland }

func (p *fakeProbe) IDsMatch(frontmost, target string) bool {
	return strings.EqualFold(frontmost, target)
}

func (p *fakeProbe) Name() string { return "fake" }

func (p *fakeProbe) Close() error { return nil }

type fakeLister struct {
	targets []host.Target
	err     error
}

func (l *fakeLister) ListTargets(ctx context.Context) ([]host.Target, error) {
	return l.targets, l.err
}

func newTestServer(t *testing.T, p *fakeProbe, lister TargetLister) (*httptest.Server, *engine.Engine) {
	t.Helper()
	reg := registry.New(8)
	eng := engine.New(reg, p, engine.Options{
		PollInterval:  5 * time.Millisecond,
		ManualCapture: true,
	})
	eng.Start()
	t.Cleanup(eng.Stop)

	s := NewServer(eng, lister, p.Name())
	srv := httptest.NewServer(s.enableCORS(s.router))
	t.Cleanup(srv.Close)
	return srv, eng
}

func waitForHook(t *testing.T, eng *engine.Engine, want bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, anyHooked, _ := eng.Status()
		return anyHooked == want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestGetSources(t *testing.T) {
	srv, eng := newTestServer(t, &fakeProbe{frontmost: "com.apple.Safari"}, nil)

	eng.Apply(host.SourceEvent{Kind: host.SourceCreated, Name: "Browser", TargetApp: "com.apple.Safari"})
	eng.Apply(host.SourceEvent{Kind: host.SourceActivated, Name: "Browser", Active: true})
	waitForHook(t, eng, true)

	resp, err := http.Get(srv.URL + "/api/sources")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.True(t, status.AnyHooked)
	assert.False(t, status.ManualMode)
	require.Len(t, status.Sources, 1)
	assert.Equal(t, "Browser", status.Sources[0].Name)
	assert.Equal(t, "com.apple.Safari", status.Sources[0].TargetApp)
	assert.True(t, status.Sources[0].Hooked)
}

func TestSetCaptureManualMode(t *testing.T) {
	srv, eng := newTestServer(t, &fakeProbe{wayland: true}, nil)

	eng.Apply(host.SourceEvent{Kind: host.SourceCreated, Name: "Screen", TargetApp: "firefox"})
	eng.Apply(host.SourceEvent{Kind: host.SourceActivated, Name: "Screen", Active: true})
	waitForHook(t, eng, true)

	body := bytes.NewBufferString(`{"enabled": false}`)
	resp, err := http.Post(srv.URL+"/api/capture", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var captureResp CaptureResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&captureResp))
	assert.True(t, captureResp.Success)
	assert.False(t, captureResp.Enabled)
	assert.True(t, captureResp.ManualMode)
	assert.False(t, captureResp.AnyHooked)
}

func TestSetCaptureRejectsBadBody(t *testing.T) {
	srv, _ := newTestServer(t, &fakeProbe{}, nil)

	resp, err := http.Post(srv.URL+"/api/capture", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetTargets(t *testing.T) {
	lister := &fakeLister{targets: []host.Target{
		{ID: "firefox", Title: "Mozilla Firefox", AppName: "Mozilla Firefox", Suggested: true},
		{ID: "gedit", Title: "notes.txt - gedit", AppName: "notes.txt"},
	}}
	srv, _ := newTestServer(t, &fakeProbe{}, lister)

	resp, err := http.Get(srv.URL + "/api/targets")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var targets TargetsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&targets))
	require.Len(t, targets.Targets, 2)
	assert.Equal(t, "firefox", targets.Targets[0].ID)
	assert.True(t, targets.Targets[0].Suggested)
	require.Len(t, targets.Suggested, 1)
	assert.Equal(t, "firefox", targets.Suggested[0].ID)
}

func TestGetTargetsHostError(t *testing.T) {
	srv, _ := newTestServer(t, &fakeProbe{}, &fakeLister{err: errors.New("obs unreachable")})

	resp, err := http.Get(srv.URL + "/api/targets")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestGetTargetsUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, &fakeProbe{}, nil)

	resp, err := http.Get(srv.URL + "/api/targets")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeProbe{wayland: true}, nil)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "fake", health.Probe)
	assert.True(t, health.ManualMode)
}

func TestEventStream(t *testing.T) {
	p := &fakeProbe{}
	srv, eng := newTestServer(t, p, nil)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Initial snapshot first.
	var ev engine.Event
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.False(t, ev.AnyHooked)

	// A hook transition streams through.
	eng.Apply(host.SourceEvent{Kind: host.SourceCreated, Name: "Editor", TargetApp: "code"})
	eng.Apply(host.SourceEvent{Kind: host.SourceActivated, Name: "Editor", Active: true})
	p.set("code")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.True(t, ev.AnyHooked)
}
