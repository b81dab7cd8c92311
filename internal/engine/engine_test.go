package engine

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdcast/presenced/internal/host"
	"github.com/crowdcast/presenced/internal/registry"
)

// fakeProbe is a settable stand-in for the platform probe
type fakeProbe struct {
	mu        sync.Mutex
	frontmost string
	ok        bool
	wayland   bool
}

func (p *fakeProbe) set(frontmost string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frontmost = frontmost
	p.ok = ok
}

func (p *fakeProbe) FrontmostAppID() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frontmost, p.ok
}

func (p *fakeProbe) IsWayland() bool { return p.wayland }

func (p *fakeProbe) IDsMatch(frontmost, target string) bool {
	return strings.EqualFold(frontmost, target)
}

func (p *fakeProbe) Name() string { return "fake" }

func (p *fakeProbe) Close() error { return nil }

const testInterval = 5 * time.Millisecond

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for presence event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected presence event: %+v", ev)
	case <-time.After(20 * testInterval):
	}
}

func TestHookTransitionEmitsExactlyOneEvent(t *testing.T) {
	reg := registry.New(8)
	p := &fakeProbe{}
	p.set("com.apple.Safari", true)

	e := New(reg, p, Options{PollInterval: testInterval})
	events := e.Subscribe()
	defer e.Unsubscribe(events)

	e.Apply(host.SourceEvent{
		Kind:      host.SourceCreated,
		Name:      "S1",
		TargetApp: "com.apple.Safari",
		Active:    true,
	})

	e.Start()
	defer e.Stop()

	ev := waitEvent(t, events)
	assert.True(t, ev.AnyHooked)

	// The aggregate is unchanged on subsequent ticks, so nothing more fires
	assertNoEvent(t, events)

	sources, anyHooked, manualMode := e.Status()
	require.Len(t, sources, 1)
	assert.True(t, sources[0].Hooked)
	assert.True(t, anyHooked)
	assert.False(t, manualMode)
}

func TestProbeFailureIsFailClosed(t *testing.T) {
	reg := registry.New(8)
	p := &fakeProbe{}
	p.set("code", true)

	e := New(reg, p, Options{PollInterval: testInterval})
	events := e.Subscribe()
	defer e.Unsubscribe(events)

	e.Apply(host.SourceEvent{Kind: host.SourceCreated, Name: "S1", TargetApp: "code", Active: true})
	e.Start()
	defer e.Stop()

	require.True(t, waitEvent(t, events).AnyHooked)

	// Probe can no longer answer: every hooked flag drops that tick
	p.set("", false)
	assert.False(t, waitEvent(t, events).AnyHooked)

	sources, anyHooked, _ := e.Status()
	require.Len(t, sources, 1)
	assert.False(t, sources[0].Hooked)
	assert.False(t, anyHooked)
}

func TestEmptyTargetNeverMatches(t *testing.T) {
	reg := registry.New(8)
	p := &fakeProbe{}
	p.set("code", true)

	e := New(reg, p, Options{PollInterval: testInterval})
	events := e.Subscribe()
	defer e.Unsubscribe(events)

	e.Apply(host.SourceEvent{Kind: host.SourceCreated, Name: "S1", TargetApp: "", Active: true})
	e.Start()
	defer e.Stop()

	assertNoEvent(t, events)

	_, anyHooked, _ := e.Status()
	assert.False(t, anyHooked)
}

func TestFrontmostChangeUnhooks(t *testing.T) {
	reg := registry.New(8)
	p := &fakeProbe{}
	p.set("firefox", true)

	e := New(reg, p, Options{PollInterval: testInterval})
	events := e.Subscribe()
	defer e.Unsubscribe(events)

	e.Apply(host.SourceEvent{Kind: host.SourceCreated, Name: "S1", TargetApp: "firefox", Active: true})
	e.Start()
	defer e.Stop()

	require.True(t, waitEvent(t, events).AnyHooked)

	p.set("slack", true)
	assert.False(t, waitEvent(t, events).AnyHooked)
}

func TestManualModeGatesOnOverride(t *testing.T) {
	reg := registry.New(8)
	p := &fakeProbe{wayland: true}

	e := New(reg, p, Options{PollInterval: testInterval, ManualCapture: true})
	events := e.Subscribe()
	defer e.Unsubscribe(events)

	// Manual mode hooks every source, even ones with no known target
	e.Apply(host.SourceEvent{Kind: host.SourceCreated, Name: "S1", Active: true})
	e.Start()
	defer e.Stop()

	require.True(t, e.ManualMode())
	require.True(t, waitEvent(t, events).AnyHooked)

	// Deactivating the only source drops the aggregate even though the
	// override is still enabled: active gates the signal
	e.Apply(host.SourceEvent{Kind: host.SourceDeactivated, Name: "S1"})
	assert.False(t, waitEvent(t, events).AnyHooked)
}

func TestSetManualCaptureIsImmediateAndIdempotent(t *testing.T) {
	reg := registry.New(8)
	p := &fakeProbe{wayland: true}

	// Effectively no ticks: transitions below come from SetManualCapture
	e := New(reg, p, Options{PollInterval: time.Hour, ManualCapture: false})
	events := e.Subscribe()
	defer e.Unsubscribe(events)

	e.Apply(host.SourceEvent{Kind: host.SourceCreated, Name: "S1", Active: true})
	e.Start()
	defer e.Stop()

	anyHooked, manualMode := e.SetManualCapture(true)
	assert.True(t, anyHooked)
	assert.True(t, manualMode)
	assert.True(t, waitEvent(t, events).AnyHooked)

	// Same value again: no transition, no event
	anyHooked, _ = e.SetManualCapture(true)
	assert.True(t, anyHooked)
	assertNoEvent(t, events)

	anyHooked, _ = e.SetManualCapture(false)
	assert.False(t, anyHooked)
	assert.False(t, waitEvent(t, events).AnyHooked)
}

func TestReregistrationKeepsRenderState(t *testing.T) {
	reg := registry.New(8)
	p := &fakeProbe{}
	p.set("code", true)

	e := New(reg, p, Options{PollInterval: testInterval})
	events := e.Subscribe()
	defer e.Unsubscribe(events)

	e.Apply(host.SourceEvent{Kind: host.SourceCreated, Name: "S1", TargetApp: "code", Active: true})
	e.Start()
	defer e.Stop()

	require.True(t, waitEvent(t, events).AnyHooked)

	// A settings rewrite arrives as another created event with the render
	// state unset. The source is still rendering: presence must hold and
	// no transition may fire.
	e.Apply(host.SourceEvent{Kind: host.SourceCreated, Name: "S1", TargetApp: "code"})
	assertNoEvent(t, events)

	sources, anyHooked, _ := e.Status()
	require.Len(t, sources, 1)
	assert.True(t, sources[0].Active)
	assert.True(t, anyHooked)

	// Retargeting away from the frontmost app still takes effect, without
	// touching the active flag.
	e.Apply(host.SourceEvent{Kind: host.SourceCreated, Name: "S1", TargetApp: "slack"})
	assert.False(t, waitEvent(t, events).AnyHooked)

	sources, _, _ = e.Status()
	require.Len(t, sources, 1)
	assert.True(t, sources[0].Active)
	assert.Equal(t, "slack", sources[0].TargetApp)
}

func TestAttachAppliesHostEvents(t *testing.T) {
	reg := registry.New(8)
	p := &fakeProbe{}
	p.set("code", true)

	e := New(reg, p, Options{PollInterval: testInterval})
	events := e.Subscribe()
	defer e.Unsubscribe(events)

	hostEvents := make(chan host.SourceEvent, 4)
	e.Attach(hostEvents)
	e.Start()
	defer e.Stop()

	hostEvents <- host.SourceEvent{Kind: host.SourceCreated, Name: "S1", TargetApp: "code"}
	hostEvents <- host.SourceEvent{Kind: host.SourceActivated, Name: "S1"}

	require.True(t, waitEvent(t, events).AnyHooked)

	hostEvents <- host.SourceEvent{Kind: host.SourceRemoved, Name: "S1"}
	assert.False(t, waitEvent(t, events).AnyHooked)
	assert.Eventually(t, func() bool {
		sources, _, _ := e.Status()
		return len(sources) == 0
	}, time.Second, testInterval)
}

func TestStopJoinsPoller(t *testing.T) {
	reg := registry.New(8)
	p := &fakeProbe{}

	e := New(reg, p, Options{PollInterval: testInterval})
	e.Start()

	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not join the poll loop")
	}

	// Stop is safe to call again
	e.Stop()
}
