// Package engine implements capture presence detection: a background poller
// that decides, for every tracked capture source, whether the application it
// targets is currently the frontmost one, and publishes edge-triggered
// changes of the aggregate "any source active and hooked" signal.
package engine

import (
	"sync"
	"time"

	"github.com/crowdcast/presenced/internal/host"
	"github.com/crowdcast/presenced/internal/logger"
	"github.com/crowdcast/presenced/internal/probe"
	"github.com/crowdcast/presenced/internal/registry"
)

// DefaultPollInterval is the presence poll period
const DefaultPollInterval = 200 * time.Millisecond

// Event is published whenever the aggregate presence signal transitions.
// Consumers may receive the same value again after a reconnect and must
// treat duplicates as no-ops.
type Event struct {
	AnyHooked bool `json:"any_hooked"`
}

// Options configures a new Engine
type Options struct {
	// PollInterval is the poll period; zero means DefaultPollInterval
	PollInterval time.Duration

	// ManualCapture is the initial override value used in manual mode
	ManualCapture bool
}

// Engine owns the presence poll loop and the manual override gate. It is the
// sole writer of every source's hooked flag. Construct with New, start the
// poller with Start, and always Stop before discarding: Stop joins the poll
// goroutine so no tick can observe torn-down state.
type Engine struct {
	registry *registry.Registry
	probe    probe.Probe
	interval time.Duration

	mu            sync.Mutex
	manualMode    bool
	manualCapture bool
	lastAny       bool
	listeners     []chan Event
	started       bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates an engine over the given registry and platform probe
func New(reg *registry.Registry, p probe.Probe, opts Options) *Engine {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Engine{
		registry:      reg,
		probe:         p,
		interval:      interval,
		manualCapture: opts.ManualCapture,
		done:          make(chan struct{}),
	}
}

// Start selects the detection mode and launches the poll loop. Manual mode
// is decided once: on Wayland, frontmost-app introspection is unavailable
// for the whole session, not transiently.
func (e *Engine) Start() {
	log := logger.WithComponent("engine")

	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	if e.probe.IsWayland() {
		e.manualMode = true
	}
	manual := e.manualMode
	e.mu.Unlock()

	if manual {
		log.Info().Msg("Wayland session detected, frontmost-app detection unavailable, using manual capture mode")
	}
	log.Info().
		Str("backend", e.probe.Name()).
		Dur("interval", e.interval).
		Bool("manual_mode", manual).
		Msg("Presence poller starting")

	e.wg.Add(1)
	go e.pollLoop()
}

// Stop ends the poll loop and waits for it to finish
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	select {
	case <-e.done:
	default:
		close(e.done)
	}
	e.wg.Wait()
	logger.WithComponent("engine").Info().Msg("Presence poller stopped")
}

// Attach consumes source lifecycle events from a capture host and applies
// them to the registry until the channel closes or the engine stops.
func (e *Engine) Attach(events <-chan host.SourceEvent) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-e.done:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				e.Apply(ev)
			}
		}
	}()
}

// Apply mutates the registry for one host lifecycle event
func (e *Engine) Apply(ev host.SourceEvent) {
	log := logger.WithComponent("engine")

	switch ev.Kind {
	case host.SourceCreated:
		created, ok := e.registry.Register(ev.Name, ev.TargetApp)
		if !ok {
			// Soft degradation: the source simply is not tracked
			log.Warn().
				Str("source", ev.Name).
				Msg("Source table full, source will not be tracked")
			return
		}
		// Re-registration only re-derives the target; the render state of
		// an already-tracked source is owned by activate/deactivate events.
		if created {
			e.registry.SetActive(ev.Name, ev.Active)
		}
		log.Info().
			Str("source", ev.Name).
			Str("target_app", ev.TargetApp).
			Bool("created", created).
			Msg("Tracking capture source")
	case host.SourceRemoved:
		if e.registry.Remove(ev.Name) {
			log.Info().Str("source", ev.Name).Msg("Capture source removed")
		}
	case host.SourceActivated:
		e.registry.SetActive(ev.Name, true)
	case host.SourceDeactivated:
		e.registry.SetActive(ev.Name, false)
	}
}

// ManualMode reports whether the engine runs on the manual override gate
func (e *Engine) ManualMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manualMode
}

// SetManualCapture sets the manual override value. In manual mode the
// aggregate is recomputed immediately so a UI toggle takes effect without
// waiting for the next poll tick. Returns the resulting aggregate and
// whether manual mode is in effect.
func (e *Engine) SetManualCapture(enabled bool) (anyHooked, manualMode bool) {
	e.mu.Lock()
	e.manualCapture = enabled
	manual := e.manualMode
	e.mu.Unlock()

	logger.WithComponent("engine").Info().
		Bool("enabled", enabled).
		Bool("manual_mode", manual).
		Msg("Manual capture override set")

	if !manual {
		return e.registry.AnyHooked(), false
	}

	any := e.registry.Sweep(func(string) bool { return enabled })
	e.publishIfChanged(any)
	return any, true
}

// Status returns a consistent snapshot of the tracked sources together with
// the aggregate presence signal and the detection mode.
func (e *Engine) Status() (sources []registry.Source, anyHooked, manualMode bool) {
	sources = e.registry.Snapshot()
	for _, s := range sources {
		if s.Active && s.Hooked {
			anyHooked = true
		}
	}
	return sources, anyHooked, e.ManualMode()
}

// Subscribe adds a listener for aggregate presence transitions
func (e *Engine) Subscribe() chan Event {
	ch := make(chan Event, 10)
	e.mu.Lock()
	e.listeners = append(e.listeners, ch)
	e.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener
func (e *Engine) Unsubscribe(ch chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, listener := range e.listeners {
		if listener == ch {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

func (e *Engine) pollLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick recomputes every hooked flag and publishes an aggregate transition.
// The probe runs once per tick, outside the registry lock: the frontmost
// application is global, not per-source.
func (e *Engine) tick() {
	e.mu.Lock()
	manual := e.manualMode
	override := e.manualCapture
	e.mu.Unlock()

	var resolve func(targetApp string) bool
	if manual {
		// All-or-nothing gate: with no way to know which app is
		// frontmost, sources are indistinguishable
		resolve = func(string) bool { return override }
	} else {
		frontmost, ok := e.probe.FrontmostAppID()
		resolve = func(target string) bool {
			// Unknown frontmost or empty target reads as not hooked
			return ok && target != "" && e.probe.IDsMatch(frontmost, target)
		}
	}

	any := e.registry.Sweep(resolve)
	e.publishIfChanged(any)
}

// publishIfChanged emits one event per aggregate transition. The comparison
// is against the last published value, not a within-tick before/after, so
// transitions caused by host activate/deactivate between ticks still fire.
func (e *Engine) publishIfChanged(any bool) {
	e.mu.Lock()
	changed := any != e.lastAny
	e.lastAny = any
	listeners := make([]chan Event, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	if !changed {
		return
	}

	logger.WithComponent("engine").Info().
		Bool("any_hooked", any).
		Msg("Capture presence changed")

	for _, listener := range listeners {
		select {
		case listener <- Event{AnyHooked: any}:
		default:
			// Skip if channel is full
		}
	}
}
