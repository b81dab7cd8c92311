package registry

import "sync"

// DefaultCapacity matches the realistic ceiling of concurrent capture
// sources; registrations past capacity are dropped rather than grown.
const DefaultCapacity = 64

// Source is the externally visible state of one tracked capture source.
type Source struct {
	// Name is the capture host's stable identifier for the source
	Name string `json:"name"`

	// TargetApp identifies the application this source captures: a bundle
	// ID, executable name, or window class depending on platform. Empty
	// when the source's settings carried no usable target.
	TargetApp string `json:"target_app"`

	// Active is true while the host is rendering this source to output
	Active bool `json:"active"`

	// Hooked is true while the target application is frontmost. Only the
	// presence poller writes it.
	Hooked bool `json:"hooked"`
}

type entry struct {
	Source
	inUse bool
}

// Registry is a bounded table of capture sources. Slots are tombstoned on
// removal and reused by later registrations, so a slot index stays valid for
// the lifetime of an entry. One mutex serializes every operation; table scans
// are O(capacity) and mutation is event-driven, so contention stays low.
type Registry struct {
	mu      sync.Mutex
	entries []entry
	cap     int
}

// New creates a registry bounded to capacity entries. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		entries: make([]entry, 0, capacity),
		cap:     capacity,
	}
}

// Register finds or creates the entry for name and records its capture
// target. Registering an existing name only re-derives the target (the
// explicit re-registration contract: targets are not tracked automatically
// after settings changes); the entry's Active and Hooked state is kept.
// created reports whether a new entry was made; ok is false when the table
// is full and the source will not be tracked — a soft degradation, not an
// error.
func (r *Registry) Register(name, targetApp string) (created, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e := r.findLocked(name); e != nil {
		e.TargetApp = targetApp
		return false, true
	}

	// Reuse a tombstoned slot before growing
	for i := range r.entries {
		if !r.entries[i].inUse {
			r.entries[i] = entry{
				Source: Source{Name: name, TargetApp: targetApp},
				inUse:  true,
			}
			return true, true
		}
	}

	if len(r.entries) >= r.cap {
		return false, false
	}

	r.entries = append(r.entries, entry{
		Source: Source{Name: name, TargetApp: targetApp},
		inUse:  true,
	})
	return true, true
}

// SetActive updates a source's active flag. Unknown names are ignored and
// reported as false.
func (r *Registry) SetActive(name string, active bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.findLocked(name)
	if e == nil {
		return false
	}
	e.Active = active
	return true
}

// Remove tombstones the entry for name. The slot becomes reusable; the
// entry no longer appears in snapshots or aggregates.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.findLocked(name)
	if e == nil {
		return false
	}
	e.inUse = false
	e.Source = Source{}
	return true
}

// Snapshot returns the in-use entries in table order. The result is a copy;
// it stays consistent as a single atomic view of the table.
func (r *Registry) Snapshot() []Source {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Source, 0, len(r.entries))
	for i := range r.entries {
		if r.entries[i].inUse {
			out = append(out, r.entries[i].Source)
		}
	}
	return out
}

// Len returns the number of in-use entries
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for i := range r.entries {
		if r.entries[i].inUse {
			n++
		}
	}
	return n
}

// Sweep recomputes every in-use entry's Hooked flag in one critical section
// and returns the resulting aggregate (any entry both active and hooked).
// resolve is called once per in-use entry with that entry's capture target.
func (r *Registry) Sweep(resolve func(targetApp string) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	any := false
	for i := range r.entries {
		if !r.entries[i].inUse {
			continue
		}
		r.entries[i].Hooked = resolve(r.entries[i].TargetApp)
		if r.entries[i].Hooked && r.entries[i].Active {
			any = true
		}
	}
	return any
}

// AnyHooked reports whether any in-use entry is both active and hooked
func (r *Registry) AnyHooked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		if r.entries[i].inUse && r.entries[i].Active && r.entries[i].Hooked {
			return true
		}
	}
	return false
}

func (r *Registry) findLocked(name string) *entry {
	for i := range r.entries {
		if r.entries[i].inUse && r.entries[i].Name == name {
			return &r.entries[i]
		}
	}
	return nil
}
