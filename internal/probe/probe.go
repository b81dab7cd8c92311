package probe

// Probe answers which application currently has input focus on this machine
// and how application identifiers compare on this platform.
//
// Implementations are stateless queries against the windowing system; all
// calls are bounded local round-trips and never block on the network.
type Probe interface {
	// FrontmostAppID returns the identifier of the focused application:
	// the bundle identifier on macOS (falling back to the localized name),
	// the executable filename on Windows, and the WM_CLASS instance name
	// of the active window on X11. ok is false whenever the platform
	// cannot answer; callers must treat that as "no match".
	FrontmostAppID() (id string, ok bool)

	// IsWayland reports whether frontmost-app detection is architecturally
	// unavailable because this is a Wayland session without a usable X11
	// display. Always false outside Linux.
	IsWayland() bool

	// IDsMatch reports whether a frontmost identifier and a capture-target
	// identifier refer to the same application. The comparison is exact on
	// macOS and tolerant (case folding, substring containment) elsewhere,
	// because capture targets may have been recorded as window titles
	// rather than stable identifiers.
	IDsMatch(frontmost, target string) bool

	// Name returns the backend name (e.g. "x11", "wayland", "darwin")
	Name() string

	// Close releases any display-server connection held by the backend
	Close() error
}

// New returns the probe backend for the current platform.
func New() Probe {
	return newPlatformProbe()
}
