//go:build linux

package probe

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/crowdcast/presenced/internal/logger"
)

func newPlatformProbe() Probe {
	if isWaylandSession() {
		return &waylandProbe{}
	}
	return &x11Probe{}
}

// isWaylandSession detects a Wayland session with no concurrent X11 display.
func isWaylandSession() bool {
	if os.Getenv("XDG_SESSION_TYPE") == "wayland" {
		return true
	}
	// WAYLAND_DISPLAY alone is only conclusive when no X display exists
	if os.Getenv("WAYLAND_DISPLAY") != "" && os.Getenv("DISPLAY") == "" {
		return true
	}
	return false
}

// x11Probe reads the active window's WM_CLASS via the X server.
//
// The connection is established lazily and dropped on any protocol error so
// the next poll tick can reconnect; a failed tick just reads as "unknown".
type x11Probe struct {
	mu         sync.Mutex
	conn       *xgb.Conn
	root       xproto.Window
	activeAtom xproto.Atom
}

// Name returns the backend name
func (p *x11Probe) Name() string {
	return "x11"
}

// IsWayland always reports false for the X11 backend
func (p *x11Probe) IsWayland() bool {
	return false
}

// IDsMatch applies the X11 window-class matching rule
func (p *x11Probe) IDsMatch(frontmost, target string) bool {
	return matchWindowClass(frontmost, target)
}

// FrontmostAppID returns the WM_CLASS instance name of the window referenced
// by the root window's _NET_ACTIVE_WINDOW property.
func (p *x11Probe) FrontmostAppID() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(); err != nil {
		return "", false
	}

	active, err := p.activeWindowLocked()
	if err != nil || active == xproto.WindowNone {
		p.dropLocked(err)
		return "", false
	}

	class, err := p.windowClassLocked(active)
	if err != nil || class == "" {
		p.dropLocked(err)
		return "", false
	}

	return class, true
}

// Close closes the X server connection
func (p *x11Probe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	return nil
}

func (p *x11Probe) connectLocked() error {
	if p.conn != nil {
		return nil
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	root := setup.DefaultScreen(conn).Root

	atomReply, err := xproto.InternAtom(
		conn, false, uint16(len("_NET_ACTIVE_WINDOW")), "_NET_ACTIVE_WINDOW",
	).Reply()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to intern _NET_ACTIVE_WINDOW: %w", err)
	}

	p.conn = conn
	p.root = root
	p.activeAtom = atomReply.Atom

	logger.WithComponent("probe").Debug().Msg("Connected to X server")
	return nil
}

// dropLocked discards a connection that returned a protocol error
func (p *x11Probe) dropLocked(err error) {
	if err == nil || p.conn == nil {
		return
	}
	logger.WithComponent("probe").Debug().
		Err(err).
		Msg("X server query failed, dropping connection")
	p.conn.Close()
	p.conn = nil
}

func (p *x11Probe) activeWindowLocked() (xproto.Window, error) {
	reply, err := xproto.GetProperty(
		p.conn, false, p.root, p.activeAtom, xproto.AtomWindow, 0, 1,
	).Reply()
	if err != nil {
		return xproto.WindowNone, err
	}
	if reply.ValueLen == 0 || len(reply.Value) < 4 {
		return xproto.WindowNone, nil
	}

	id := xproto.Window(uint32(reply.Value[0]) |
		uint32(reply.Value[1])<<8 |
		uint32(reply.Value[2])<<16 |
		uint32(reply.Value[3])<<24)
	return id, nil
}

// windowClassLocked returns the WM_CLASS instance name (the first of the two
// null-terminated strings in the property).
func (p *x11Probe) windowClassLocked(win xproto.Window) (string, error) {
	reply, err := xproto.GetProperty(
		p.conn, false, win, xproto.AtomWmClass, xproto.AtomString, 0, (1<<32)-1,
	).Reply()
	if err != nil {
		return "", err
	}
	if reply.ValueLen == 0 {
		return "", nil
	}

	instance, _, _ := bytes.Cut(reply.Value, []byte{0})
	return string(instance), nil
}

// waylandProbe is the permanent fallback for Wayland sessions: the compositor
// security model forbids asking which application is focused, so every query
// answers "unknown" and the engine runs in manual capture mode instead.
type waylandProbe struct{}

func (waylandProbe) Name() string { return "wayland" }

func (waylandProbe) IsWayland() bool { return true }

func (waylandProbe) FrontmostAppID() (string, bool) { return "", false }

func (waylandProbe) IDsMatch(frontmost, target string) bool {
	return matchWindowClass(frontmost, target)
}

func (waylandProbe) Close() error { return nil }
