//go:build windows

package probe

import (
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modUser32                    = windows.NewLazySystemDLL("user32.dll")
	procGetForegroundWindow      = modUser32.NewProc("GetForegroundWindow")
	procGetWindowThreadProcessId = modUser32.NewProc("GetWindowThreadProcessId")
)

func newPlatformProbe() Probe {
	return &windowsProbe{}
}

// windowsProbe resolves the foreground window to the executable filename of
// its owning process.
type windowsProbe struct{}

// Name returns the backend name
func (p *windowsProbe) Name() string {
	return "windows"
}

// IsWayland always reports false on Windows
func (p *windowsProbe) IsWayland() bool {
	return false
}

// IDsMatch applies the executable-name matching rule
func (p *windowsProbe) IDsMatch(frontmost, target string) bool {
	return matchExecutableName(frontmost, target)
}

// FrontmostAppID returns the executable filename (no path) of the process
// owning the foreground window.
func (p *windowsProbe) FrontmostAppID() (string, bool) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return "", false
	}

	var pid uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if pid == 0 {
		return "", false
	}

	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "", false
	}
	defer windows.CloseHandle(handle)

	var buf [windows.MAX_PATH]uint16
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(handle, 0, &buf[0], &size); err != nil {
		return "", false
	}

	exe := filepath.Base(windows.UTF16ToString(buf[:size]))
	if exe == "" || exe == "." {
		return "", false
	}
	return exe, true
}

// Close is a no-op; the backend holds no handles between queries
func (p *windowsProbe) Close() error {
	return nil
}
