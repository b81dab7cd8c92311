package obsws

import (
	"os"
	"runtime"
	"strings"
)

// Name of the throwaway input created while enumerating capturable
// windows. Events about it are suppressed so it never shows up as a
// tracked source.
const enumInputName = "presenced-window-enum"

// captureSourceKind returns the input kind OBS uses for window capture
// on the current platform.
func captureSourceKind() string {
	switch runtime.GOOS {
	case "windows":
		return "window_capture"
	case "darwin":
		return "screen_capture"
	default:
		if os.Getenv("XDG_SESSION_TYPE") == "wayland" {
			return "pipewire-screen-capture-source"
		}
		return "xcomposite_input"
	}
}

// captureTargetProperty maps an input kind to the settings key that
// holds its target application or window.
func captureTargetProperty(kind string) string {
	switch kind {
	case "screen_capture":
		return "application"
	case "xcomposite_input":
		return "capture_window"
	default:
		// window_capture, pipewire-screen-capture-source
		return "window"
	}
}

var captureKinds = map[string]bool{
	"window_capture":                true,
	"screen_capture":                true,
	"xcomposite_input":              true,
	"pipewire-screen-capture-source": true,
}

// isCaptureKind reports whether an input kind captures windows.
// Unknown kinds containing "window" are accepted so third-party
// capture plugins still get tracked.
func isCaptureKind(kind string) bool {
	if captureKinds[kind] {
		return true
	}
	return strings.Contains(kind, "window")
}

// targetFromSettings extracts the capture target from an input's
// settings, trying the platform property first and falling back to
// the keys other capture kinds use.
func targetFromSettings(kind string, settings map[string]any) string {
	keys := []string{captureTargetProperty(kind), "window", "capture_window", "application"}
	for _, key := range keys {
		if v, ok := settings[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// enumSettings returns the settings for the temporary enumeration
// input. On macOS screen_capture must be switched to window mode
// before it lists applications.
func enumSettings(kind string) map[string]any {
	if kind == "screen_capture" {
		return map[string]any{"type": 2, "show_hidden_windows": true}
	}
	return nil
}
