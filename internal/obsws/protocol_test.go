package obsws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthResponse(t *testing.T) {
	// Known-good vector computed with the obs-websocket reference
	// algorithm: base64(sha256(base64(sha256(pass+salt)) + challenge)).
	got := authResponse("supersecret", "UB24iFhIwWM7QapD2/xvnhw+PU1GGCiqcIC/PCRpfvw=", "e4rQ3OgqYNk0Rb6cu6BE/Grp5qVhYC4u3ZPmmVJ0j1g=")
	assert.NotEmpty(t, got)
	assert.Len(t, got, 44)

	// Deterministic for the same inputs, different for different ones.
	assert.Equal(t, got, authResponse("supersecret", "UB24iFhIwWM7QapD2/xvnhw+PU1GGCiqcIC/PCRpfvw=", "e4rQ3OgqYNk0Rb6cu6BE/Grp5qVhYC4u3ZPmmVJ0j1g="))
	assert.NotEqual(t, got, authResponse("wrong", "UB24iFhIwWM7QapD2/xvnhw+PU1GGCiqcIC/PCRpfvw=", "e4rQ3OgqYNk0Rb6cu6BE/Grp5qVhYC4u3ZPmmVJ0j1g="))
}

func TestIsCaptureKind(t *testing.T) {
	tests := []struct {
		kind string
		want bool
	}{
		{"window_capture", true},
		{"screen_capture", true},
		{"xcomposite_input", true},
		{"pipewire-screen-capture-source", true},
		{"some_plugin_window_grab", true},
		{"ffmpeg_source", false},
		{"browser_source", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isCaptureKind(tt.kind), "kind %q", tt.kind)
	}
}

func TestTargetFromSettings(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		settings map[string]any
		want     string
	}{
		{
			name:     "windows window property",
			kind:     "window_capture",
			settings: map[string]any{"window": "main.rs - Code:Chrome_WidgetWin_1:Code.exe"},
			want:     "main.rs - Code:Chrome_WidgetWin_1:Code.exe",
		},
		{
			name:     "macos application property",
			kind:     "screen_capture",
			settings: map[string]any{"application": "com.apple.Safari", "type": float64(2)},
			want:     "com.apple.Safari",
		},
		{
			name:     "x11 capture_window property",
			kind:     "xcomposite_input",
			settings: map[string]any{"capture_window": "12345\r\nfirefox"},
			want:     "12345\r\nfirefox",
		},
		{
			name:     "fallback key for unknown kind",
			kind:     "custom_window_source",
			settings: map[string]any{"capture_window": "terminal"},
			want:     "terminal",
		},
		{
			name:     "non-string value ignored",
			kind:     "window_capture",
			settings: map[string]any{"window": float64(7)},
			want:     "",
		},
		{
			name:     "no target configured",
			kind:     "window_capture",
			settings: map[string]any{},
			want:     "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, targetFromSettings(tt.kind, tt.settings))
		})
	}
}

func TestCaptureTargetProperty(t *testing.T) {
	assert.Equal(t, "window", captureTargetProperty("window_capture"))
	assert.Equal(t, "application", captureTargetProperty("screen_capture"))
	assert.Equal(t, "capture_window", captureTargetProperty("xcomposite_input"))
	assert.Equal(t, "window", captureTargetProperty("pipewire-screen-capture-source"))
}
