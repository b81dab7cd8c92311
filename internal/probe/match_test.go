package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchBundleID(t *testing.T) {
	assert.True(t, matchBundleID("com.apple.Safari", "com.apple.Safari"))

	// bundle IDs are stable identifiers, so nothing looser than equality
	assert.False(t, matchBundleID("com.apple.Safari", "com.apple.safari"))
	assert.False(t, matchBundleID("com.apple.Safari", "Safari"))
	assert.False(t, matchBundleID("", "com.apple.Safari"))
	assert.False(t, matchBundleID("com.apple.Safari", ""))
}

func TestMatchExecutableName(t *testing.T) {
	tests := []struct {
		name      string
		frontmost string
		target    string
		want      bool
	}{
		{"exact", "Code.exe", "Code.exe", true},
		{"case insensitive", "code.EXE", "Code.exe", true},
		{"stem inside window title", "Code.exe", "main.rs - Code", true},
		{"stem inside title case folded", "CODE.exe", "main.rs - code", true},
		{"unrelated", "code.exe", "slack", false},
		{"no extension no containment", "Code", "main.rs - Code", false},
		{"empty frontmost", "", "Code.exe", false},
		{"empty target", "Code.exe", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchExecutableName(tt.frontmost, tt.target))
		})
	}
}

func TestMatchWindowClass(t *testing.T) {
	tests := []struct {
		name      string
		frontmost string
		target    string
		want      bool
	}{
		{"exact", "firefox", "firefox", true},
		{"case insensitive", "Firefox", "firefox", true},
		{"class inside title", "firefox", "FIREFOX - Mozilla Firefox", true},
		{"title inside class", "org.gnome.Nautilus", "nautilus", true},
		{"unrelated", "code", "slack", false},
		{"empty frontmost", "", "firefox", false},
		{"empty target", "firefox", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchWindowClass(tt.frontmost, tt.target))
		})
	}
}
