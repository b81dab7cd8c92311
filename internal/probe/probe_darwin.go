//go:build darwin

package probe

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa
#include <stdlib.h>
#include <string.h>
#import <Cocoa/Cocoa.h>

// Returns the frontmost application's bundle identifier, falling back to the
// localized display name for processes without a bundle. Caller frees.
static const char *frontmostAppID(void) {
	NSRunningApplication *app =
		[[NSWorkspace sharedWorkspace] frontmostApplication];
	if (!app) {
		return NULL;
	}
	if (app.bundleIdentifier) {
		return strdup([app.bundleIdentifier UTF8String]);
	}
	if (app.localizedName) {
		return strdup([app.localizedName UTF8String]);
	}
	return NULL;
}
*/
import "C"

import "unsafe"

func newPlatformProbe() Probe {
	return &darwinProbe{}
}

// darwinProbe asks NSWorkspace for the frontmost application.
type darwinProbe struct{}

// Name returns the backend name
func (p *darwinProbe) Name() string {
	return "darwin"
}

// IsWayland always reports false on macOS
func (p *darwinProbe) IsWayland() bool {
	return false
}

// IDsMatch applies the bundle-identifier matching rule
func (p *darwinProbe) IDsMatch(frontmost, target string) bool {
	return matchBundleID(frontmost, target)
}

// FrontmostAppID returns the frontmost application's bundle identifier
func (p *darwinProbe) FrontmostAppID() (string, bool) {
	ptr := C.frontmostAppID()
	if ptr == nil {
		return "", false
	}
	defer C.free(unsafe.Pointer(ptr))

	id := C.GoString(ptr)
	if id == "" {
		return "", false
	}
	return id, true
}

// Close is a no-op; NSWorkspace needs no teardown
func (p *darwinProbe) Close() error {
	return nil
}
