package probe

import "strings"

// Identifier matching rules, one per platform. These are compiled everywhere
// (not just on their home GOOS) so the rules can be exercised by tests on any
// platform; each backend's IDsMatch delegates to the rule for its own OS.

// matchBundleID compares macOS bundle identifiers. Bundle IDs are stable, so
// only exact equality counts.
func matchBundleID(frontmost, target string) bool {
	if frontmost == "" || target == "" {
		return false
	}
	return frontmost == target
}

// matchExecutableName compares a Windows foreground executable name against a
// capture target. The target from a window capture source may be a window
// title, a window class, or an executable name, so beyond case-insensitive
// equality we also accept the extension-stripped executable name appearing
// anywhere inside the target.
func matchExecutableName(frontmost, target string) bool {
	if frontmost == "" || target == "" {
		return false
	}

	if strings.EqualFold(frontmost, target) {
		return true
	}

	if len(frontmost) > 4 && strings.EqualFold(frontmost[len(frontmost)-4:], ".exe") {
		stem := strings.ToLower(frontmost[:len(frontmost)-4])
		if strings.Contains(strings.ToLower(target), stem) {
			return true
		}
	}

	return false
}

// matchWindowClass compares an X11 WM_CLASS value against a capture target.
// Targets from xcomposite sources are often window titles, so containment in
// either direction counts, case-insensitively.
func matchWindowClass(frontmost, target string) bool {
	if frontmost == "" || target == "" {
		return false
	}

	if strings.EqualFold(frontmost, target) {
		return true
	}

	f := strings.ToLower(frontmost)
	t := strings.ToLower(target)
	return strings.Contains(t, f) || strings.Contains(f, t)
}
