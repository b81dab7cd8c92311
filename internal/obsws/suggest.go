package obsws

import "strings"

// Applications worth surfacing first when picking a capture target.
var suggestedApps = []string{
	"firefox",
	"chrome",
	"chromium",
	"safari",
	"edge",
	"brave",
	"code",
	"sublime",
	"atom",
	"intellij",
	"pycharm",
	"webstorm",
	"goland",
	"vim",
	"emacs",
	"terminal",
	"iterm",
	"konsole",
	"gnome-terminal",
	"alacritty",
	"kitty",
	"xterm",
}

func isSuggestedApp(name string) bool {
	lower := strings.ToLower(name)
	for _, app := range suggestedApps {
		if strings.Contains(lower, app) {
			return true
		}
	}
	return false
}

// appNameFromTitle extracts an application name from a window title by
// cutting at the first separator titles commonly carry ("Document - App",
// "App: path"). Only one cut is made; later separators belong to the name.
func appNameFromTitle(title string) string {
	for _, sep := range []string{" - ", " — ", ":"} {
		if i := strings.Index(title, sep); i > 0 {
			return strings.TrimSpace(title[:i])
		}
	}
	return strings.TrimSpace(title)
}
