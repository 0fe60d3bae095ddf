// Package browser exposes the process's browser-launching capabilities as
// swappable function variables, so a headless login flow can replace them
// with URL printing.
package browser

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Handle is a minimal browser handle: something that can open a URL.
type Handle interface {
	Open(url string) error
}

// OpenURL opens url in the user's default browser.
var OpenURL = openURL

// Get returns a handle to the default browser.
var Get = get

// CanLaunch reports whether this environment can launch a graphical browser
// at all. May be nil on builds without the capability probe; callers must
// tolerate that.
var CanLaunch = canLaunch

func openURL(url string) error {
	name, args := launchCommand(url)
	if name == "" {
		return fmt.Errorf("no browser launcher for %s", runtime.GOOS)
	}
	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	return nil
}

func launchCommand(url string) (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}

type systemBrowser struct{}

func (systemBrowser) Open(url string) error { return OpenURL(url) }

func get() Handle { return systemBrowser{} }

func canLaunch() bool {
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	default:
		// X11 or Wayland must be reachable for xdg-open to do anything.
		return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
	}
}
