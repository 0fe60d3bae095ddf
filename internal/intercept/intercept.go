// Package intercept builds the reversible substitutions that point an
// interactive login at a fixed redirect port and replace browser launching
// with printing the authorization URL.
package intercept

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/oauth2"

	"github.com/cwoolley/tunnelauth/internal/auth"
	"github.com/cwoolley/tunnelauth/internal/browser"
)

// ErrDependencyMissing means the token-acquisition entry point is absent,
// so the redirect port cannot be injected.
var ErrDependencyMissing = errors.New("token acquisition library unavailable")

// Patch is one reversible substitution. apply installs the replacement and
// returns the function that puts the original back.
type Patch struct {
	Name  string
	apply func() (restore func())
}

// Set is an ordered collection of patches. Apply installs them in order;
// Restore undoes them in reverse order. At most one Set may be active in
// the process at a time.
type Set struct {
	patches  []Patch
	restores []func()
}

// Len reports how many substitutions the set holds.
func (s *Set) Len() int { return len(s.patches) }

// Apply installs every patch. Calling Apply on an already-applied set is a
// no-op.
func (s *Set) Apply() {
	if s.restores != nil {
		return
	}
	s.restores = make([]func(), 0, len(s.patches))
	for _, p := range s.patches {
		s.restores = append(s.restores, p.apply())
	}
}

// Restore puts the originals back in reverse order. Safe to call multiple
// times; only the first call after Apply does anything.
func (s *Set) Restore() {
	for i := len(s.restores) - 1; i >= 0; i-- {
		s.restores[i]()
	}
	s.restores = nil
}

// Build assembles the substitutions for one login on port, writing the
// authorization URL to errW. The returned set is not yet applied.
//
// The capability patch is skipped without error when browser.CanLaunch is
// absent; the port injection is mandatory and fails with
// ErrDependencyMissing when its target is absent.
func Build(port int, errW io.Writer) (*Set, error) {
	if auth.AcquireTokenInteractive == nil {
		return nil, fmt.Errorf("%w: cannot inject redirect port %d", ErrDependencyMissing, port)
	}
	if errW == nil {
		errW = os.Stderr
	}

	s := &Set{}

	s.patches = append(s.patches, Patch{
		Name: "acquire-token-port",
		apply: func() func() {
			orig := auth.AcquireTokenInteractive
			auth.AcquireTokenInteractive = func(ctx context.Context, cfg *oauth2.Config, opts auth.AcquireOptions) (*oauth2.Token, error) {
				opts.Port = port
				return orig(ctx, cfg, opts)
			}
			return func() { auth.AcquireTokenInteractive = orig }
		},
	})

	s.patches = append(s.patches, Patch{
		Name: "browser-open-url",
		apply: func() func() {
			orig := browser.OpenURL
			browser.OpenURL = func(url string) error {
				printAuthURL(errW, url)
				return nil
			}
			return func() { browser.OpenURL = orig }
		},
	})

	s.patches = append(s.patches, Patch{
		Name: "browser-get",
		apply: func() func() {
			orig := browser.Get
			browser.Get = func() browser.Handle { return urlPrinter{w: errW} }
			return func() { browser.Get = orig }
		},
	})

	if browser.CanLaunch != nil {
		s.patches = append(s.patches, Patch{
			Name: "can-launch-browser",
			apply: func() func() {
				orig := browser.CanLaunch
				browser.CanLaunch = func() bool { return true }
				return func() { browser.CanLaunch = orig }
			},
		})
	}

	return s, nil
}

// urlPrinter is the stand-in browser handle: opening means printing.
type urlPrinter struct {
	w io.Writer
}

func (p urlPrinter) Open(url string) error {
	printAuthURL(p.w, url)
	return nil
}

var banner = strings.Repeat("=", 70)

func printAuthURL(w io.Writer, url string) {
	fmt.Fprintf(w, "\n%s\nTo sign in, use a web browser to open the page:\n%s\n%s\n%s\n\n",
		banner, banner, url, banner)
}
