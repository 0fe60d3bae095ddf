// Package login runs the login-ssh operation: make sure the redirect port
// is usable, point the interactive flow at it, print the authorization URL
// instead of opening a browser, and delegate the credential acquisition.
package login

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cwoolley/tunnelauth/internal/auth"
	"github.com/cwoolley/tunnelauth/internal/intercept"
	"github.com/cwoolley/tunnelauth/internal/portcheck"
)

// ErrLoginFailed wraps failures from the delegated login that are not one
// of the recognized user-facing kinds.
var ErrLoginFailed = errors.New("login failed")

// Options for one login-ssh invocation.
type Options struct {
	// Port is the loopback redirect port, typically carried by an SSH -L
	// tunnel from the user's local machine.
	Port int
	// Tenant restricts sign-in to a Workspace hosted domain. Optional.
	Tenant string
	// Err receives the authorization URL and progress output. Defaults to
	// os.Stderr.
	Err io.Writer
	// Reporter displays the TIME_WAIT countdown. Optional.
	Reporter portcheck.WaitReporter
}

// Seams for tests.
var (
	newController = portcheck.NewController
	delegateLogin = auth.Login
)

// Run performs one login-ssh. On every exit path the interception patches
// are removed and the HTTP-cache toggle is restored to its prior state.
func Run(ctx context.Context, cfg auth.Config, opts Options) (*auth.Result, error) {
	errW := opts.Err
	if errW == nil {
		errW = os.Stderr
	}

	ctrl := newController(opts.Reporter)
	if err := ctrl.EnsureAvailable(ctx, opts.Port); err != nil {
		return nil, err
	}

	// The library's HTTP cache file goes bad when the redirect port is
	// pinned; drop any existing cache and keep the cache off for this run.
	if cfg.HTTPCachePath != "" {
		_ = os.Remove(cfg.HTTPCachePath)
	}
	restoreEnv := setScopedEnv(auth.EnvDisableHTTPCache, "1")
	defer restoreEnv()

	patches, err := intercept.Build(opts.Port, errW)
	if err != nil {
		return nil, err
	}
	patches.Apply()
	defer patches.Restore()

	result, err := delegateLogin(ctx, cfg, auth.LoginOptions{Tenant: opts.Tenant})
	if err != nil {
		if recognized(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	return result, nil
}

// recognized reports whether err is already one of the user-facing kinds
// that must pass through unwrapped.
func recognized(err error) bool {
	return errors.Is(err, portcheck.ErrInvalidPort) ||
		errors.Is(err, portcheck.ErrPortInUse) ||
		errors.Is(err, portcheck.ErrPortStillUnavailable) ||
		errors.Is(err, portcheck.ErrCancelled) ||
		errors.Is(err, intercept.ErrDependencyMissing) ||
		errors.Is(err, context.Canceled)
}

// setScopedEnv sets key=value and returns a restore func that reinstates
// the prior value, or unsets the variable if it was previously unset.
func setScopedEnv(key, value string) func() {
	prev, had := os.LookupEnv(key)
	os.Setenv(key, value)
	return func() {
		if had {
			os.Setenv(key, prev)
		} else {
			os.Unsetenv(key)
		}
	}
}
