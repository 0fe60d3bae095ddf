// Package auth performs the interactive credential acquisition: a
// browser-based OAuth2 authorization-code flow with a loopback redirect
// listener, token persistence, and a userinfo lookup identifying the
// signed-in account.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/cwoolley/tunnelauth/internal/browser"
)

// AcquireOptions control one interactive token acquisition.
type AcquireOptions struct {
	// Port pins the loopback redirect listener. 0 picks a random port.
	Port int
	// Tenant restricts sign-in to a Workspace hosted domain.
	Tenant string
}

// AcquireTokenInteractive runs the browser-based authorization-code flow.
// It is a package variable so callers can wrap the acquisition step (the
// login-ssh flow forces the redirect port through here). A nil value means
// interactive acquisition is unavailable in this build.
var AcquireTokenInteractive = acquireTokenInteractive

func acquireTokenInteractive(ctx context.Context, cfg *oauth2.Config, opts AcquireOptions) (*oauth2.Token, error) {
	if browser.CanLaunch != nil && !browser.CanLaunch() {
		return nil, fmt.Errorf("interactive login needs a browser and none can be launched here")
	}

	state, err := newState()
	if err != nil {
		return nil, err
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			errCh <- fmt.Errorf("state mismatch in callback")
			http.Error(w, "Authorization failed: state mismatch", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			errCh <- fmt.Errorf("no code in callback")
			http.Error(w, "Authorization failed: no code received", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "Authorization successful! You can close this tab.")
		codeCh <- code
	})

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", opts.Port))
	if err != nil {
		return nil, fmt.Errorf("start redirect listener on port %d: %w", opts.Port, err)
	}

	srv := &http.Server{Handler: mux}
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	// Work on a copy so the redirect URL never leaks into the caller's config.
	flowCfg := *cfg
	flowCfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/callback", ln.Addr().(*net.TCPAddr).Port)

	authOpts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline}
	if opts.Tenant != "" {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("hd", opts.Tenant))
	}

	if err := browser.OpenURL(flowCfg.AuthCodeURL(state, authOpts...)); err != nil {
		return nil, fmt.Errorf("open browser: %w", err)
	}

	// Wait for the auth code, a callback error, or cancellation.
	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	token, err := flowCfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	return token, nil
}

func newState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
