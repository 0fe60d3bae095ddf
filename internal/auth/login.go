package auth

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Config carries what a login needs: the OAuth2 client plus the on-disk
// locations this library owns.
type Config struct {
	OAuth *oauth2.Config
	// TokenPath is where the acquired token is persisted. Empty skips saving.
	TokenPath string
	// HTTPCachePath backs the library's GET response cache. Empty, or the
	// EnvDisableHTTPCache toggle, disables caching.
	HTTPCachePath string
}

// LoginOptions are the caller-facing knobs of one login.
type LoginOptions struct {
	// Tenant restricts sign-in to a Workspace hosted domain.
	Tenant string
}

// Result identifies a completed login.
type Result struct {
	Email string
	Token *oauth2.Token
}

// fetchUserinfo resolves the signed-in account. Overridden in tests.
var fetchUserinfo = func(ctx context.Context, ts oauth2.TokenSource) (*goauth2.Userinfo, error) {
	svc, err := goauth2.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create userinfo service: %w", err)
	}
	return svc.Userinfo.Get().Context(ctx).Do()
}

// Login performs the full interactive credential acquisition: acquire a
// token through the browser flow, resolve the account it belongs to,
// persist it, and report the identity.
func Login(ctx context.Context, cfg Config, opts LoginOptions) (*Result, error) {
	if cfg.OAuth == nil || cfg.OAuth.ClientID == "" || cfg.OAuth.ClientSecret == "" {
		return nil, fmt.Errorf("OAuth client credentials not configured")
	}
	if AcquireTokenInteractive == nil {
		return nil, fmt.Errorf("interactive token acquisition is unavailable")
	}

	if cfg.HTTPCachePath != "" && os.Getenv(EnvDisableHTTPCache) == "" {
		client := &http.Client{Transport: newCacheTransport(cfg.HTTPCachePath, nil)}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	}

	token, err := AcquireTokenInteractive(ctx, cfg.OAuth, AcquireOptions{Tenant: opts.Tenant})
	if err != nil {
		return nil, err
	}

	info, err := fetchUserinfo(ctx, cfg.OAuth.TokenSource(ctx, token))
	if err != nil {
		return nil, fmt.Errorf("resolve signed-in account: %w", err)
	}
	if opts.Tenant != "" && info.Hd != opts.Tenant {
		return nil, fmt.Errorf("account %s does not belong to %s", info.Email, opts.Tenant)
	}

	if cfg.TokenPath != "" {
		if err := SaveToken(cfg.TokenPath, token); err != nil {
			return nil, err
		}
	}

	return &Result{Email: info.Email, Token: token}, nil
}
