package auth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	goauth2 "google.golang.org/api/oauth2/v2"
)

func stubAcquire(t *testing.T, fn func(ctx context.Context, cfg *oauth2.Config, opts AcquireOptions) (*oauth2.Token, error)) {
	t.Helper()
	orig := AcquireTokenInteractive
	AcquireTokenInteractive = fn
	t.Cleanup(func() { AcquireTokenInteractive = orig })
}

func stubUserinfo(t *testing.T, info *goauth2.Userinfo, err error) {
	t.Helper()
	orig := fetchUserinfo
	fetchUserinfo = func(context.Context, oauth2.TokenSource) (*goauth2.Userinfo, error) {
		return info, err
	}
	t.Cleanup(func() { fetchUserinfo = orig })
}

func loginConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		OAuth: &oauth2.Config{
			ClientID:     "test-id",
			ClientSecret: "test-secret",
		},
		TokenPath: filepath.Join(t.TempDir(), "token.json"),
	}
}

func TestLogin_Success(t *testing.T) {
	tok := &oauth2.Token{AccessToken: "tok", TokenType: "Bearer"}
	stubAcquire(t, func(_ context.Context, _ *oauth2.Config, _ AcquireOptions) (*oauth2.Token, error) {
		return tok, nil
	})
	stubUserinfo(t, &goauth2.Userinfo{Email: "dev@example.com"}, nil)

	cfg := loginConfig(t)
	res, err := Login(context.Background(), cfg, LoginOptions{})
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", res.Email)
	assert.Equal(t, "tok", res.Token.AccessToken)

	// The token must have been persisted.
	saved, err := LoadToken(cfg.TokenPath)
	require.NoError(t, err)
	assert.Equal(t, "tok", saved.AccessToken)
}

func TestLogin_PassesTenantThrough(t *testing.T) {
	var sawTenant string
	stubAcquire(t, func(_ context.Context, _ *oauth2.Config, opts AcquireOptions) (*oauth2.Token, error) {
		sawTenant = opts.Tenant
		return &oauth2.Token{AccessToken: "tok"}, nil
	})
	stubUserinfo(t, &goauth2.Userinfo{Email: "dev@corp.example", Hd: "corp.example"}, nil)

	_, err := Login(context.Background(), loginConfig(t), LoginOptions{Tenant: "corp.example"})
	require.NoError(t, err)
	assert.Equal(t, "corp.example", sawTenant)
}

func TestLogin_TenantMismatch(t *testing.T) {
	stubAcquire(t, func(_ context.Context, _ *oauth2.Config, _ AcquireOptions) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "tok"}, nil
	})
	stubUserinfo(t, &goauth2.Userinfo{Email: "dev@gmail.com", Hd: ""}, nil)

	_, err := Login(context.Background(), loginConfig(t), LoginOptions{Tenant: "corp.example"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not belong to corp.example")
}

func TestLogin_MissingCredentials(t *testing.T) {
	_, err := Login(context.Background(), Config{OAuth: &oauth2.Config{}}, LoginOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestLogin_NilAcquireEntryPoint(t *testing.T) {
	orig := AcquireTokenInteractive
	AcquireTokenInteractive = nil
	t.Cleanup(func() { AcquireTokenInteractive = orig })

	_, err := Login(context.Background(), loginConfig(t), LoginOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
}

func TestLogin_AcquireErrorPropagates(t *testing.T) {
	stubAcquire(t, func(context.Context, *oauth2.Config, AcquireOptions) (*oauth2.Token, error) {
		return nil, fmt.Errorf("exchange code: boom")
	})

	_, err := Login(context.Background(), loginConfig(t), LoginOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange code")
}

func TestLogin_UserinfoError(t *testing.T) {
	stubAcquire(t, func(context.Context, *oauth2.Config, AcquireOptions) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "tok"}, nil
	})
	stubUserinfo(t, nil, fmt.Errorf("api unreachable"))

	_, err := Login(context.Background(), loginConfig(t), LoginOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve signed-in account")
}

func TestLogin_EmptyTokenPathSkipsSaving(t *testing.T) {
	stubAcquire(t, func(context.Context, *oauth2.Config, AcquireOptions) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "tok"}, nil
	})
	stubUserinfo(t, &goauth2.Userinfo{Email: "dev@example.com"}, nil)

	cfg := loginConfig(t)
	cfg.TokenPath = ""
	_, err := Login(context.Background(), cfg, LoginOptions{})
	assert.NoError(t, err)
}

func TestLogin_CacheDisabledByToggle(t *testing.T) {
	t.Setenv(EnvDisableHTTPCache, "1")

	cachePath := filepath.Join(t.TempDir(), "http_cache.bin")
	stubAcquire(t, func(ctx context.Context, _ *oauth2.Config, _ AcquireOptions) (*oauth2.Token, error) {
		// With the toggle set, no caching client is injected.
		assert.Nil(t, ctx.Value(oauth2.HTTPClient))
		return &oauth2.Token{AccessToken: "tok"}, nil
	})
	stubUserinfo(t, &goauth2.Userinfo{Email: "dev@example.com"}, nil)

	cfg := loginConfig(t)
	cfg.HTTPCachePath = cachePath
	_, err := Login(context.Background(), cfg, LoginOptions{})
	require.NoError(t, err)
	assert.NoFileExists(t, cachePath)
}

func TestLogin_CacheClientInjectedByDefault(t *testing.T) {
	t.Setenv(EnvDisableHTTPCache, "")
	os.Unsetenv(EnvDisableHTTPCache)

	stubAcquire(t, func(ctx context.Context, _ *oauth2.Config, _ AcquireOptions) (*oauth2.Token, error) {
		assert.NotNil(t, ctx.Value(oauth2.HTTPClient))
		return &oauth2.Token{AccessToken: "tok"}, nil
	})
	stubUserinfo(t, &goauth2.Userinfo{Email: "dev@example.com"}, nil)

	cfg := loginConfig(t)
	cfg.HTTPCachePath = filepath.Join(t.TempDir(), "http_cache.bin")
	_, err := Login(context.Background(), cfg, LoginOptions{})
	require.NoError(t, err)
}
