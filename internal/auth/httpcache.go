package auth

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

// EnvDisableHTTPCache disables the on-disk HTTP response cache for this
// process when set to any non-empty value.
const EnvDisableHTTPCache = "TUNNELAUTH_DISABLE_HTTP_CACHE"

// cachedResponse is the serializable subset of an http.Response.
type cachedResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// cacheTransport memoizes successful GET responses in a single gob file
// keyed by URL. Non-GET requests and non-200 responses pass through
// uncached. Load and store failures are swallowed; the cache is a
// convenience, never load-bearing.
type cacheTransport struct {
	path string
	next http.RoundTripper

	mu      sync.Mutex
	entries map[string]cachedResponse
	loaded  bool
}

func newCacheTransport(path string, next http.RoundTripper) *cacheTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &cacheTransport{path: path, next: next}
}

func (t *cacheTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.next.RoundTrip(req)
	}

	key := req.URL.String()
	t.mu.Lock()
	t.load()
	if e, ok := t.entries[key]; ok {
		t.mu.Unlock()
		return e.response(req), nil
	}
	t.mu.Unlock()

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	e := cachedResponse{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body}

	t.mu.Lock()
	t.entries[key] = e
	t.store()
	t.mu.Unlock()

	return e.response(req), nil
}

func (e cachedResponse) response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        e.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// load reads the cache file once per transport. Callers hold t.mu.
func (t *cacheTransport) load() {
	if t.loaded {
		return
	}
	t.loaded = true
	t.entries = make(map[string]cachedResponse)

	data, err := os.ReadFile(t.path)
	if err != nil {
		return
	}
	// An unreadable or corrupt file just means an empty cache.
	_ = gob.NewDecoder(bytes.NewReader(data)).Decode(&t.entries)
}

// store persists the cache file. Callers hold t.mu.
func (t *cacheTransport) store() {
	if err := os.MkdirAll(filepath.Dir(t.path), 0700); err != nil {
		return
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(t.entries); err != nil {
		return
	}
	_ = os.WriteFile(t.path, buf.Bytes(), 0600)
}
