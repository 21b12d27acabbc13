// Package probe implements a best-effort connectivity check: a short-timeout
// HTTP GET used by the connection manager's retry path to decide whether a
// reconnect attempt is worth making. Grounded on the session store's
// connect-and-ping-with-timeout idiom (internal/session/store.go in the
// teacher), generalized from a Redis PING to an arbitrary HTTP GET.
package probe

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultURL is the well-known connectivity-check endpoint. When Checker is
// configured with this exact URL, Check additionally requires the literal
// token "yes" in the response body — a quirk preserved for compatibility
// with the original source (see spec.md §9 / DESIGN.md). This coupling
// between "is it the default URL" and "does the response need a magic
// token" is itself a refactor candidate: an explicit probe strategy type
// would let callers opt into the content check without relying on URL
// equality.
const DefaultURL = "https://internet-up.ably-realtime.com/is-the-internet-up.txt"

const defaultTimeout = 5 * time.Second

// Checker performs connectivity checks against a single configured URL.
type Checker struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// NewChecker returns a Checker against url using sensible defaults. An empty
// url falls back to DefaultURL.
func NewChecker(url string) *Checker {
	if url == "" {
		url = DefaultURL
	}
	return &Checker{
		URL:     url,
		Client:  http.DefaultClient,
		Timeout: defaultTimeout,
	}
}

// Check performs the GET and returns true iff the response status is in
// [200, 300) and, when URL is the default, the body literally contains
// "yes". Any network error or non-2xx status yields false; Check never
// returns an error to the caller.
func (c *Checker) Check(ctx context.Context) bool {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.URL, nil)
	if err != nil {
		return false
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}

	if c.URL != DefaultURL {
		return true
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return false
	}
	return strings.Contains(string(body), "yes")
}
