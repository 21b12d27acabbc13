package probe

import (
	"context"
	"io"
	"net/http"
	"strings"
)

func contextTODO() context.Context { return context.Background() }

// stubTransport serves a fixed 200 response with a canned body, used to
// exercise the default-URL "yes" token check without a real network call.
type stubTransport struct {
	body string
}

func (s stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Header:     make(http.Header),
	}, nil
}
