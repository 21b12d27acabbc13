package probe

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckNonDefaultURLOnlyNeedsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("anything at all"))
	}))
	defer srv.Close()

	c := NewChecker(srv.URL)
	if !c.Check(contextTODO()) {
		t.Fatal("expected reachable 2xx response to count as up")
	}
}

func TestCheckFailsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewChecker(srv.URL)
	if c.Check(contextTODO()) {
		t.Fatal("expected 503 to count as down")
	}
}

func TestCheckFailsOnNetworkError(t *testing.T) {
	c := NewChecker("http://127.0.0.1:1")
	c.Timeout = 0
	if c.Check(contextTODO()) {
		t.Fatal("expected connection refused to count as down")
	}
}

func TestCheckDefaultURLRequiresYesToken(t *testing.T) {
	c := &Checker{URL: DefaultURL, Client: &http.Client{Transport: stubTransport{body: "no"}}}
	if c.Check(contextTODO()) {
		t.Fatal("expected body without 'yes' token to count as down for the default URL")
	}

	c2 := &Checker{URL: DefaultURL, Client: &http.Client{Transport: stubTransport{body: "yes"}}}
	if !c2.Check(contextTODO()) {
		t.Fatal("expected body with 'yes' token to count as up for the default URL")
	}
}
