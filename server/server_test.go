package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/mirrelia/pointsbot/twitchapi"
)

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	s := New(opts)
	ts := httptest.NewServer(s.Mux())
	t.Cleanup(ts.Close)
	return s, ts
}

func noRedirectClient() *http.Client {
	return &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func TestHealthzWithoutDB(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if corr := resp.Header.Get("X-Correlation-ID"); corr == "" {
		t.Error("missing correlation id header")
	}
}

func TestStatusMergesSnapshot(t *testing.T) {
	_, ts := newTestServer(t, Options{
		Status: func() map[string]any {
			return map[string]any{"channel": "mirrelia", "chat_queue": 3}
		},
	})
	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["channel"] != "mirrelia" {
		t.Errorf("channel = %v", body["channel"])
	}
	if body["persistence"] != false {
		t.Errorf("persistence = %v, want false without DB", body["persistence"])
	}
}

// The status source can be rebound while requests are in flight; main does
// this once the connector is up.
func TestSetStatusRebindsUnderLoad(t *testing.T) {
	srv, ts := newTestServer(t, Options{
		Status: func() map[string]any {
			return map[string]any{"state": "starting"}
		},
	})

	getState := func() any {
		t.Helper()
		resp, err := http.Get(ts.URL + "/status")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()
		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return body["state"]
	}

	if st := getState(); st != "starting" {
		t.Fatalf("state = %v before rebind", st)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			resp, err := http.Get(ts.URL + "/status")
			if err == nil {
				resp.Body.Close()
			}
		}
	}()
	for i := 0; i < 50; i++ {
		srv.SetStatus(func() map[string]any {
			return map[string]any{"state": "running", "chat_queue": 0}
		})
	}
	<-done

	if st := getState(); st != "running" {
		t.Errorf("state = %v after rebind, want running", st)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestOAuthStartRedirectsWithState(t *testing.T) {
	oauth := twitchapi.NewOAuthClient("cid", "secret", "http://localhost:8558/oauth/callback")
	srv, ts := newTestServer(t, Options{OAuth: oauth})

	resp, err := noRedirectClient().Get(ts.URL + "/auth/twitch/start")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if loc.Host != "id.twitch.tv" {
		t.Errorf("redirect host = %q", loc.Host)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("authorize URL carries no state")
	}

	// The same state must be accepted by the callback, exactly once.
	cb, err := http.Get(ts.URL + "/oauth/callback?code=the-code&state=" + state)
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	defer cb.Body.Close()
	if cb.StatusCode != http.StatusOK {
		t.Fatalf("callback status = %d", cb.StatusCode)
	}
	select {
	case code := <-srv.Codes():
		if code != "the-code" {
			t.Errorf("code = %q", code)
		}
	case <-time.After(time.Second):
		t.Fatal("code not delivered on channel")
	}

	replay, err := http.Get(ts.URL + "/oauth/callback?code=other&state=" + state)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	defer replay.Body.Close()
	if replay.StatusCode != http.StatusBadRequest {
		t.Errorf("replayed state status = %d, want 400", replay.StatusCode)
	}
}

func TestOAuthCallbackRejectsUnknownState(t *testing.T) {
	oauth := twitchapi.NewOAuthClient("cid", "secret", "http://localhost:8558/oauth/callback")
	_, ts := newTestServer(t, Options{OAuth: oauth})

	resp, err := http.Get(ts.URL + "/oauth/callback?code=x&state=forged")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestOAuthCallbackMissingParams(t *testing.T) {
	oauth := twitchapi.NewOAuthClient("cid", "secret", "http://localhost:8558/oauth/callback")
	_, ts := newTestServer(t, Options{OAuth: oauth})

	for _, q := range []string{"", "?code=x", "?state=y"} {
		resp, err := http.Get(ts.URL + "/oauth/callback" + q)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("callback%s status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestOAuthEndpointsDisabledWithoutClient(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	for _, path := range []string{"/auth/twitch/start", "/oauth/callback?code=x&state=y"} {
		resp, err := noRedirectClient().Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", strings.SplitN(path, "?", 2)[0], resp.StatusCode)
		}
	}
}
