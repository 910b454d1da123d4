package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

func (s *Server) addOAuthState(state string, expiry time.Time) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	// Opportunistic cleanup of expired entries.
	now := time.Now()
	for k, v := range s.stateStore {
		if now.After(v) {
			delete(s.stateStore, k)
		}
	}
	s.stateStore[state] = expiry
}

func (s *Server) takeOAuthState(state string) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	exp, ok := s.stateStore[state]
	if !ok {
		return false
	}
	delete(s.stateStore, state)
	return time.Now().Before(exp)
}

// handleOAuthStart redirects the browser to the "log in with Twitch" page.
func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	if s.opts.OAuth == nil {
		http.Error(w, "oauth not configured (need TWITCH_CLIENT_ID + TWITCH_CLIENT_SECRET)", http.StatusBadRequest)
		return
	}
	st := uuid.New().String()
	s.addOAuthState(st, time.Now().Add(10*time.Minute))
	http.Redirect(w, r, s.opts.OAuth.AuthorizeURL(st), http.StatusFound)
}

// handleOAuthCallback validates the state parameter and hands the
// authorization code to the startup flow waiting on Codes(). The exchange
// itself happens there, not in the request path.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.opts.OAuth == nil {
		http.Error(w, "oauth not configured", http.StatusBadRequest)
		return
	}
	code := r.URL.Query().Get("code")
	st := r.URL.Query().Get("state")
	if code == "" || st == "" {
		http.Error(w, "missing code/state", http.StatusBadRequest)
		return
	}
	if !s.takeOAuthState(st) {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}
	select {
	case s.codes <- code:
	default:
		slog.Warn("authorization code dropped, nothing waiting for it", slog.String("component", "http"))
		http.Error(w, "no pending authorization", http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte("<html><body>Authorized. You can close this tab.</body></html>")); err != nil {
		slog.Warn("failed to write response", slog.Any("err", err))
	}
}

// handleHealthz reports liveness; with a database configured it also pings it.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.opts.DB != nil {
		if err := s.opts.DB.PingContext(r.Context()); err != nil {
			http.Error(w, "db unreachable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte("ok")); err != nil {
		slog.Warn("failed to write response", slog.Any("err", err))
	}
}

// handleStatus returns the runtime snapshot supplied by main.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{"persistence": s.opts.DB != nil}
	if fn := s.statusFn(); fn != nil {
		for k, v := range fn() {
			payload[k] = v
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}
