// Package server exposes the local HTTP surface: the Twitch OAuth callback,
// health and status endpoints, and Prometheus metrics. It injects correlation
// IDs into request contexts for consistent logging.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mirrelia/pointsbot/telemetry"
	"github.com/mirrelia/pointsbot/twitchapi"
)

// Options wires the server's dependencies.
type Options struct {
	// DB may be nil; /healthz then skips the ping and /status reports
	// persistence as disabled.
	DB *sql.DB
	// OAuth builds the authorize URL for /auth/twitch/start. Nil disables
	// the OAuth endpoints.
	OAuth *twitchapi.OAuthClient
	// Status supplies the /status payload. Can be replaced later with
	// SetStatus once more of the process is wired up.
	Status func() map[string]any
}

// Server holds the handler state: the OAuth state store and the channel that
// hands received authorization codes to main.
type Server struct {
	opts Options

	statusMu sync.RWMutex
	status   func() map[string]any

	stateMu    sync.RWMutex
	stateStore map[string]time.Time

	codes chan string
}

func New(opts Options) *Server {
	return &Server{
		opts:       opts,
		status:     opts.Status,
		stateStore: make(map[string]time.Time),
		// Buffered so the callback handler never blocks on a slow consumer.
		codes: make(chan string, 4),
	}
}

// Codes returns the channel authorization codes are delivered on.
func (s *Server) Codes() <-chan string { return s.codes }

// SetStatus replaces the /status snapshot source. The server starts before
// the connector exists, so main rebinds the source once it does.
func (s *Server) SetStatus(fn func() map[string]any) {
	s.statusMu.Lock()
	s.status = fn
	s.statusMu.Unlock()
}

func (s *Server) statusFn() func() map[string]any {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// Mux returns the HTTP handler with all routes.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/auth/twitch/start", s.handleOAuthStart)
	mux.HandleFunc("/oauth/callback", s.handleOAuthCallback)

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/status", s.handleStatus)

	// Wrap with correlation ID injector and tracing middleware.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start",
			slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		mux.ServeHTTP(wrapped, r.WithContext(ctx))

		if wrapped.statusCode >= 400 {
			telemetry.RecordError(span, fmt.Errorf("HTTP %d", wrapped.statusCode))
		}
	})
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Mux(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
