package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/mirrelia/pointsbot/telemetry"
)

const (
	// DefaultRestartBackoff is how long a faulted loop stays down before a
	// replacement is started.
	DefaultRestartBackoff = 10 * time.Second
	// DefaultRestartGrace is how long the replacement must survive before
	// the restart counts as a recovery.
	DefaultRestartGrace = 2 * time.Second
)

// Supervisor keeps one dispatch loop alive. The loop's Run function returns
// nil on intentional cancellation and an error when it died of an unhandled
// fault; faults trigger a restart after a fixed backoff, and the replacement
// is re-checked after a grace period to confirm it actually came up. The
// supervisor is notified through the loop goroutine's result channel rather
// than by polling a done flag.
type Supervisor struct {
	name    string
	run     func(ctx context.Context) error
	backoff time.Duration
	grace   time.Duration
	log     *slog.Logger
}

func NewSupervisor(name string, run func(ctx context.Context) error) *Supervisor {
	telemetry.Init()
	return &Supervisor{
		name:    name,
		run:     run,
		backoff: DefaultRestartBackoff,
		grace:   DefaultRestartGrace,
		log:     slog.Default().With(slog.String("component", "supervisor"), slog.String("loop", name)),
	}
}

// WithTimings overrides the backoff/grace durations; tests shrink them.
func (s *Supervisor) WithTimings(backoff, grace time.Duration) *Supervisor {
	s.backoff = backoff
	s.grace = grace
	return s
}

// Start launches the loop and its monitor goroutine. It returns immediately;
// cancellation of ctx stops both.
func (s *Supervisor) Start(ctx context.Context) {
	go s.monitor(ctx)
}

func (s *Supervisor) monitor(ctx context.Context) {
	recovering := false
	for {
		result := make(chan error, 1)
		go func() { result <- s.run(ctx) }()

		if recovering {
			// The previous instance faulted; make sure this one survives
			// the grace period before declaring recovery.
			select {
			case <-ctx.Done():
				return
			case err := <-result:
				if ctx.Err() != nil || err == nil {
					return
				}
				s.log.Error("restarted loop died within grace period", slog.Any("err", err))
				if !s.waitBackoff(ctx) {
					return
				}
				continue
			case <-time.After(s.grace):
				s.log.Info("loop recovered")
				recovering = false
			}
		}

		select {
		case <-ctx.Done():
			return
		case err := <-result:
			if ctx.Err() != nil || err == nil {
				// Intentional shutdown.
				return
			}
			s.log.Error("loop terminated with unhandled fault, restarting",
				slog.Any("err", err), slog.Duration("backoff", s.backoff))
			telemetry.LoopRestarts.WithLabelValues(s.name).Inc()
			if !s.waitBackoff(ctx) {
				return
			}
			recovering = true
		}
	}
}

func (s *Supervisor) waitBackoff(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.backoff):
		return true
	}
}
