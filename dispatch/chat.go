package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mirrelia/pointsbot/connector"
	"github.com/mirrelia/pointsbot/telemetry"
)

// ChatLoop drains the chat queue and starts one goroutine per registered
// handler for every message. Invocations are fire-and-forget: the loop does
// not wait for them before taking the next event, so a slow handler (audio
// playback, mostly) never stalls chat ingestion. There is deliberately no
// concurrency cap; in-flight invocations are visible on a gauge instead.
type ChatLoop struct {
	queue *connector.Queue[connector.ChatEvent]
	reg   *Registry
	log   *slog.Logger
}

func NewChatLoop(queue *connector.Queue[connector.ChatEvent], reg *Registry) *ChatLoop {
	telemetry.Init()
	return &ChatLoop{
		queue: queue,
		reg:   reg,
		log:   slog.Default().With(slog.String("component", "chat_loop")),
	}
}

// Run blocks until ctx is cancelled. A panic escaping the loop body itself
// (not a handler) is converted to an error for the supervisor.
func (l *ChatLoop) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chat loop panicked: %v", r)
		}
	}()
	for {
		ev, qerr := l.queue.Dequeue(ctx)
		if qerr != nil {
			return nil // cancelled
		}
		for _, h := range l.reg.chat {
			go l.invoke(ctx, h, ev)
		}
	}
}

func (l *ChatLoop) invoke(ctx context.Context, h namedChatHandler, ev connector.ChatEvent) {
	telemetry.InFlightChatHandlers.Inc()
	defer telemetry.InFlightChatHandlers.Dec()
	defer func() {
		if r := recover(); r != nil {
			telemetry.HandlerFaults.WithLabelValues("chat", h.name).Inc()
			l.log.Error("chat handler panicked",
				slog.String("handler", h.name),
				slog.String("username", ev.Chatter.Username),
				slog.String("message", ev.Message),
				slog.Any("panic", r))
		}
	}()
	if err := h.fn(ctx, ev.Chatter, ev.Message); err != nil {
		telemetry.HandlerFaults.WithLabelValues("chat", h.name).Inc()
		l.log.Error("chat handler failed",
			slog.String("handler", h.name),
			slog.String("username", ev.Chatter.Username),
			slog.Any("err", err))
	}
}
