// Package dispatch drains the connector's two queues and fans events out to
// registered handlers: chat handlers run concurrently per message, reward
// handlers run in sequence and have their verdicts reported back to Twitch.
// Both loops run under a supervisor that restarts them after unhandled
// faults.
package dispatch

import (
	"context"

	"github.com/mirrelia/pointsbot/irc"
	"github.com/mirrelia/pointsbot/pubsub"
)

// Outcome is a reward handler's verdict on a redemption.
type Outcome int

const (
	// OutcomeNone means the handler had no opinion; no status update is sent.
	OutcomeNone Outcome = iota
	// OutcomeFulfill marks the redemption FULFILLED.
	OutcomeFulfill
	// OutcomeCancel marks the redemption CANCELED, refunding the points.
	OutcomeCancel
)

// ChatHandler processes one chat line. Handlers capture their own
// dependencies (connector, REST client, settings) at registration time.
type ChatHandler func(ctx context.Context, chatter irc.Chatter, message string) error

// RewardHandler inspects one redemption and may claim it with a verdict.
type RewardHandler func(ctx context.Context, r pubsub.Redemption) (Outcome, error)

type namedChatHandler struct {
	name string
	fn   ChatHandler
}

type namedRewardHandler struct {
	name string
	fn   RewardHandler
}

// Registry holds the ordered handler lists. It is populated once during
// startup and treated as read-only by the running loops, so no locking is
// needed on the read path.
type Registry struct {
	chat    []namedChatHandler
	rewards []namedRewardHandler
}

func NewRegistry() *Registry { return &Registry{} }

// OnChat appends a chat handler. Registration order is dispatch order.
func (r *Registry) OnChat(name string, fn ChatHandler) {
	r.chat = append(r.chat, namedChatHandler{name: name, fn: fn})
}

// OnReward appends a reward handler. Order matters: handlers may have
// overlapping title matching and earlier ones see the event first.
func (r *Registry) OnReward(name string, fn RewardHandler) {
	r.rewards = append(r.rewards, namedRewardHandler{name: name, fn: fn})
}

// ChatHandlerNames lists registered chat handlers in dispatch order.
func (r *Registry) ChatHandlerNames() []string {
	names := make([]string, 0, len(r.chat))
	for _, h := range r.chat {
		names = append(names, h.name)
	}
	return names
}

// RewardHandlerNames lists registered reward handlers in dispatch order.
func (r *Registry) RewardHandlerNames() []string {
	names := make([]string, 0, len(r.rewards))
	for _, h := range r.rewards {
		names = append(names, h.name)
	}
	return names
}
