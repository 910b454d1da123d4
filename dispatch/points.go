package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mirrelia/pointsbot/connector"
	"github.com/mirrelia/pointsbot/pubsub"
	"github.com/mirrelia/pointsbot/telemetry"
)

// StatusUpdater is the narrow slice of the REST client the points loop
// needs to acknowledge redemptions.
type StatusUpdater interface {
	UpdateRedemptionStatus(ctx context.Context, redemptionID, channelID, rewardID string, status pubsub.RedemptionStatus) error
}

// PointsLoop drains the redemption queue. Handlers run sequentially, not
// concurrently: reward titles can overlap between handlers and side effects
// like exclusive audio-device access must not race. Each decided
// (event, handler) pair produces exactly one status update.
type PointsLoop struct {
	queue   *connector.Queue[*pubsub.RedemptionEvent]
	reg     *Registry
	updater StatusUpdater
	log     *slog.Logger
}

func NewPointsLoop(queue *connector.Queue[*pubsub.RedemptionEvent], reg *Registry, updater StatusUpdater) *PointsLoop {
	telemetry.Init()
	return &PointsLoop{
		queue:   queue,
		reg:     reg,
		updater: updater,
		log:     slog.Default().With(slog.String("component", "points_loop")),
	}
}

// Run blocks until ctx is cancelled. Handler faults are contained per
// handler; only a panic escaping the loop body itself reaches the
// supervisor.
func (l *PointsLoop) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("points loop panicked: %v", r)
		}
	}()
	for {
		ev, qerr := l.queue.Dequeue(ctx)
		if qerr != nil {
			return nil // cancelled
		}
		l.process(telemetry.WithCorrelation(ctx, uuid.New().String()), ev)
	}
}

func (l *PointsLoop) process(ctx context.Context, ev *pubsub.RedemptionEvent) {
	r := ev.Data.Redemption
	log := telemetry.LoggerWithCorr(ctx).With(
		slog.String("component", "points_loop"),
		slog.String("redemption_id", r.ID),
		slog.String("reward", r.Reward.Title))

	for _, h := range l.reg.rewards {
		outcome := l.invoke(ctx, h, r, log)
		if outcome == OutcomeNone {
			continue
		}
		status := pubsub.StatusFulfilled
		if outcome == OutcomeCancel {
			status = pubsub.StatusCanceled
		}
		log.Info("updating redemption status",
			slog.String("handler", h.name), slog.String("status", string(status)))
		if err := l.updater.UpdateRedemptionStatus(ctx, r.ID, r.ChannelID, r.Reward.ID, status); err != nil {
			// At-most-once: a failed update leaves the redemption pending on
			// Twitch's side and is not retried here.
			log.Error("redemption status update failed", slog.Any("err", err))
		} else {
			telemetry.StatusUpdates.WithLabelValues(string(status)).Inc()
		}
	}
}

// invoke runs one handler with fault isolation: an error or panic is logged
// with the full redemption payload and treated as "no opinion".
func (l *PointsLoop) invoke(ctx context.Context, h namedRewardHandler, r pubsub.Redemption, log *slog.Logger) (outcome Outcome) {
	ctx, span := telemetry.StartSpan(ctx, "pointsbot/dispatch", "reward_handler",
		attribute.String("handler", h.name),
		attribute.String("reward", r.Reward.Title))
	defer span.End()
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.HandlerFaults.WithLabelValues("points", h.name).Inc()
			log.Error("reward handler panicked",
				slog.String("handler", h.name),
				slog.Any("panic", rec),
				slog.Any("redemption", r))
			outcome = OutcomeNone
		}
	}()
	var err error
	telemetry.TimeFunc(telemetry.RewardHandlerDuration, func() {
		outcome, err = h.fn(ctx, r)
	})
	if err != nil {
		telemetry.HandlerFaults.WithLabelValues("points", h.name).Inc()
		telemetry.RecordError(span, err)
		log.Error("reward handler failed",
			slog.String("handler", h.name),
			slog.Any("err", err),
			slog.Any("redemption", r))
		return OutcomeNone
	}
	return outcome
}
