package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mirrelia/pointsbot/dispatch"
	"github.com/mirrelia/pointsbot/pubsub"
)

const showImagePrefix = "Show image"

// NewImages builds the reward handler that displays a viewer-supplied image.
// The reward is subscriber-gated; non-subscribers get a polite refusal in
// chat and their points back.
func NewImages(checker SubscriberChecker, sender Sender, opener Opener) dispatch.RewardHandler {
	log := slog.Default().With(slog.String("component", "images"))
	return func(ctx context.Context, r pubsub.Redemption) (dispatch.Outcome, error) {
		if !strings.HasPrefix(r.Reward.Title, showImagePrefix) {
			return dispatch.OutcomeNone, nil
		}

		sub, err := checker.IsSubscriber(ctx, r.ChannelID, r.User.ID)
		if err != nil {
			return dispatch.OutcomeNone, fmt.Errorf("subscriber check: %w", err)
		}
		if !sub {
			refusal := fmt.Sprintf("Sorry @%s, you need to be a subscriber to use this reward.", r.User.DisplayName)
			if err := sender.SendChat(refusal); err != nil {
				log.Error("failed to send refusal", slog.Any("err", err))
			}
			return dispatch.OutcomeCancel, nil
		}

		if err := opener.Open(ctx, r.UserInput, r.User.DisplayName); err != nil {
			log.Error("failed to show image",
				slog.String("url", r.UserInput), slog.Any("err", err))
			return dispatch.OutcomeCancel, nil
		}
		return dispatch.OutcomeFulfill, nil
	}
}
