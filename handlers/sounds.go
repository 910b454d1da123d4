package handlers

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mirrelia/pointsbot/dispatch"
	"github.com/mirrelia/pointsbot/pubsub"
	"github.com/mirrelia/pointsbot/settings"
	"github.com/mirrelia/pointsbot/twitchapi"
)

// NewSounds builds the reward handler for the play-sound rewards. The clip
// name comes from the reward title; a missing or unplayable file cancels the
// redemption so the viewer gets their points back.
func NewSounds(cfg settings.SoundSettings, soundsDir string, player Player) dispatch.RewardHandler {
	log := slog.Default().With(slog.String("component", "sounds"))
	return func(ctx context.Context, r pubsub.Redemption) (dispatch.Outcome, error) {
		name, ok := strings.CutPrefix(r.Reward.Title, twitchapi.PlaySoundPrefix)
		if !ok {
			return dispatch.OutcomeNone, nil
		}

		path := filepath.Join(soundsDir, name+".wav")
		if _, err := os.Stat(path); err != nil {
			log.Error("sound file missing", slog.String("path", path), slog.Any("err", err))
			return dispatch.OutcomeCancel, nil
		}
		if err := player.Play(ctx, path, PlayOptions{Output: cfg.SoundOutput}); err != nil {
			log.Error("error playing sound file", slog.String("path", path), slog.Any("err", err))
			return dispatch.OutcomeCancel, nil
		}
		log.Info("played sound file", slog.String("path", path))
		return dispatch.OutcomeFulfill, nil
	}
}
