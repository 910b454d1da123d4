package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mirrelia/pointsbot/dispatch"
	"github.com/mirrelia/pointsbot/irc"
)

// NewCommands builds the chat handler answering "!name" commands with the
// configured replies. Matching is case-insensitive.
func NewCommands(cfg map[string]string, sender Sender) dispatch.ChatHandler {
	replies := make(map[string]string, len(cfg))
	for name, response := range cfg {
		replies[strings.ToLower(name)] = response
	}
	log := slog.Default().With(slog.String("component", "commands"))
	return func(ctx context.Context, chatter irc.Chatter, message string) error {
		cmd, _, _ := strings.Cut(message, " ")
		if !strings.HasPrefix(cmd, "!") || len(cmd) < 2 {
			return nil
		}
		response, ok := replies[strings.ToLower(cmd[1:])]
		if !ok {
			return nil
		}
		log.Info("running command output", slog.String("command", cmd))
		if err := sender.SendChat(response); err != nil {
			return fmt.Errorf("send command response: %w", err)
		}
		return nil
	}
}
