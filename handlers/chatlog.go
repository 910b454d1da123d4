package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mirrelia/pointsbot/db"
	"github.com/mirrelia/pointsbot/dispatch"
	"github.com/mirrelia/pointsbot/irc"
)

// NewChatLog builds the chat handler that records every message into the
// chat_messages table. Only registered when a database is configured.
func NewChatLog(database *sql.DB, channel string) dispatch.ChatHandler {
	return func(ctx context.Context, chatter irc.Chatter, message string) error {
		if err := db.InsertChatMessage(ctx, database, channel, chatter, message, time.Now().UTC()); err != nil {
			return fmt.Errorf("insert chat message: %w", err)
		}
		return nil
	}
}
