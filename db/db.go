// Package db provides database connection helpers, schema migration, and small data access helpers.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'

	"github.com/mirrelia/pointsbot/crypto"
	"github.com/mirrelia/pointsbot/irc"
)

var (
	tokenCipher     *crypto.TokenCipher
	tokenCipherOnce sync.Once
	tokenCipherErr  error
)

// getTokenCipher lazily builds the cipher from ENCRYPTION_KEY. An unset key
// disables encryption: tokens are stored plaintext with encryption_version 0.
func getTokenCipher() (*crypto.TokenCipher, error) {
	tokenCipherOnce.Do(func() {
		key := os.Getenv("ENCRYPTION_KEY")
		if key == "" {
			slog.Warn("ENCRYPTION_KEY not set, OAuth tokens will be stored in plaintext (not recommended for production)", slog.String("component", "db_encryption"))
			return
		}
		c, err := crypto.NewTokenCipher(key)
		if err != nil {
			tokenCipherErr = fmt.Errorf("failed to initialize encryption: %w", err)
			slog.Error("encryption initialization failed", slog.Any("error", tokenCipherErr), slog.String("component", "db_encryption"))
			return
		}
		tokenCipher = c
		slog.Info("OAuth token encryption enabled (AES-256-GCM)", slog.String("component", "db_encryption"))
	})
	return tokenCipher, tokenCipherErr
}

// Connect opens a Postgres connection for the given DSN.
func Connect(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty DSN")
	}
	return sql.Open("pgx", dsn)
}

// Migrate applies idempotent schema changes for all required tables and indices.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS oauth_tokens (
			provider TEXT PRIMARY KEY,
			access_token TEXT,
			refresh_token TEXT,
			expires_at TIMESTAMPTZ,
			scope TEXT,
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			encryption_version INTEGER DEFAULT 0,
			encryption_key_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id SERIAL PRIMARY KEY,
			channel TEXT NOT NULL,
			username TEXT,
			message TEXT,
			color TEXT,
			moderator BOOLEAN DEFAULT FALSE,
			subscriber BOOLEAN DEFAULT FALSE,
			vip BOOLEAN DEFAULT FALSE,
			sent_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		// Upgrades for pre-encryption installations.
		`ALTER TABLE oauth_tokens ADD COLUMN IF NOT EXISTS encryption_version INTEGER DEFAULT 0`,
		`ALTER TABLE oauth_tokens ADD COLUMN IF NOT EXISTS encryption_key_id TEXT`,
		`CREATE INDEX IF NOT EXISTS idx_chat_channel_sent ON chat_messages(channel, sent_at)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_username ON chat_messages(username)`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}

// UpsertOAuthToken stores or updates an OAuth token for a provider.
// If encryption is enabled (ENCRYPTION_KEY set), tokens are encrypted before storage.
// encryption_version=1 indicates encrypted tokens, version=0 indicates plaintext.
func UpsertOAuthToken(ctx context.Context, dbx *sql.DB, provider, access, refresh string, expiry time.Time, scope string) error {
	cipher, err := getTokenCipher()
	if err != nil {
		return fmt.Errorf("get token cipher: %w", err)
	}

	encVersion := 0
	encKeyID := ""
	accessToStore := access
	refreshToStore := refresh

	if cipher != nil {
		encVersion = 1
		encKeyID = "default"

		if accessToStore, err = cipher.Seal(access); err != nil {
			return fmt.Errorf("encrypt access token: %w", err)
		}
		if refreshToStore, err = cipher.Seal(refresh); err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	q := `INSERT INTO oauth_tokens(provider, access_token, refresh_token, expires_at, scope, encryption_version, encryption_key_id, updated_at)
		  VALUES($1,$2,$3,$4,$5,$6,$7,NOW())
		  ON CONFLICT(provider) DO UPDATE SET
		    access_token=EXCLUDED.access_token,
		    refresh_token=EXCLUDED.refresh_token,
		    expires_at=EXCLUDED.expires_at,
		    scope=EXCLUDED.scope,
		    encryption_version=EXCLUDED.encryption_version,
		    encryption_key_id=EXCLUDED.encryption_key_id,
		    updated_at=NOW()`
	_, err = dbx.ExecContext(ctx, q, provider, accessToStore, refreshToStore, expiry, scope, encVersion, encKeyID)
	return err
}

// GetOAuthToken retrieves a stored token row; returns zero values if not found.
// Automatically decrypts tokens if encryption_version=1 and encryption is configured.
// Plaintext rows (version=0) are read without decryption.
func GetOAuthToken(ctx context.Context, dbx *sql.DB, provider string) (access, refresh string, expiry time.Time, scope string, err error) {
	var encVersion int
	var encKeyID sql.NullString

	row := dbx.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at, scope, COALESCE(encryption_version, 0), encryption_key_id
		 FROM oauth_tokens WHERE provider = $1`, provider)

	err = row.Scan(&access, &refresh, &expiry, &scope, &encVersion, &encKeyID)
	if err == sql.ErrNoRows {
		return "", "", time.Time{}, "", nil
	}
	if err != nil {
		return "", "", time.Time{}, "", err
	}

	if encVersion == 1 {
		cipher, cipherErr := getTokenCipher()
		if cipherErr != nil {
			return "", "", time.Time{}, "", fmt.Errorf("get token cipher: %w", cipherErr)
		}
		if cipher == nil {
			return "", "", time.Time{}, "", fmt.Errorf("token is encrypted but ENCRYPTION_KEY not configured")
		}

		if access, err = cipher.Open(access); err != nil {
			return "", "", time.Time{}, "", fmt.Errorf("decrypt access token: %w", err)
		}
		if refresh, err = cipher.Open(refresh); err != nil {
			return "", "", time.Time{}, "", fmt.Errorf("decrypt refresh token: %w", err)
		}
	}

	return access, refresh, expiry, scope, nil
}

// InsertChatMessage records one chat line for the channel log.
func InsertChatMessage(ctx context.Context, dbx *sql.DB, channel string, chatter irc.Chatter, message string, sentAt time.Time) error {
	_, err := dbx.ExecContext(ctx,
		`INSERT INTO chat_messages(channel, username, message, color, moderator, subscriber, vip, sent_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		channel, chatter.Username, message, chatter.Colour, chatter.Moderator, chatter.Subscriber, chatter.VIP, sentAt)
	return err
}
