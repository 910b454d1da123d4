// Command pointsbot connects a Twitch channel's chat and channel-point
// redemptions to local handlers. It:
//   - Loads configuration and initializes structured logging.
//   - Obtains a Twitch user token (stored, refreshed, or via the local OAuth flow).
//   - Creates the bot's custom rewards on the channel.
//   - Opens the IRC and PubSub websockets and runs the dispatch loops.
//   - Exposes a minimal HTTP server with the OAuth callback, /healthz,
//     /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mirrelia/pointsbot/config"
	"github.com/mirrelia/pointsbot/connector"
	"github.com/mirrelia/pointsbot/db"
	"github.com/mirrelia/pointsbot/dispatch"
	"github.com/mirrelia/pointsbot/handlers"
	"github.com/mirrelia/pointsbot/oauth"
	"github.com/mirrelia/pointsbot/server"
	"github.com/mirrelia/pointsbot/settings"
	"github.com/mirrelia/pointsbot/telemetry"
	"github.com/mirrelia/pointsbot/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	if format != "json" {
		format = "text"
	}
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateOAuthReady(); err != nil {
		slog.Error("config invalid", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("pointsbot", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Operator settings
	sts, err := settings.Load(cfg.SettingsPath)
	if err != nil {
		slog.Error("settings load failed", slog.String("path", cfg.SettingsPath), slog.Any("err", err))
		os.Exit(1)
	}

	// DB is optional: without DB_DSN tokens live only in env/memory and the
	// chat log handler is not registered.
	var database *sql.DB
	if cfg.DBDsn != "" {
		database, err = db.Connect(cfg.DBDsn)
		if err != nil {
			slog.Error("failed to open db", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db", slog.Any("err", err))
			os.Exit(1)
		}
	} else {
		slog.Info("no DB_DSN set, running without persistence")
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	oauthClient := twitchapi.NewOAuthClient(cfg.TwitchClientID, cfg.TwitchClientSecret, cfg.TwitchRedirectURI)
	tokenCache := &oauth.TokenCache{}

	// HTTP server starts early so the OAuth callback is reachable during
	// interactive authorization. The full status snapshot is rebound once
	// the connector exists.
	srv := server.New(server.Options{
		DB:    database,
		OAuth: oauthClient,
		Status: func() map[string]any {
			return map[string]any{"channel": cfg.TwitchChannel, "state": "starting"}
		},
	})
	go func() {
		if err := srv.Start(ctx, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	accessToken, err := obtainToken(ctx, cfg, oauthClient, database, srv)
	if err != nil {
		slog.Error("could not obtain a twitch user token", slog.Any("err", err))
		os.Exit(1)
	}
	tokenCache.Set(accessToken)

	helix := &twitchapi.HelixClient{ClientID: cfg.TwitchClientID, Token: tokenCache.Get}

	channelID, login, err := helix.GetUser(ctx)
	if err != nil {
		slog.Error("user lookup failed", slog.Any("err", err))
		os.Exit(1)
	}
	channelName := cfg.TwitchChannel
	if channelName == "" {
		channelName = login
	}
	slog.Info("authenticated", slog.String("login", login), slog.String("channel", channelName), slog.String("channel_id", channelID))

	// Reward catalogue: created at startup, removed at shutdown.
	if err := helix.CreateRewards(ctx, channelID, twitchapi.Rewards); err != nil {
		slog.Warn("reward creation incomplete", slog.Any("err", err))
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := helix.DeleteRewards(cleanupCtx, channelID, twitchapi.Rewards); err != nil {
			slog.Warn("reward cleanup incomplete", slog.Any("err", err))
		}
	}()

	// Websocket connector
	conn := connector.New(connector.Options{
		AccessToken: accessToken,
		ChannelID:   channelID,
		ChannelName: channelName,
		PubsubURL:   cfg.PubsubURL,
		IRCURL:      cfg.IRCURL,
	})
	if err := conn.Start(ctx); err != nil {
		slog.Error("connector start failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer conn.Stop()

	srv.SetStatus(func() map[string]any {
		return map[string]any{
			"channel":          channelName,
			"state":            "running",
			"chat_queue":       conn.ChatQueue.Len(),
			"redemption_queue": conn.RedemptionQueue.Len(),
		}
	})

	// Handler registry, in fixed startup order.
	reg := dispatch.NewRegistry()
	player := &vlcPlayer{}
	reg.OnChat("commands", handlers.NewCommands(sts.Commands, conn))
	ttsHandler, err := handlers.NewTTS(sts.TTS, player)
	if err != nil {
		slog.Error("tts handler setup failed", slog.Any("err", err))
		os.Exit(1)
	}
	reg.OnChat("tts", ttsHandler)
	if database != nil {
		reg.OnChat("chatlog", handlers.NewChatLog(database, channelName))
	}
	reg.OnReward("sounds", handlers.NewSounds(sts.Sounds, cfg.SoundsDir, player))
	reg.OnReward("images", handlers.NewImages(helix, conn, &systemOpener{}))
	slog.Info("handlers registered",
		slog.Any("chat", reg.ChatHandlerNames()),
		slog.Any("reward", reg.RewardHandlerNames()))

	// Dispatch loops under supervision
	chatLoop := dispatch.NewChatLoop(conn.ChatQueue, reg)
	pointsLoop := dispatch.NewPointsLoop(conn.RedemptionQueue, reg, helix)
	dispatch.NewSupervisor("chat", chatLoop.Run).Start(ctx)
	dispatch.NewSupervisor("points", pointsLoop.Run).Start(ctx)

	// Centralized OAuth token refresher
	if database != nil {
		oauth.StartRefresher(ctx, database, "twitch", 5*time.Minute, 15*time.Minute, func(rctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
			tok, err := oauthClient.Refresh(rctx, refreshToken)
			if err != nil {
				return "", "", time.Time{}, "", err
			}
			return tok.AccessToken, tok.RefreshToken, tok.Expiry, "", nil
		}, tokenCache)
	}

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}

// obtainToken finds a usable user access token: the environment pair, then
// the database row, then the interactive browser flow. Whatever it finds is
// validated and persisted.
func obtainToken(ctx context.Context, cfg *config.Config, oc *twitchapi.OAuthClient, database *sql.DB, srv *server.Server) (string, error) {
	persist := func(access, refresh string, expiry time.Time) {
		if database == nil {
			return
		}
		if err := db.UpsertOAuthToken(ctx, database, "twitch", access, refresh, expiry, strings.Join(twitchapi.Scopes, " ")); err != nil {
			slog.Warn("token persist failed", slog.Any("err", err))
		}
	}

	tryPair := func(access, refresh, source string) (string, bool) {
		if access != "" {
			ok, err := oc.Validate(ctx, access)
			if err != nil {
				slog.Warn("token validation failed", slog.String("source", source), slog.Any("err", err))
			} else if ok {
				slog.Info("using existing access token", slog.String("source", source))
				return access, true
			}
		}
		if refresh != "" {
			tok, err := oc.Refresh(ctx, refresh)
			if err != nil {
				slog.Warn("token refresh failed", slog.String("source", source), slog.Any("err", err))
				return "", false
			}
			slog.Info("refreshed access token", slog.String("source", source))
			persist(tok.AccessToken, tok.RefreshToken, tok.Expiry)
			return tok.AccessToken, true
		}
		return "", false
	}

	if access, ok := tryPair(cfg.TwitchAccessToken, cfg.TwitchRefreshToken, "env"); ok {
		return access, nil
	}
	if database != nil {
		storedAccess, storedRefresh, _, _, err := db.GetOAuthToken(ctx, database, "twitch")
		if err != nil {
			slog.Warn("stored token read failed", slog.Any("err", err))
		} else if access, ok := tryPair(storedAccess, storedRefresh, "db"); ok {
			return access, nil
		}
	}

	// Interactive flow: the operator opens the authorize URL, the callback
	// hands the code back through the local server.
	slog.Info("no valid token, authorize the bot in a browser",
		slog.String("url", "http://localhost"+cfg.HTTPAddr+"/auth/twitch/start"))
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case code := <-srv.Codes():
		tok, err := oc.Exchange(ctx, code)
		if err != nil {
			return "", err
		}
		persist(tok.AccessToken, tok.RefreshToken, tok.Expiry)
		return tok.AccessToken, nil
	case <-time.After(15 * time.Minute):
		return "", errors.New("timed out waiting for authorization")
	}
}
