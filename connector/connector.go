// Package connector owns the two live Twitch connections: the PubSub feed
// delivering channel-point redemptions and the IRC chat feed. It multiplexes
// incoming frames into two typed queues, keeps both sockets alive (heartbeat,
// PONG replies, read retries), and exposes start/stop/send operations.
//
// Gorilla/websocket supports one concurrent reader and one concurrent writer
// per connection, so all writes go through a per-socket mutex.
package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mirrelia/pointsbot/irc"
	"github.com/mirrelia/pointsbot/pubsub"
	"github.com/mirrelia/pointsbot/telemetry"
)

const (
	// DefaultPubsubURL is Twitch's PubSub edge endpoint.
	DefaultPubsubURL = "wss://pubsub-edge.twitch.tv"
	// DefaultIRCURL is Twitch's IRC-over-websocket chat endpoint.
	DefaultIRCURL = "wss://irc-ws.chat.twitch.tv:443"

	heartbeatInterval = 60 * time.Second
	readRetryDelay    = 250 * time.Millisecond
)

// ErrLoginFailed is returned by Start when Twitch rejects the IRC
// credentials. A stale token cannot self-heal, so this is terminal: the
// session is torn down and not retried here.
var ErrLoginFailed = errors.New("irc login unsuccessful")

// ChatEvent is one chat line ready for dispatch.
type ChatEvent struct {
	Chatter irc.Chatter
	Message string
}

// Options configures a Connector. Zero-value URLs fall back to the Twitch
// production endpoints; tests point them at local fake servers.
type Options struct {
	AccessToken string
	ChannelID   string
	ChannelName string
	PubsubURL   string
	IRCURL      string
	Heartbeat   time.Duration
}

// wsConn pairs a websocket connection with its write lock.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) writeText(data string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, []byte(data))
}

func (w *wsConn) writeBytes(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) close() error { return w.conn.Close() }

// Connector owns the two sockets and their receive loops. One live session
// exists per logical channel at a time; there is no pooling.
type Connector struct {
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	pubsubC *wsConn
	chatC   *wsConn
	cancel  context.CancelFunc
	started bool

	// ChatQueue and RedemptionQueue are the only consumer-visible state.
	ChatQueue       *Queue[ChatEvent]
	RedemptionQueue *Queue[*pubsub.RedemptionEvent]
}

// New builds a stopped connector. Call Start to open the sockets.
func New(opts Options) *Connector {
	telemetry.Init()
	if opts.PubsubURL == "" {
		opts.PubsubURL = DefaultPubsubURL
	}
	if opts.IRCURL == "" {
		opts.IRCURL = DefaultIRCURL
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = heartbeatInterval
	}
	return &Connector{
		opts:            opts,
		log:             slog.Default().With(slog.String("component", "connector")),
		ChatQueue:       NewQueue[ChatEvent](telemetry.ChatQueueDepth),
		RedemptionQueue: NewQueue[*pubsub.RedemptionEvent](telemetry.RedemptionQueueDepth),
	}
}

// ChannelID returns the broadcaster id the connector is bound to.
func (c *Connector) ChannelID() string { return c.opts.ChannelID }

// Start opens both sockets, subscribes to the channel-points topic, runs the
// IRC login handshake to completion, and leaves the heartbeat and both
// receive loops running in the background. It blocks until IRC login
// succeeds or fails so a bad token surfaces as a startup error rather than a
// silently dead chat feed.
func (c *Connector) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("connector already started")
	}
	c.started = true
	c.mu.Unlock()

	c.log.Info("connecting to pubsub", slog.String("url", c.opts.PubsubURL))
	psConn, _, err := websocket.DefaultDialer.DialContext(ctx, c.opts.PubsubURL, nil)
	if err != nil {
		return fmt.Errorf("dial pubsub: %w", err)
	}

	c.log.Info("connecting to irc", slog.String("url", c.opts.IRCURL))
	chatConn, _, err := websocket.DefaultDialer.DialContext(ctx, c.opts.IRCURL, nil)
	if err != nil {
		_ = psConn.Close()
		return fmt.Errorf("dial irc: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.pubsubC = &wsConn{conn: psConn}
	c.chatC = &wsConn{conn: chatConn}
	c.cancel = cancel
	c.mu.Unlock()

	// Blocked reads don't observe context cancellation on their own; closing
	// the sockets forces them out promptly.
	go func() {
		<-runCtx.Done()
		_ = psConn.Close()
		_ = chatConn.Close()
	}()

	// Tell Twitch which redemption topic we want before anything can arrive.
	listen, err := pubsub.ListenPayload(c.opts.ChannelID, c.opts.AccessToken)
	if err != nil {
		c.Stop()
		return fmt.Errorf("build listen payload: %w", err)
	}
	c.log.Info("sending pubsub listen payload")
	if err := c.pubsubC.writeBytes(listen); err != nil {
		c.Stop()
		return fmt.Errorf("send listen: %w", err)
	}

	go c.heartbeatLoop(runCtx)
	go c.pubsubReceiveLoop(runCtx)

	c.log.Info("sending irc pass and nick")
	if err := c.chatC.writeText(irc.PassFrame(c.opts.AccessToken)); err != nil {
		c.Stop()
		return fmt.Errorf("send pass: %w", err)
	}
	if err := c.chatC.writeText(irc.NickFrame(c.opts.ChannelName)); err != nil {
		c.Stop()
		return fmt.Errorf("send nick: %w", err)
	}

	if err := c.awaitWelcome(runCtx); err != nil {
		c.Stop()
		return err
	}

	c.log.Info("joining channel", slog.String("channel", c.opts.ChannelName))
	if err := c.chatC.writeText(irc.JoinFrame(c.opts.ChannelName)); err != nil {
		c.Stop()
		return fmt.Errorf("send join: %w", err)
	}
	if err := c.chatC.writeText(irc.CapReqFrame()); err != nil {
		c.Stop()
		return fmt.Errorf("send cap req: %w", err)
	}

	go c.ircReceiveLoop(runCtx)
	c.log.Info("connected")
	return nil
}

// awaitWelcome reads IRC lines until Twitch either welcomes or rejects the
// login. Read errors are logged and retried; only an explicit login failure
// or cancellation ends the wait.
func (c *Connector) awaitWelcome(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := c.chatC.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("error reading irc socket during handshake", slog.Any("err", err))
			if !sleepCtx(ctx, readRetryDelay) {
				return ctx.Err()
			}
			continue
		}
		for _, line := range irc.SplitLines(string(raw)) {
			switch parsed := irc.ParseLine(line); parsed.Kind {
			case irc.LineLoginFailed:
				c.log.Error("irc login rejected")
				return ErrLoginFailed
			case irc.LineLoginWelcome:
				c.log.Info("irc login accepted")
				return nil
			}
		}
	}
}

// ircReceiveLoop is the steady-state chat reader. Pings are answered before
// the next line is processed so keepalive is never starved by backlog.
func (c *Connector) ircReceiveLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, raw, err := c.chatC.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("error reading irc socket", slog.Any("err", err))
			if !sleepCtx(ctx, readRetryDelay) {
				return
			}
			continue
		}
		for _, line := range irc.SplitLines(string(raw)) {
			switch parsed := irc.ParseLine(line); parsed.Kind {
			case irc.LinePing:
				c.log.Debug("answering irc ping")
				if err := c.chatC.writeText(irc.PongFrame(parsed.PingPayload)); err != nil {
					c.log.Error("failed to send pong", slog.Any("err", err))
				} else {
					telemetry.PingsAnswered.Inc()
				}
			case irc.LineText:
				c.log.Debug("chat line received", slog.String("from", parsed.Username))
				c.ChatQueue.Enqueue(ChatEvent{
					Chatter: irc.ParseChatter(parsed.Username, parsed.Tags),
					Message: parsed.Message,
				})
				telemetry.ChatMessagesReceived.Inc()
			case irc.LineLoginFailed:
				// Can arrive mid-stream when a token expires underneath us.
				c.log.Error("irc login revoked, closing chat session")
				_ = c.chatC.close()
				return
			case irc.LineBlank, irc.LineLoginWelcome:
				// nothing to do
			default:
				c.log.Info("irc line received", slog.String("line", parsed.Raw))
				telemetry.UnrecognizedLines.Inc()
			}
		}
	}
}

// pubsubReceiveLoop drains the PubSub socket, queueing redemptions.
func (c *Connector) pubsubReceiveLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, raw, err := c.pubsubC.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("error reading pubsub socket", slog.Any("err", err))
			if !sleepCtx(ctx, readRetryDelay) {
				return
			}
			continue
		}
		env, err := pubsub.ParseEnvelope(raw)
		if err != nil {
			c.log.Warn("dropping unparseable pubsub frame", slog.Any("err", err))
			continue
		}
		switch env.Kind {
		case pubsub.EnvelopePong:
			c.log.Debug("pubsub pong received")
		case pubsub.EnvelopeRedemption:
			c.log.Debug("redemption received",
				slog.String("redemption_id", env.Redemption.Data.Redemption.ID),
				slog.String("reward", env.Redemption.Data.Redemption.Reward.Title))
			c.RedemptionQueue.Enqueue(env.Redemption)
			telemetry.RedemptionsReceived.Inc()
		default:
			c.log.Debug("pubsub frame received", slog.String("raw", string(env.Raw)))
		}
	}
}

// heartbeatLoop pings the PubSub socket so Twitch doesn't drop us.
func (c *Connector) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.Heartbeat)
	defer ticker.Stop()
	for {
		c.log.Debug("sending pubsub ping")
		if err := c.pubsubC.writeBytes(pubsub.PingPayload()); err != nil {
			c.log.Error("failed to send pubsub ping", slog.Any("err", err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SendChat writes a PRIVMSG to the channel. There is no outgoing rate
// limiting here; Twitch enforces its own chat limits server-side.
func (c *Connector) SendChat(text string) error {
	c.mu.Lock()
	chat := c.chatC
	c.mu.Unlock()
	if chat == nil {
		return errors.New("connector not started")
	}
	c.log.Debug("sending chat message", slog.String("text", text))
	return chat.writeText(irc.PrivmsgFrame(c.opts.ChannelName, text))
}

// Stop cancels the background loops and closes both sockets. It tolerates
// never-started and already-closed sockets, so teardown is idempotent.
func (c *Connector) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	ps, chat := c.pubsubC, c.chatC
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		c.log.Info("cancelling connector loops")
		cancel()
	}
	if ps != nil {
		_ = ps.close()
	}
	if chat != nil {
		_ = chat.close()
	}
}

// sleepCtx pauses between read retries; returns false when ctx ended.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
