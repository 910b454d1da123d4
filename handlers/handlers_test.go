package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mirrelia/pointsbot/dispatch"
	"github.com/mirrelia/pointsbot/irc"
	"github.com/mirrelia/pointsbot/pubsub"
	"github.com/mirrelia/pointsbot/settings"
	"github.com/mirrelia/pointsbot/twitchapi"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) SendChat(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return f.err
}

type fakeChecker struct {
	subs map[string]bool
	err  error
}

func (f *fakeChecker) IsSubscriber(ctx context.Context, channelID, userID string) (bool, error) {
	return f.subs[userID], f.err
}

type fakeOpener struct {
	opened []string
	err    error
}

func (f *fakeOpener) Open(ctx context.Context, url, title string) error {
	f.opened = append(f.opened, url)
	return f.err
}

func redemption(title, userID, displayName, input string) pubsub.Redemption {
	return pubsub.Redemption{
		ID:        "r-1",
		ChannelID: "chan-1",
		User:      pubsub.User{ID: userID, Login: "viewer", DisplayName: displayName},
		Reward:    pubsub.Reward{ID: "rw-1", Title: title},
		UserInput: input,
	}
}

func TestCommandsRespondsToKnownCommand(t *testing.T) {
	sender := &fakeSender{}
	h := NewCommands(map[string]string{"Discord": "Join us at discord.gg/example"}, sender)

	if err := h(context.Background(), irc.Chatter{Username: "kae"}, "!discord please"); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "Join us at discord.gg/example" {
		t.Errorf("sent = %v", sender.sent)
	}
}

func TestCommandsIgnoresNonCommands(t *testing.T) {
	sender := &fakeSender{}
	h := NewCommands(map[string]string{"discord": "x"}, sender)

	for _, msg := range []string{"discord", "! ", "!unknown", "hello !discord"} {
		if err := h(context.Background(), irc.Chatter{Username: "kae"}, msg); err != nil {
			t.Errorf("handler(%q): %v", msg, err)
		}
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent = %v, want none", sender.sent)
	}
}

func TestCommandsSendFailureSurfaces(t *testing.T) {
	sender := &fakeSender{err: errors.New("socket closed")}
	h := NewCommands(map[string]string{"discord": "x"}, sender)
	if err := h(context.Background(), irc.Chatter{Username: "kae"}, "!discord"); err == nil {
		t.Fatal("expected error when send fails")
	}
}

func TestSoundsPlaysExistingFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bruh.wav"), []byte("riff"), 0o600); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	player := &fakePlayer{}
	h := NewSounds(settings.SoundSettings{SoundOutput: "speakers"}, dir, player)

	out, err := h(context.Background(), redemption(twitchapi.PlaySoundPrefix+"bruh", "u-1", "Kae", ""))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if out != dispatch.OutcomeFulfill {
		t.Errorf("outcome = %v, want fulfill", out)
	}
	if len(player.sources) != 1 || player.sources[0] != filepath.Join(dir, "bruh.wav") {
		t.Errorf("played %v", player.sources)
	}
	if player.opts[0].Output != "speakers" {
		t.Errorf("output = %q", player.opts[0].Output)
	}
}

func TestSoundsCancelsOnMissingFile(t *testing.T) {
	player := &fakePlayer{}
	h := NewSounds(settings.SoundSettings{}, t.TempDir(), player)

	out, err := h(context.Background(), redemption(twitchapi.PlaySoundPrefix+"nope", "u-1", "Kae", ""))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if out != dispatch.OutcomeCancel {
		t.Errorf("outcome = %v, want cancel so points are refunded", out)
	}
	if len(player.sources) != 0 {
		t.Errorf("player should not be called, got %v", player.sources)
	}
}

func TestSoundsCancelsOnPlaybackError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "boo.wav"), []byte("riff"), 0o600); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	player := &fakePlayer{err: errors.New("no audio device")}
	h := NewSounds(settings.SoundSettings{}, dir, player)

	out, err := h(context.Background(), redemption(twitchapi.PlaySoundPrefix+"boo", "u-1", "Kae", ""))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if out != dispatch.OutcomeCancel {
		t.Errorf("outcome = %v, want cancel", out)
	}
}

func TestSoundsIgnoresOtherRewards(t *testing.T) {
	player := &fakePlayer{}
	h := NewSounds(settings.SoundSettings{}, t.TempDir(), player)

	out, err := h(context.Background(), redemption("Run TTS", "u-1", "Kae", "hi"))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if out != dispatch.OutcomeNone {
		t.Errorf("outcome = %v, want none", out)
	}
}

func TestImagesOpensForSubscriber(t *testing.T) {
	opener := &fakeOpener{}
	sender := &fakeSender{}
	h := NewImages(&fakeChecker{subs: map[string]bool{"u-1": true}}, sender, opener)

	out, err := h(context.Background(), redemption("Show image", "u-1", "Kae", "https://example.com/cat.png"))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if out != dispatch.OutcomeFulfill {
		t.Errorf("outcome = %v, want fulfill", out)
	}
	if len(opener.opened) != 1 || opener.opened[0] != "https://example.com/cat.png" {
		t.Errorf("opened %v", opener.opened)
	}
	if len(sender.sent) != 0 {
		t.Errorf("no chat message expected, got %v", sender.sent)
	}
}

func TestImagesRefusesNonSubscriber(t *testing.T) {
	opener := &fakeOpener{}
	sender := &fakeSender{}
	h := NewImages(&fakeChecker{subs: map[string]bool{}}, sender, opener)

	out, err := h(context.Background(), redemption("Show image", "u-2", "Pleb", "https://example.com/cat.png"))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if out != dispatch.OutcomeCancel {
		t.Errorf("outcome = %v, want cancel", out)
	}
	if len(opener.opened) != 0 {
		t.Errorf("opener should not be called, got %v", opener.opened)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "Sorry @Pleb, you need to be a subscriber to use this reward." {
		t.Errorf("refusal = %v", sender.sent)
	}
}

func TestImagesCheckerErrorIsNoOpinion(t *testing.T) {
	h := NewImages(&fakeChecker{err: errors.New("helix down")}, &fakeSender{}, &fakeOpener{})

	out, err := h(context.Background(), redemption("Show image", "u-1", "Kae", "url"))
	if err == nil {
		t.Fatal("expected error from failed subscriber check")
	}
	if out != dispatch.OutcomeNone {
		t.Errorf("outcome = %v, want none so no status update is sent", out)
	}
}

func TestImagesOpenFailureCancels(t *testing.T) {
	h := NewImages(&fakeChecker{subs: map[string]bool{"u-1": true}}, &fakeSender{}, &fakeOpener{err: errors.New("bad image")})

	out, err := h(context.Background(), redemption("Show image", "u-1", "Kae", "url"))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if out != dispatch.OutcomeCancel {
		t.Errorf("outcome = %v, want cancel", out)
	}
}

func TestImagesIgnoresOtherRewards(t *testing.T) {
	h := NewImages(&fakeChecker{}, &fakeSender{}, &fakeOpener{})
	out, err := h(context.Background(), redemption("Receipt print", "u-1", "Kae", "x"))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if out != dispatch.OutcomeNone {
		t.Errorf("outcome = %v, want none", out)
	}
}
