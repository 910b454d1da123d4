// Package handlers contains the built-in chat and reward handlers. Each
// handler closes over its dependencies at registration time and is wired up
// explicitly in main, in a fixed order.
package handlers

import "context"

// Sender posts a message to the joined channel's chat.
type Sender interface {
	SendChat(text string) error
}

// PlayOptions tunes audio playback. The zero value plays a source as-is on
// the default output.
type PlayOptions struct {
	// Rate is a playback-speed multiplier as a string, e.g. "1.1".
	Rate string
	// PitchShift is in [-1, 1]; 0 means unshifted.
	PitchShift float64
	// Output names the audio device, "default" or empty for the system one.
	Output string
}

// Player plays an audio source, which is either a local file path or a URL.
// Implementations block until playback finishes or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, source string, opts PlayOptions) error
}

// Opener displays an image fetched from a viewer-supplied URL.
type Opener interface {
	Open(ctx context.Context, url, title string) error
}

// SubscriberChecker is the slice of the Helix client the image handler needs.
type SubscriberChecker interface {
	IsSubscriber(ctx context.Context, channelID, userID string) (bool, error)
}
