// Package pubsub parses the Twitch PubSub JSON frames carrying channel-point
// redemption events, and builds the outgoing LISTEN/PING payloads.
package pubsub

import "time"

// TopicPrefix is the channel-points topic family this bot subscribes to.
const TopicPrefix = "channel-points-channel-v1"

// RedemptionStatus mirrors the status values Twitch accepts on the
// redemption-update endpoint.
type RedemptionStatus string

const (
	StatusUnknown     RedemptionStatus = "UNKNOWN"
	StatusUnfulfilled RedemptionStatus = "UNFULFILLED"
	StatusFulfilled   RedemptionStatus = "FULFILLED"
	StatusCanceled    RedemptionStatus = "CANCELED"
)

// User is the redeeming viewer.
type User struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

type Image struct {
	URL1X string `json:"url_1x"`
	URL2X string `json:"url_2x"`
	URL4X string `json:"url_4x"`
}

type MaxPerStream struct {
	IsEnabled    bool `json:"is_enabled"`
	MaxPerStream int  `json:"max_per_stream"`
}

// Reward is the configured channel-point reward attached to a redemption.
type Reward struct {
	ID                  string       `json:"id"`
	ChannelID           string       `json:"channel_id"`
	Title               string       `json:"title"`
	Prompt              string       `json:"prompt"`
	Cost                int          `json:"cost"`
	IsUserInputRequired bool         `json:"is_user_input_required"`
	IsSubOnly           bool         `json:"is_sub_only"`
	Image               *Image       `json:"image"`
	DefaultImage        Image        `json:"default_image"`
	BackgroundColor     string       `json:"background_color"`
	IsEnabled           bool         `json:"is_enabled"`
	IsPaused            bool         `json:"is_paused"`
	IsInStock           bool         `json:"is_in_stock"`
	MaxPerStream        MaxPerStream `json:"max_per_stream"`
	SkipRequestQueue    bool         `json:"should_redemptions_skip_request_queue"`
}

// Redemption is one viewer exchanging points for a reward. The authoritative
// status lives on Twitch's side; the local copy is never corrected in place.
type Redemption struct {
	ID         string           `json:"id"`
	User       User             `json:"user"`
	ChannelID  string           `json:"channel_id"`
	RedeemedAt time.Time        `json:"redeemed_at"`
	Reward     Reward           `json:"reward"`
	UserInput  string           `json:"user_input"`
	Status     RedemptionStatus `json:"status"`
}

// RedemptionEvent is the decoded "reward-redeemed" message.
type RedemptionEvent struct {
	Type string `json:"type"`
	Data struct {
		Timestamp  time.Time  `json:"timestamp"`
		Redemption Redemption `json:"redemption"`
	} `json:"data"`
}
