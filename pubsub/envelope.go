package pubsub

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EnvelopeKind discriminates the variants returned by ParseEnvelope.
type EnvelopeKind int

const (
	EnvelopePong EnvelopeKind = iota
	EnvelopeRedemption
	EnvelopeOther
)

// Envelope is one classified PubSub frame. Redemption is set only for
// EnvelopeRedemption; Raw always carries the original frame for logging.
type Envelope struct {
	Kind       EnvelopeKind
	Redemption *RedemptionEvent
	Raw        []byte
}

type wireEnvelope struct {
	Type string `json:"type"`
	Data struct {
		Topic   string `json:"topic"`
		Message string `json:"message"`
	} `json:"data"`
}

// ParseEnvelope decodes a raw PubSub frame. The interesting case is a MESSAGE
// on a channel-points topic, whose payload is itself a JSON string that gets
// decoded a second time into a RedemptionEvent. Required fields are validated
// here so a malformed event fails at the boundary instead of inside a
// dispatch loop.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{Kind: EnvelopeOther, Raw: raw}, fmt.Errorf("decode envelope: %w", err)
	}
	switch {
	case env.Type == "PONG":
		return Envelope{Kind: EnvelopePong, Raw: raw}, nil
	case env.Type == "MESSAGE" && strings.HasPrefix(env.Data.Topic, TopicPrefix):
		var ev RedemptionEvent
		if err := json.Unmarshal([]byte(env.Data.Message), &ev); err != nil {
			return Envelope{Kind: EnvelopeOther, Raw: raw}, fmt.Errorf("decode redemption message: %w", err)
		}
		if err := validateRedemption(&ev); err != nil {
			return Envelope{Kind: EnvelopeOther, Raw: raw}, err
		}
		return Envelope{Kind: EnvelopeRedemption, Redemption: &ev, Raw: raw}, nil
	default:
		return Envelope{Kind: EnvelopeOther, Raw: raw}, nil
	}
}

func validateRedemption(ev *RedemptionEvent) error {
	if ev.Type != "reward-redeemed" {
		return fmt.Errorf("unexpected message type %q", ev.Type)
	}
	r := ev.Data.Redemption
	if r.ID == "" {
		return fmt.Errorf("redemption missing id")
	}
	if r.Reward.ID == "" {
		return fmt.Errorf("redemption %s missing reward id", r.ID)
	}
	if r.ChannelID == "" {
		return fmt.Errorf("redemption %s missing channel id", r.ID)
	}
	return nil
}

// ListenPayload builds the LISTEN frame naming the channel-points topic for
// the given channel and carrying the user access token.
func ListenPayload(channelID, accessToken string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type": "LISTEN",
		"data": map[string]any{
			"topics":     []string{fmt.Sprintf("%s.%s", TopicPrefix, channelID)},
			"auth_token": accessToken,
		},
	})
}

// PingPayload is the heartbeat frame sent every minute.
func PingPayload() []byte {
	return []byte(`{"type":"PING"}`)
}
