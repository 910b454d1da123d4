package pubsub

import (
	"encoding/json"
	"strings"
	"testing"
)

func redemptionFrame(t *testing.T, inner map[string]any) []byte {
	t.Helper()
	msg, err := json.Marshal(inner)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(map[string]any{
		"type": "MESSAGE",
		"data": map[string]any{
			"topic":   "channel-points-channel-v1.123",
			"message": string(msg),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestParseEnvelopeRedemption(t *testing.T) {
	raw := redemptionFrame(t, map[string]any{
		"type": "reward-redeemed",
		"data": map[string]any{
			"timestamp": "2023-01-02T03:04:05Z",
			"redemption": map[string]any{
				"id":          "redemption-1",
				"channel_id":  "123",
				"redeemed_at": "2023-01-02T03:04:05Z",
				"user": map[string]any{
					"id": "456", "login": "someone", "display_name": "Someone",
				},
				"reward": map[string]any{
					"id":         "reward-9",
					"channel_id": "123",
					"title":      "Run TTS",
					"cost":       50,
					"prompt":     "What do you want to say?",
				},
				"user_input": "hello world",
				"status":     "UNFULFILLED",
			},
		},
	})

	env, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.Kind != EnvelopeRedemption {
		t.Fatalf("kind = %v, want redemption", env.Kind)
	}
	r := env.Redemption.Data.Redemption
	if r.ID != "redemption-1" || r.ChannelID != "123" {
		t.Errorf("redemption ids = %q/%q", r.ID, r.ChannelID)
	}
	if r.Reward.ID != "reward-9" || r.Reward.Title != "Run TTS" || r.Reward.Cost != 50 {
		t.Errorf("reward round-trip broke: %+v", r.Reward)
	}
	if r.User.Login != "someone" || r.UserInput != "hello world" {
		t.Errorf("user fields: %+v input=%q", r.User, r.UserInput)
	}
	if r.Status != StatusUnfulfilled {
		t.Errorf("status = %q", r.Status)
	}
}

func TestParseEnvelopePong(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"PONG"}`))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.Kind != EnvelopePong {
		t.Errorf("kind = %v, want pong", env.Kind)
	}
}

func TestParseEnvelopeOther(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"response frame", `{"type":"RESPONSE","error":"","nonce":""}`},
		{"foreign topic", `{"type":"MESSAGE","data":{"topic":"whispers.123","message":"{}"}}`},
		{"reconnect", `{"type":"RECONNECT"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tc.raw))
			if err != nil {
				t.Fatalf("ParseEnvelope: %v", err)
			}
			if env.Kind != EnvelopeOther {
				t.Errorf("kind = %v, want other", env.Kind)
			}
		})
	}
}

func TestParseEnvelopeMalformed(t *testing.T) {
	if env, err := ParseEnvelope([]byte("not json")); err == nil || env.Kind != EnvelopeOther {
		t.Errorf("invalid JSON: env=%+v err=%v", env, err)
	}

	// Valid envelope, nested payload missing required redemption fields:
	// fails at the decode boundary rather than deeper in dispatch.
	raw := redemptionFrame(t, map[string]any{
		"type": "reward-redeemed",
		"data": map[string]any{"redemption": map[string]any{"id": ""}},
	})
	if _, err := ParseEnvelope(raw); err == nil {
		t.Error("missing ids should be rejected")
	}

	raw = redemptionFrame(t, map[string]any{"type": "something-else", "data": map[string]any{}})
	if _, err := ParseEnvelope(raw); err == nil {
		t.Error("wrong nested type should be rejected")
	}
}

func TestListenPayload(t *testing.T) {
	raw, err := ListenPayload("123", "tok")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Type string `json:"type"`
		Data struct {
			Topics    []string `json:"topics"`
			AuthToken string   `json:"auth_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != "LISTEN" {
		t.Errorf("type = %q", got.Type)
	}
	if len(got.Data.Topics) != 1 || got.Data.Topics[0] != "channel-points-channel-v1.123" {
		t.Errorf("topics = %q", got.Data.Topics)
	}
	if got.Data.AuthToken != "tok" {
		t.Errorf("auth_token = %q", got.Data.AuthToken)
	}

	if !strings.Contains(string(PingPayload()), `"PING"`) {
		t.Errorf("ping payload = %s", PingPayload())
	}
}
