package twitchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/mirrelia/pointsbot/pubsub"
)

const defaultHelixURL = "https://api.twitch.tv/helix"

// duplicateRewardError is the Helix message returned when a reward with the
// same title already exists on the channel. Re-creating our catalogue on
// every startup makes this routine, so it is not treated as a failure.
const duplicateRewardError = "CREATE_CUSTOM_REWARD_DUPLICATE_REWARD"

// TokenProvider yields the current user access token for a request. The
// refresher swaps tokens underneath a running client, so clients never hold
// a token directly.
type TokenProvider func(ctx context.Context) (string, error)

// StaticToken wraps a fixed token as a TokenProvider.
func StaticToken(tok string) TokenProvider {
	return func(context.Context) (string, error) { return tok, nil }
}

// HelixClient calls the Helix endpoints with a user access token.
type HelixClient struct {
	ClientID   string
	Token      TokenProvider
	HTTPClient *http.Client
	// BaseURL overrides the Helix host for tests; empty means production.
	BaseURL string
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) base() string {
	if hc.BaseURL != "" {
		return hc.BaseURL
	}
	return defaultHelixURL
}

func (hc *HelixClient) do(ctx context.Context, method, path string, q url.Values, body any) (*http.Response, error) {
	tok, err := hc.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("no access token: %w", err)
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, hc.base()+path, rd)
	if err != nil {
		return nil, err
	}
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return hc.http().Do(req)
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}

// GetUser resolves the authenticated user's ID and login name.
func (hc *HelixClient) GetUser(ctx context.Context) (id, login string, err error) {
	resp, err := hc.do(ctx, http.MethodGet, "/users", nil, nil)
	if err != nil {
		return "", "", err
	}
	defer closeBody(resp)
	var body struct {
		Data []struct {
			ID    string `json:"id"`
			Login string `json:"login"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", err
	}
	if len(body.Data) == 0 {
		return "", "", errors.New("helix returned no user for token")
	}
	return body.Data[0].ID, body.Data[0].Login, nil
}

// CreateRewards creates every reward in the catalogue on the channel.
// Rewards that already exist are skipped silently.
func (hc *HelixClient) CreateRewards(ctx context.Context, channelID string, rewards []RewardPayload) error {
	q := url.Values{}
	q.Set("broadcaster_id", channelID)
	var errs []error
	for _, r := range rewards {
		resp, err := hc.do(ctx, http.MethodPost, "/channel_points/custom_rewards", q, r)
		if err != nil {
			return err
		}
		var body struct {
			Data []struct {
				ID string `json:"id"`
			} `json:"data"`
			Message string `json:"message"`
		}
		decErr := json.NewDecoder(resp.Body).Decode(&body)
		closeBody(resp)
		if decErr != nil {
			return decErr
		}
		switch {
		case len(body.Data) > 0:
		case body.Message == duplicateRewardError:
		default:
			errs = append(errs, fmt.Errorf("create reward %q: %s: %s", r.Title, resp.Status, body.Message))
		}
	}
	return errors.Join(errs...)
}

// DeleteRewards removes the channel's bot-manageable rewards whose titles
// appear in the catalogue.
func (hc *HelixClient) DeleteRewards(ctx context.Context, channelID string, rewards []RewardPayload) error {
	q := url.Values{}
	q.Set("broadcaster_id", channelID)
	q.Set("only_manageable_rewards", "true")
	resp, err := hc.do(ctx, http.MethodGet, "/channel_points/custom_rewards", q, nil)
	if err != nil {
		return err
	}
	var body struct {
		Data []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"data"`
	}
	decErr := json.NewDecoder(resp.Body).Decode(&body)
	closeBody(resp)
	if decErr != nil {
		return decErr
	}

	titles := make(map[string]bool, len(rewards))
	for _, r := range rewards {
		titles[r.Title] = true
	}
	var errs []error
	for _, d := range body.Data {
		if !titles[d.Title] {
			continue
		}
		dq := url.Values{}
		dq.Set("broadcaster_id", channelID)
		dq.Set("id", d.ID)
		resp, err := hc.do(ctx, http.MethodDelete, "/channel_points/custom_rewards", dq, nil)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
			errs = append(errs, fmt.Errorf("delete reward %q: %s", d.Title, resp.Status))
		}
		closeBody(resp)
	}
	return errors.Join(errs...)
}

// IsSubscriber reports whether the user subscribes to the channel.
func (hc *HelixClient) IsSubscriber(ctx context.Context, channelID, userID string) (bool, error) {
	q := url.Values{}
	q.Set("broadcaster_id", channelID)
	q.Set("user_id", userID)
	resp, err := hc.do(ctx, http.MethodGet, "/subscriptions", q, nil)
	if err != nil {
		return false, err
	}
	defer closeBody(resp)
	var body struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return len(body.Data) > 0, nil
}

// UpdateRedemptionStatus acknowledges a redemption, marking it FULFILLED or
// CANCELED. Cancelling refunds the viewer's points.
func (hc *HelixClient) UpdateRedemptionStatus(ctx context.Context, redemptionID, channelID, rewardID string, status pubsub.RedemptionStatus) error {
	q := url.Values{}
	q.Set("id", redemptionID)
	q.Set("broadcaster_id", channelID)
	q.Set("reward_id", rewardID)
	body := map[string]string{"status": string(status)}
	resp, err := hc.do(ctx, http.MethodPatch, "/channel_points/custom_rewards/redemptions", q, body)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("redemption status update failed: %s: %s", resp.Status, string(b))
	}
	return nil
}
