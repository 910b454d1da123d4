// Package twitchapi contains the OAuth flow and the minimal Helix client the
// bot needs: user resolution, managing its custom channel-point rewards,
// subscriber checks and redemption status updates.
package twitchapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Scopes is everything the bot needs: reading and acknowledging redemptions
// plus reading and sending chat.
var Scopes = []string{
	"channel:read:redemptions",
	"channel:manage:redemptions",
	"chat:read",
	"chat:edit",
}

const defaultValidateURL = "https://id.twitch.tv/oauth2/validate"

// OAuthClient drives the authorization-code grant against Twitch's identity
// service. The token endpoint is overridable for tests.
type OAuthClient struct {
	cfg *oauth2.Config

	// ValidateURL is the token introspection endpoint; empty means the
	// real Twitch one.
	ValidateURL string
	// HTTPClient is used for validation requests; nil means
	// http.DefaultClient. Token requests pick it up via the context.
	HTTPClient *http.Client
}

func NewOAuthClient(clientID, clientSecret, redirectURI string) *OAuthClient {
	return &OAuthClient{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       Scopes,
			Endpoint:     endpoints.Twitch,
		},
	}
}

// SetEndpoint replaces the identity-service endpoint. Tests point it at an
// httptest server.
func (c *OAuthClient) SetEndpoint(authURL, tokenURL string) {
	c.cfg.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
}

// AuthorizeURL builds the "log in with Twitch" page URL. The state value is
// echoed back on the redirect and must be checked by the callback handler.
func (c *OAuthClient) AuthorizeURL(state string) string {
	return c.cfg.AuthCodeURL(state)
}

// Exchange trades the authorization code from the callback for a token pair.
func (c *OAuthClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := c.cfg.Exchange(c.requestCtx(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("twitch auth code exchange failed: %w", err)
	}
	return tok, nil
}

// Refresh obtains a fresh token pair from a stored refresh token. Twitch
// rotates refresh tokens, so the caller must persist the returned one.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := c.cfg.TokenSource(c.requestCtx(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("twitch token refresh failed: %w", err)
	}
	return tok, nil
}

// Validate reports whether an access token is still accepted by Twitch.
// A network failure is an error, not a verdict.
func (c *OAuthClient) Validate(ctx context.Context, accessToken string) (bool, error) {
	u := c.ValidateURL
	if u == "" {
		u = defaultValidateURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "OAuth "+accessToken)
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return false, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	return resp.StatusCode == http.StatusOK, nil
}

func (c *OAuthClient) requestCtx(ctx context.Context) context.Context {
	if c.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
}
