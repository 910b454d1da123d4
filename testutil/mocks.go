package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockTwitchServer creates a test server that mocks Twitch Helix API responses
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockTwitchServer creates a new mock Twitch API server
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockUserResponse adds a handler for the /users endpoint
func (m *MockTwitchServer) MockUserResponse(userID, login string) {
	m.Handlers["/users"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"data": []map[string]string{
				{"id": userID, "login": login},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockSubscriptionsResponse adds a handler for the /subscriptions endpoint;
// subscriberIDs lists the user_id values that count as subscribed.
func (m *MockTwitchServer) MockSubscriptionsResponse(subscriberIDs ...string) {
	subs := make(map[string]bool, len(subscriberIDs))
	for _, id := range subscriberIDs {
		subs[id] = true
	}
	m.Handlers["/subscriptions"] = func(w http.ResponseWriter, r *http.Request) {
		data := []map[string]string{}
		if subs[r.URL.Query().Get("user_id")] {
			data = append(data, map[string]string{"user_id": r.URL.Query().Get("user_id")})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data}) //nolint:errcheck // test mock response
	}
}

// MockRedemptionUpdateOK adds a handler for the redemption-status endpoint
// that records each PATCH into calls.
func (m *MockTwitchServer) MockRedemptionUpdateOK(calls *[]map[string]string) {
	m.Handlers["/channel_points/custom_rewards/redemptions"] = func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status string `json:"status"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck // test mock request
		*calls = append(*calls, map[string]string{
			"id":             r.URL.Query().Get("id"),
			"broadcaster_id": r.URL.Query().Get("broadcaster_id"),
			"reward_id":      r.URL.Query().Get("reward_id"),
			"status":         body.Status,
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": []string{}}) //nolint:errcheck // test mock response
	}
}

// MockOAuthTokenResponse adds a handler for OAuth token endpoint
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken, refreshToken string, expiresIn int) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"expires_in":    expiresIn,
			"token_type":    "bearer",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}
