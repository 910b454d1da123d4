package oauth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mirrelia/pointsbot/db"
	"github.com/mirrelia/pointsbot/testutil"
)

func TestStartRefresherOutsideWindow(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	futureExpiry := time.Now().Add(1 * time.Hour)
	if err := db.UpsertOAuthToken(ctx, database, "twitch", "access123", "refresh456", futureExpiry, "scope1"); err != nil {
		t.Fatalf("failed to insert test token: %v", err)
	}

	var refreshCalled atomic.Bool
	refreshFunc := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		refreshCalled.Store(true)
		return "new-access", "new-refresh", time.Now().Add(2 * time.Hour), "scope1", nil
	}

	runCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	StartRefresher(runCtx, database, "twitch", 50*time.Millisecond, 30*time.Minute, refreshFunc, nil)
	<-runCtx.Done()

	if refreshCalled.Load() {
		t.Error("refresh should not have been called for token that expires in 1 hour with 30 min window")
	}
}

func TestStartRefresherWithinWindow(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	soonExpiry := time.Now().Add(5 * time.Minute)
	if err := db.UpsertOAuthToken(ctx, database, "twitch", "old-access", "old-refresh", soonExpiry, "scope1"); err != nil {
		t.Fatalf("failed to insert test token: %v", err)
	}

	var refreshCalled atomic.Bool
	newExpiry := time.Now().Add(2 * time.Hour)
	cache := &TokenCache{}
	refreshFunc := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		if refreshToken != "old-refresh" {
			t.Errorf("refresh called with wrong token: got %s, want old-refresh", refreshToken)
		}
		refreshCalled.Store(true)
		return "new-access", "new-refresh", newExpiry, "scope2", nil
	}

	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	StartRefresher(runCtx, database, "twitch", 100*time.Millisecond, 15*time.Minute, refreshFunc, cache)

	deadline := time.Now().Add(2 * time.Second)
	for !refreshCalled.Load() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if !refreshCalled.Load() {
		t.Fatal("refresh should have been called for token expiring within window")
	}
	// Persist happens right after the refresh call.
	time.Sleep(200 * time.Millisecond)
	cancel()

	access, refresh, _, scope, err := db.GetOAuthToken(ctx, database, "twitch")
	if err != nil {
		t.Fatalf("failed to query updated token: %v", err)
	}
	if access != "new-access" || refresh != "new-refresh" || scope != "scope2" {
		t.Errorf("token not updated: got (%q, %q, %q)", access, refresh, scope)
	}
	if got, _ := cache.Get(ctx); got != "new-access" {
		t.Errorf("cache not updated: got %q", got)
	}
}

func TestStartRefresherRefreshError(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	soonExpiry := time.Now().Add(5 * time.Minute)
	if err := db.UpsertOAuthToken(ctx, database, "twitch", "old-access", "old-refresh", soonExpiry, "scope1"); err != nil {
		t.Fatalf("failed to insert test token: %v", err)
	}

	refreshFunc := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		return "", "", time.Time{}, "", errors.New("refresh failed")
	}

	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	StartRefresher(runCtx, database, "twitch", 50*time.Millisecond, 15*time.Minute, refreshFunc, nil)
	<-runCtx.Done()

	access, _, _, _, err := db.GetOAuthToken(ctx, database, "twitch")
	if err != nil {
		t.Fatalf("failed to query token: %v", err)
	}
	if access != "old-access" {
		t.Errorf("token should not have been updated on error, got %s", access)
	}
}

func TestStartRefresherNoRefreshToken(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	soonExpiry := time.Now().Add(5 * time.Minute)
	if err := db.UpsertOAuthToken(ctx, database, "twitch", "access123", "", soonExpiry, "scope1"); err != nil {
		t.Fatalf("failed to insert test token: %v", err)
	}

	var refreshCalled atomic.Bool
	refreshFunc := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		refreshCalled.Store(true)
		return "new-access", "new-refresh", time.Now().Add(2 * time.Hour), "scope1", nil
	}

	runCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	StartRefresher(runCtx, database, "twitch", 50*time.Millisecond, 15*time.Minute, refreshFunc, nil)
	<-runCtx.Done()

	if refreshCalled.Load() {
		t.Error("refresh should not be called when refresh_token is empty")
	}
}

func TestStartRefresherCancellation(t *testing.T) {
	database := testutil.SetupTestDB(t)

	refreshFunc := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		return "access", "refresh", time.Now().Add(1 * time.Hour), "scope", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	StartRefresher(ctx, database, "twitch", 1*time.Second, 15*time.Minute, refreshFunc, nil)
	cancel()
	time.Sleep(50 * time.Millisecond)
}

func TestTokenCache(t *testing.T) {
	cache := &TokenCache{}
	if _, err := cache.Get(context.Background()); err == nil {
		t.Error("empty cache should return an error")
	}
	cache.Set("tok-1")
	got, err := cache.Get(context.Background())
	if err != nil || got != "tok-1" {
		t.Errorf("Get = (%q, %v), want (tok-1, nil)", got, err)
	}
}
