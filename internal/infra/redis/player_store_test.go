package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"mathsprint-service/internal/app"
	"mathsprint-service/internal/domain"
)

func newTestPlayer(userID string) func() *app.Player {
	return func() *app.Player {
		return &app.Player{UserID: userID, Engine: app.NewEngine(app.EngineConfig{UserID: userID}), Views: app.NewBroadcaster()}
	}
}

func TestPlayerStoreClaimsAndReleases(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	ctx := context.Background()

	store := NewPlayerStore(newClient(mr), time.Minute)
	if _, err := store.GetOrCreate(ctx, "u1", newTestPlayer("u1")); err != nil {
		t.Fatalf("get or create: %v", err)
	}
	owner, err := mr.Get("mathsprint:player:u1")
	if err != nil || owner != store.instance {
		t.Fatalf("expected claim by this instance, got %q %v", owner, err)
	}

	store.DeleteIfIdle("u1")
	if mr.Exists("mathsprint:player:u1") {
		t.Fatalf("expected claim to be released")
	}
}

func TestPlayerStoreRejectsUserOnAnotherInstance(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	ctx := context.Background()

	first := NewPlayerStore(newClient(mr), time.Minute)
	second := NewPlayerStore(newClient(mr), time.Minute)

	if _, err := first.GetOrCreate(ctx, "u1", newTestPlayer("u1")); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := second.GetOrCreate(ctx, "u1", newTestPlayer("u1")); !errors.Is(err, domain.ErrPlayerElsewhere) {
		t.Fatalf("expected player elsewhere, got %v", err)
	}

	// releasing on the wrong instance must not drop the owner's claim
	second.DeleteIfIdle("u1")
	if !mr.Exists("mathsprint:player:u1") {
		t.Fatalf("expected the owner's claim to survive")
	}

	first.DeleteIfIdle("u1")
	if _, err := second.GetOrCreate(ctx, "u1", newTestPlayer("u1")); err != nil {
		t.Fatalf("expected claim after release, got %v", err)
	}
}

func TestPlayerStoreKeepAliveRefreshesClaims(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewPlayerStore(newClient(mr), time.Minute)
	if _, err := store.GetOrCreate(context.Background(), "u1", newTestPlayer("u1")); err != nil {
		t.Fatalf("get or create: %v", err)
	}

	// most of the ttl passes while the user stays connected
	mr.FastForward(50 * time.Second)
	store.refresh(context.Background())
	mr.FastForward(50 * time.Second)
	if !mr.Exists("mathsprint:player:u1") {
		t.Fatalf("expected a refreshed claim to outlive the original ttl")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		store.KeepAlive(ctx, 10*time.Millisecond)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for mr.TTL("mathsprint:player:u1") != time.Minute {
		if time.Now().After(deadline) {
			t.Fatalf("keepalive did not refresh the claim, ttl %v", mr.TTL("mathsprint:player:u1"))
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}
