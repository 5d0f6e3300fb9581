package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRoomStoreSetsAndClearsLivenessKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRoomStore(client, time.Minute)

	_ = store.GetOrCreate("room-1")
	if !mr.Exists("room:live:room-1") {
		t.Fatalf("expected redis liveness key to be set")
	}

	store.Delete("room-1")
	if mr.Exists("room:live:room-1") {
		t.Fatalf("expected redis liveness key to be removed")
	}
	if _, ok := store.Get("room-1"); ok {
		t.Fatalf("expected room removed from local map")
	}
}
