package notifications

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"impostor/internal/cache"
	"impostor/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	// Notifier with nil Redis should be a silent noop (fail-open).
	n := NewNotifier(nil)
	n.PublishRoomEvent(context.Background(), "AB12CD", "room_created", models.RoomView{})
	assert.NoError(t, n.PublishPresence(context.Background(), "AB12CD", "u1", true, false))
	assert.NoError(t, n.StartRoomSubscriber(context.Background(), func(string, string) {}))
}

func TestRoomChannels(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "room:events:AB12CD", cache.RoomEventsChannel("AB12CD"))
	assert.Equal(t, "room:presence:AB12CD", cache.RoomPresenceChannel("AB12CD"))
}

func TestNotifier_RoomEventRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payloads := make(chan string, 4)
	channels := make(chan string, 4)
	require.NoError(t, n.StartRoomSubscriber(ctx, func(channel, payload string) {
		channels <- channel
		payloads <- payload
	}))

	view := models.RoomView{
		Code:   "AB12CD",
		HostID: "u1",
		Status: models.RoomWaiting,
		Players: []models.Player{
			{UID: "u1", Name: "Ana"},
		},
	}
	n.PublishRoomEvent(context.Background(), "AB12CD", "player_joined", view)

	select {
	case payload := <-payloads:
		var env roomEventEnvelope
		require.NoError(t, json.Unmarshal([]byte(payload), &env))
		assert.Equal(t, "player_joined", env.Type)
		assert.Equal(t, "AB12CD", env.Code)
		assert.Equal(t, "u1", env.Room.HostID)
		require.Len(t, env.Room.Players, 1)
		assert.Equal(t, "Ana", env.Room.Players[0].Name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for room event")
	}
	assert.Equal(t, "room:events:AB12CD", <-channels)
}

func TestNotifier_StartRoomSubscriber_StopsOnCancel(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received int32
	payloads := make(chan string, 2)
	require.NoError(t, n.StartRoomSubscriber(ctx, func(_ string, payload string) {
		atomic.AddInt32(&received, 1)
		payloads <- payload
	}))

	require.NoError(t, n.PublishPresence(context.Background(), "AB12CD", "u1", true, false))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) >= 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)

	// Drain the pre-cancel message to avoid false positives.
	select {
	case <-payloads:
	default:
	}

	require.NoError(t, n.PublishPresence(context.Background(), "AB12CD", "u1", false, true))
	assert.Never(t, func() bool {
		select {
		case <-payloads:
			return true
		default:
			return false
		}
	}, 200*time.Millisecond, 10*time.Millisecond)
}
