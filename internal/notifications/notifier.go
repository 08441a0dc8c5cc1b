// Package notifications provides real-time room event delivery over
// WebSockets with Redis fanout across processes.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"

	"impostor/internal/cache"
	"impostor/internal/models"

	"github.com/redis/go-redis/v9"
)

// Notifier provides helpers to publish room events into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// roomEventEnvelope is the wire format published to room:events:<code>.
type roomEventEnvelope struct {
	Type string          `json:"type"`
	Code string          `json:"code"`
	Room models.RoomView `json:"room"`
}

// PublishRoomEvent publishes a full-room snapshot to the room's event
// channel. Snapshots are idempotent at the receivers, so redelivery is
// harmless. Implements service.RoomEventPublisher.
func (n *Notifier) PublishRoomEvent(ctx context.Context, code, event string, view models.RoomView) {
	if n.rdb == nil {
		return
	}
	payload, err := json.Marshal(roomEventEnvelope{Type: event, Code: code, Room: view})
	if err != nil {
		log.Printf("Notifier: failed to marshal room event %s for %s: %v", event, code, err)
		return
	}
	if err := n.rdb.Publish(ctx, cache.RoomEventsChannel(code), payload).Err(); err != nil {
		log.Printf("Notifier: failed to publish room event %s for %s: %v", event, code, err)
	}
}

// PublishPresence publishes a player's voice/presence state to the room's
// presence channel.
func (n *Notifier) PublishPresence(ctx context.Context, code, uid string, speaking, muted bool) error {
	if n.rdb == nil {
		return nil
	}
	payload := map[string]interface{}{
		"uid":      uid,
		"speaking": speaking,
		"muted":    muted,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return n.rdb.Publish(ctx, cache.RoomPresenceChannel(code), string(payloadJSON)).Err()
}

// StartRoomSubscriber subscribes to room event and presence patterns and
// calls onMessage for each incoming message.
func (n *Notifier) StartRoomSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "room:events:*", "room:presence:*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in RoomSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
