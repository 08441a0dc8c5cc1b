package server

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"

	"impostor/internal/models"
	"impostor/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// roomMember reports whether uid is on the roster of the room. Room codes are
// shareable, so the socket is granted only to players who joined over HTTP
// first.
func (s *Server) roomMember(ctx context.Context, code, uid string) bool {
	room, err := s.roomService.GetRoom(ctx, code)
	if err != nil {
		return false
	}
	return models.FindPlayer(room.Players(), uid) >= 0
}

// WebSocketRoomHandler handles real-time room coordination. Clients connect
// with a single-use ticket and a room code, then exchange RoomAction frames.
func (s *Server) WebSocketRoomHandler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		userIDVal := c.Locals("userID")
		if userIDVal == nil {
			log.Println("RoomWS: No userID in locals")
			_ = c.Close()
			return
		}
		userID := userIDVal.(uint)
		uid := strconv.FormatUint(uint64(userID), 10)

		code := strings.ToUpper(strings.TrimSpace(c.Query("code")))
		if code == "" {
			log.Println("RoomWS: No room code in query")
			_ = c.Close()
			return
		}

		ctx := context.Background()

		// The handshake is done with the ticket; drop it from the cache.
		s.consumeWSTicket(ctx, c.Locals("wsTicket"))

		if !s.roomMember(ctx, code, uid) {
			log.Printf("RoomWS: Player %s is not a member of room %s", uid, code)
			_ = c.Close()
			return
		}

		s.roomHub.Register(ctx, uid, code, c)
		defer func() {
			s.roomHub.Unregister(ctx, uid, code, c)
			_ = c.Close()
		}()

		// Read loop
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				log.Printf("RoomWS: Error reading message (player %s, room %s): %v", uid, code, err)
				break
			}

			var action notifications.RoomAction
			if err := json.Unmarshal(msg, &action); err != nil {
				log.Printf("RoomWS: Failed to unmarshal action: %v", err)
				continue
			}

			action.UID = uid
			action.Code = code

			s.roomHub.HandleAction(ctx, uid, action)
		}
	})
}
