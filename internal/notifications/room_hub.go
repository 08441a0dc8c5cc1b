package notifications

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"impostor/internal/middleware"
	"impostor/internal/models"
	"impostor/internal/observability"
	"impostor/internal/service"

	"github.com/gofiber/websocket/v2"
)

// RoomAction represents a message sent via WebSocket for party rooms
type RoomAction struct {
	Type    string      `json:"type"` // "join", "start_game", "submit_answer", "cast_vote", "chat", "room_state", "error"
	Code    string      `json:"code,omitempty"`
	UID     string      `json:"uid,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// VoiceState is the ephemeral voice overlay for one player. It lives only in
// hub memory and is dropped when the player's socket goes away.
type VoiceState struct {
	Speaking bool `json:"speaking"`
	Muted    bool `json:"muted"`
}

// RoomHub manages real-time room interaction
type RoomHub struct {
	mu sync.RWMutex

	// Map: roomCode -> playerUID -> connection
	rooms map[string]map[string]*websocket.Conn

	// Map: roomCode -> playerUID -> voice overlay
	voice map[string]map[string]VoiceState

	svc      *service.RoomService
	notifier *Notifier
	wsLog    *observability.WSLogger
}

// Name returns a human-readable identifier for this hub.
func (h *RoomHub) Name() string { return "room hub" }

// NewRoomHub creates a new RoomHub instance
func NewRoomHub(svc *service.RoomService, notifier *Notifier) *RoomHub {
	return &RoomHub{
		rooms:    make(map[string]map[string]*websocket.Conn),
		voice:    make(map[string]map[string]VoiceState),
		svc:      svc,
		notifier: notifier,
		wsLog:    observability.NewWSLogger("room hub"),
	}
}

// Register registers a player's connection in a room and marks the player
// connected in the roster.
func (h *RoomHub) Register(ctx context.Context, uid, code string, conn *websocket.Conn) {
	h.mu.Lock()
	if h.rooms[code] == nil {
		h.rooms[code] = make(map[string]*websocket.Conn)
	}
	h.rooms[code][uid] = conn
	h.mu.Unlock()

	middleware.ActiveWebSockets.Inc()
	middleware.RoomConnections.WithLabelValues(code).Inc()
	h.wsLog.LogConnect(ctx, uid, code)

	if room, err := h.svc.SetConnected(ctx, code, uid, true); err == nil {
		h.broadcastSnapshot(room, "presence_changed")
		h.deliverRoundSecret(room, uid)
	}
}

// Unregister removes a player's connection, drops their voice overlay and
// marks the player disconnected in the roster.
func (h *RoomHub) Unregister(ctx context.Context, uid, code string, conn *websocket.Conn) {
	h.mu.Lock()
	removed := false
	if room, ok := h.rooms[code]; ok {
		if c, ok := room[uid]; ok && c == conn {
			delete(room, uid)
			removed = true
			if len(room) == 0 {
				delete(h.rooms, code)
			}
		}
	}
	if overlay, ok := h.voice[code]; ok {
		delete(overlay, uid)
		if len(overlay) == 0 {
			delete(h.voice, code)
		}
	}
	h.mu.Unlock()

	if !removed {
		return
	}

	middleware.ActiveWebSockets.Dec()
	middleware.RoomConnections.WithLabelValues(code).Dec()
	h.wsLog.LogDisconnect(ctx, uid, code, "socket closed")

	if room, err := h.svc.SetConnected(ctx, code, uid, false); err == nil {
		h.broadcastSnapshot(room, "presence_changed")
	}
}

// BroadcastToRoom sends a message to all players connected to a room in this
// process.
func (h *RoomHub) BroadcastToRoom(code string, action RoomAction) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	players, ok := h.rooms[code]
	if !ok {
		return
	}

	actionJSON, err := json.Marshal(action)
	if err != nil {
		log.Printf("RoomHub: Failed to marshal action: %v", err)
		return
	}

	for _, conn := range players {
		if err := conn.WriteMessage(websocket.TextMessage, actionJSON); err != nil {
			log.Printf("RoomHub: WebSocket write error in room %s: %v", code, err)
		}
	}
}

// SendToPlayer sends a message to a single player's connection, if it is
// registered in this process.
func (h *RoomHub) SendToPlayer(code, uid string, action RoomAction) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	players, ok := h.rooms[code]
	if !ok {
		return
	}
	conn, ok := players[uid]
	if !ok {
		return
	}

	actionJSON, err := json.Marshal(action)
	if err != nil {
		log.Printf("RoomHub: Failed to marshal action: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, actionJSON); err != nil {
		log.Printf("RoomHub: WebSocket write error in room %s: %v", code, err)
	}
}

// HandleAction processes an incoming room action from a player's socket.
func (h *RoomHub) HandleAction(ctx context.Context, uid string, action RoomAction) {
	h.wsLog.LogMessage(ctx, uid, action.Code, action.Type)

	switch action.Type {
	case "start_game":
		h.handleStart(ctx, uid, action)
	case "submit_answer":
		h.handleAnswer(ctx, uid, action)
	case "cast_vote":
		h.handleVote(ctx, uid, action)
	case "reveal_answers":
		h.handleReveal(ctx, uid, action, h.svc.RevealAnswers)
	case "reveal_votes":
		h.handleReveal(ctx, uid, action, h.svc.RevealVotes)
	case "end_round":
		h.handleEndRound(ctx, uid, action)
	case "chat":
		h.handleChat(uid, action)
	case "voice_state":
		h.handleVoiceState(ctx, uid, action)
	default:
		log.Printf("RoomHub: Unknown action type %s from player %s", action.Type, uid)
	}
}

type startPayload struct {
	Mode      string `json:"mode"`
	ThemeCode string `json:"theme_code"`
}

func (h *RoomHub) handleStart(ctx context.Context, uid string, action RoomAction) {
	var p startPayload
	if err := h.decodePayload(action.Payload, &p); err != nil {
		h.sendError(uid, action.Code, "Invalid start payload")
		return
	}

	room, err := h.svc.StartGame(ctx, action.Code, uid, models.GameMode(p.Mode), p.ThemeCode)
	if err != nil {
		h.wsLog.LogError(ctx, uid, action.Code, err, action.Type)
		h.sendError(uid, action.Code, err.Error())
		return
	}

	// Always broadcast directly to currently connected sockets in this
	// process. Redis fanout reaches the rest through the service publisher.
	h.broadcastSnapshot(room, "game_started")
	h.deliverRoundSecrets(room)
}

type answerPayload struct {
	Text string `json:"text"`
}

func (h *RoomHub) handleAnswer(ctx context.Context, uid string, action RoomAction) {
	var p answerPayload
	if err := h.decodePayload(action.Payload, &p); err != nil {
		h.sendError(uid, action.Code, "Invalid answer payload")
		return
	}

	room, err := h.svc.SubmitAnswer(ctx, action.Code, uid, p.Text)
	if err != nil {
		h.wsLog.LogError(ctx, uid, action.Code, err, action.Type)
		h.sendError(uid, action.Code, err.Error())
		return
	}
	h.broadcastSnapshot(room, "answer_submitted")
}

type votePayload struct {
	TargetUID string `json:"target_uid"`
}

func (h *RoomHub) handleVote(ctx context.Context, uid string, action RoomAction) {
	var p votePayload
	if err := h.decodePayload(action.Payload, &p); err != nil {
		h.sendError(uid, action.Code, "Invalid vote payload")
		return
	}

	room, err := h.svc.CastVote(ctx, action.Code, uid, p.TargetUID)
	if err != nil {
		h.wsLog.LogError(ctx, uid, action.Code, err, action.Type)
		h.sendError(uid, action.Code, err.Error())
		return
	}
	h.broadcastSnapshot(room, "vote_cast")
}

func (h *RoomHub) handleReveal(
	ctx context.Context, uid string, action RoomAction,
	reveal func(context.Context, string, string) (*models.Room, error),
) {
	room, err := reveal(ctx, action.Code, uid)
	if err != nil {
		h.wsLog.LogError(ctx, uid, action.Code, err, action.Type)
		h.sendError(uid, action.Code, err.Error())
		return
	}
	h.broadcastSnapshot(room, "room_state")
}

func (h *RoomHub) handleEndRound(ctx context.Context, uid string, action RoomAction) {
	room, err := h.svc.EndRound(ctx, action.Code, uid)
	if err != nil {
		h.wsLog.LogError(ctx, uid, action.Code, err, action.Type)
		h.sendError(uid, action.Code, err.Error())
		return
	}
	h.broadcastSnapshot(room, "round_ended")
}

func (h *RoomHub) handleChat(uid string, action RoomAction) {
	// Chat is ephemeral, broadcast without touching the room record.
	action.UID = uid
	h.BroadcastToRoom(action.Code, action)
}

func (h *RoomHub) handleVoiceState(ctx context.Context, uid string, action RoomAction) {
	var state VoiceState
	if err := h.decodePayload(action.Payload, &state); err != nil {
		h.sendError(uid, action.Code, "Invalid voice payload")
		return
	}

	h.mu.Lock()
	if h.voice[action.Code] == nil {
		h.voice[action.Code] = make(map[string]VoiceState)
	}
	h.voice[action.Code][uid] = state
	overlay := make(map[string]VoiceState, len(h.voice[action.Code]))
	for k, v := range h.voice[action.Code] {
		overlay[k] = v
	}
	h.mu.Unlock()

	h.BroadcastToRoom(action.Code, RoomAction{
		Type:    "voice_state",
		Code:    action.Code,
		Payload: overlay,
	})

	if h.notifier != nil {
		if err := h.notifier.PublishPresence(ctx, action.Code, uid, state.Speaking, state.Muted); err != nil {
			log.Printf("RoomHub: failed to publish presence for %s in %s: %v", uid, action.Code, err)
		}
	}
}

// broadcastSnapshot sends the shared room view to everyone connected here.
// Snapshots carry the full visible state, so receiving one twice is harmless.
func (h *RoomHub) broadcastSnapshot(room *models.Room, eventType string) {
	h.BroadcastToRoom(room.Code, RoomAction{
		Type:    eventType,
		Code:    room.Code,
		Payload: room.View(),
	})
}

// deliverRoundSecrets sends each locally connected player their private round
// payload. The shared snapshot never contains these.
func (h *RoomHub) deliverRoundSecrets(room *models.Room) {
	for _, p := range room.Players() {
		h.deliverRoundSecret(room, p.UID)
	}
}

func (h *RoomHub) deliverRoundSecret(room *models.Room, uid string) {
	secret := roundSecretFor(room, uid)
	if secret == nil {
		return
	}
	h.SendToPlayer(room.Code, uid, RoomAction{
		Type:    "round_secret",
		Code:    room.Code,
		Payload: secret,
	})
}

// roundSecretFor builds the private payload one player sees for the active
// round, or nil when the room is not playing or the player sits this round
// out. The impostor learns their role in every mode except palavras and
// perguntasDiferentes, where the decoy is handed out unknowingly.
func roundSecretFor(room *models.Room, uid string) map[string]interface{} {
	if room.Status != models.RoomPlaying {
		return nil
	}
	round := room.Round()
	isImpostor := uid == room.ImpostorID

	inRound := false
	for _, id := range round.SpeakingOrder {
		if id == uid {
			inRound = true
			break
		}
	}
	if !inRound {
		return nil
	}

	switch round.Mode {
	case models.ModeSecretWord:
		if round.SecretWord == nil {
			return nil
		}
		if isImpostor {
			return map[string]interface{}{"impostor": true, "category": round.SecretWord.Category}
		}
		return map[string]interface{}{"category": round.SecretWord.Category, "word": round.SecretWord.Word}
	case models.ModeWords:
		if round.Words == nil {
			return nil
		}
		return map[string]interface{}{"word": round.Words.Words[uid]}
	case models.ModeTwoFactions:
		if round.Factions == nil {
			return nil
		}
		if isImpostor {
			return map[string]interface{}{"impostor": true}
		}
		faction := round.Factions.Assignments[uid]
		return map[string]interface{}{"word": round.Factions.Words[faction]}
	case models.ModeCategoryItem:
		if round.CategoryItem == nil {
			return nil
		}
		if isImpostor {
			return map[string]interface{}{"impostor": true, "category": round.CategoryItem.Category}
		}
		return map[string]interface{}{"category": round.CategoryItem.Category, "item": round.CategoryItem.Item}
	case models.ModeDifferentQuestions:
		if round.Questions == nil {
			return nil
		}
		if isImpostor {
			return map[string]interface{}{"question": round.Questions.ImpostorQuestion}
		}
		return map[string]interface{}{"question": round.Questions.Question}
	case models.ModeCommunityWord:
		if round.Community == nil {
			return nil
		}
		if isImpostor {
			return map[string]interface{}{"impostor": true}
		}
		return map[string]interface{}{"word": round.Community.ChosenWord}
	}
	return nil
}

func (h *RoomHub) decodePayload(payload interface{}, dst interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (h *RoomHub) sendError(uid, code, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	players, ok := h.rooms[code]
	if !ok {
		return
	}
	conn, ok := players[uid]
	if !ok {
		return
	}

	resp := RoomAction{
		Type: "error",
		Code: code,
		Payload: map[string]string{
			"message": message,
		},
	}
	respJSON, _ := json.Marshal(resp)
	_ = conn.WriteMessage(websocket.TextMessage, respJSON)
}

// StartWiring connects RoomHub to Redis for cross-process fanout.
func (h *RoomHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartRoomSubscriber(ctx, func(channel, payload string) {
		if code, ok := strings.CutPrefix(channel, "room:events:"); ok {
			var env roomEventEnvelope
			if err := json.Unmarshal([]byte(payload), &env); err != nil {
				return
			}
			h.BroadcastToRoom(code, RoomAction{
				Type:    env.Type,
				Code:    code,
				Payload: env.Room,
			})
			if env.Type == "game_started" {
				if room, err := h.svc.GetRoom(ctx, code); err == nil {
					h.deliverRoundSecrets(room)
				}
			}
			return
		}

		if code, ok := strings.CutPrefix(channel, "room:presence:"); ok {
			var presence map[string]interface{}
			if err := json.Unmarshal([]byte(payload), &presence); err != nil {
				return
			}
			h.BroadcastToRoom(code, RoomAction{
				Type:    "voice_state",
				Code:    code,
				Payload: presence,
			})
		}
	})
}

// Shutdown gracefully closes all websocket connections
func (h *RoomHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for code, players := range h.rooms {
		for uid, conn := range players {
			shutdownMsg := RoomAction{
				Type:    "server_shutdown",
				Code:    code,
				Payload: map[string]string{"message": "Server is shutting down"},
			}
			if msgJSON, err := json.Marshal(shutdownMsg); err == nil {
				if err := conn.WriteMessage(websocket.TextMessage, msgJSON); err != nil {
					log.Printf("failed to write shutdown message in room %s for player %s: %v", code, uid, err)
				}
			}
			if err := conn.Close(); err != nil {
				log.Printf("failed to close websocket in room %s for player %s: %v", code, uid, err)
			}
		}
	}

	h.rooms = make(map[string]map[string]*websocket.Conn)
	h.voice = make(map[string]map[string]VoiceState)

	return nil
}
