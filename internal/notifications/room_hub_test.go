package notifications

import (
	"context"
	"testing"
	"time"

	"impostor/internal/database"
	"impostor/internal/models"
	"impostor/internal/repository"
	"impostor/internal/service"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHub(t *testing.T) (*RoomHub, *service.RoomService) {
	t.Helper()

	db, err := database.ConnectTest()
	require.NoError(t, err)

	rooms := repository.NewRoomRepository(db)
	themes := service.NewThemeService(repository.NewThemeRepository(db))
	svc := service.NewRoomService(rooms, themes, nil, 2*time.Hour)

	return NewRoomHub(svc, nil), svc
}

func TestRoomHub_RegisterUnregister(t *testing.T) {
	hub, _ := setupHub(t)
	conn := &websocket.Conn{}

	// No such room exists, so presence updates are skipped and nothing
	// gets written to the bare connection.
	hub.Register(context.Background(), "u1", "AB12CD", conn)
	hub.mu.RLock()
	assert.Equal(t, conn, hub.rooms["AB12CD"]["u1"])
	hub.mu.RUnlock()

	hub.Unregister(context.Background(), "u1", "AB12CD", conn)
	hub.mu.RLock()
	assert.Empty(t, hub.rooms["AB12CD"])
	hub.mu.RUnlock()
}

func TestRoomHub_UnregisterIgnoresStaleConn(t *testing.T) {
	hub, _ := setupHub(t)
	current := &websocket.Conn{}
	stale := &websocket.Conn{}

	hub.Register(context.Background(), "u1", "AB12CD", current)
	hub.Unregister(context.Background(), "u1", "AB12CD", stale)

	hub.mu.RLock()
	assert.Equal(t, current, hub.rooms["AB12CD"]["u1"])
	hub.mu.RUnlock()
}

func TestRoomHub_VoiceOverlay(t *testing.T) {
	hub, _ := setupHub(t)

	hub.handleVoiceState(context.Background(), "u1", RoomAction{
		Type:    "voice_state",
		Code:    "AB12CD",
		Payload: map[string]interface{}{"speaking": true, "muted": false},
	})
	hub.handleVoiceState(context.Background(), "u2", RoomAction{
		Type:    "voice_state",
		Code:    "AB12CD",
		Payload: map[string]interface{}{"speaking": false, "muted": true},
	})

	hub.mu.RLock()
	assert.Equal(t, VoiceState{Speaking: true}, hub.voice["AB12CD"]["u1"])
	assert.Equal(t, VoiceState{Muted: true}, hub.voice["AB12CD"]["u2"])
	hub.mu.RUnlock()

	// Dropping the socket drops the overlay entry with it.
	conn := &websocket.Conn{}
	hub.Register(context.Background(), "u1", "AB12CD", conn)
	hub.Unregister(context.Background(), "u1", "AB12CD", conn)

	hub.mu.RLock()
	_, ok := hub.voice["AB12CD"]["u1"]
	assert.False(t, ok)
	assert.Contains(t, hub.voice["AB12CD"], "u2")
	hub.mu.RUnlock()
}

func TestRoundSecretFor_SecretWord(t *testing.T) {
	room := &models.Room{Code: "AB12CD", Status: models.RoomPlaying, ImpostorID: "u2"}
	room.SetRound(models.RoundData{
		Mode:          models.ModeSecretWord,
		SecretWord:    &models.SecretWordRound{Category: "Animais", Word: "capivara"},
		SpeakingOrder: []string{"u1", "u2"},
	})

	secret := roundSecretFor(room, "u1")
	require.NotNil(t, secret)
	assert.Equal(t, "capivara", secret["word"])
	assert.Equal(t, "Animais", secret["category"])
	_, told := secret["impostor"]
	assert.False(t, told)

	impostor := roundSecretFor(room, "u2")
	require.NotNil(t, impostor)
	assert.Equal(t, true, impostor["impostor"])
	assert.Equal(t, "Animais", impostor["category"])
	_, leaked := impostor["word"]
	assert.False(t, leaked)
}

func TestRoundSecretFor_WordsKeepsImpostorInTheDark(t *testing.T) {
	room := &models.Room{Code: "AB12CD", Status: models.RoomPlaying, ImpostorID: "u2"}
	room.SetRound(models.RoundData{
		Mode: models.ModeWords,
		Words: &models.WordsRound{
			Words:     map[string]string{"u1": "capivara", "u2": "tucano"},
			DecoyWord: "tucano",
		},
		SpeakingOrder: []string{"u1", "u2"},
	})

	impostor := roundSecretFor(room, "u2")
	require.NotNil(t, impostor)
	assert.Equal(t, "tucano", impostor["word"])
	_, told := impostor["impostor"]
	assert.False(t, told)
}

func TestRoundSecretFor_Questions(t *testing.T) {
	room := &models.Room{Code: "AB12CD", Status: models.RoomPlaying, ImpostorID: "u2"}
	room.SetRound(models.RoundData{
		Mode: models.ModeDifferentQuestions,
		Questions: &models.QuestionsRound{
			Question:         "qual seu animal favorito?",
			ImpostorQuestion: "qual animal te assusta?",
		},
		SpeakingOrder: []string{"u1", "u2"},
	})

	assert.Equal(t, "qual seu animal favorito?", roundSecretFor(room, "u1")["question"])
	assert.Equal(t, "qual animal te assusta?", roundSecretFor(room, "u2")["question"])
}

func TestRoundSecretFor_SkipsWaitingAndIdleRooms(t *testing.T) {
	waiting := &models.Room{Code: "AB12CD", Status: models.RoomWaiting}
	assert.Nil(t, roundSecretFor(waiting, "u1"))

	playing := &models.Room{Code: "AB12CD", Status: models.RoomPlaying, ImpostorID: "u1"}
	playing.SetRound(models.RoundData{
		Mode:          models.ModeSecretWord,
		SecretWord:    &models.SecretWordRound{Category: "Animais", Word: "capivara"},
		SpeakingOrder: []string{"u1", "u2"},
	})
	// u3 joined mid-round and sits this one out.
	assert.Nil(t, roundSecretFor(playing, "u3"))
}

func TestRoomHub_BroadcastToMissingRoomIsNoop(t *testing.T) {
	hub, _ := setupHub(t)
	hub.BroadcastToRoom("ZZZZZZ", RoomAction{Type: "room_state", Code: "ZZZZZZ"})
	hub.SendToPlayer("ZZZZZZ", "u1", RoomAction{Type: "round_secret"})
	hub.sendError("u1", "ZZZZZZ", "nope")
}

func TestRoomHub_Shutdown(t *testing.T) {
	hub, _ := setupHub(t)
	require.NoError(t, hub.Shutdown(context.Background()))

	hub.mu.RLock()
	assert.Empty(t, hub.rooms)
	assert.Empty(t, hub.voice)
	hub.mu.RUnlock()
}
