package server

import (
	"net/http"
	"testing"

	"impostor/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedApprovedTheme inserts a ready-to-play theme directly through the repo.
func seedApprovedTheme(t *testing.T, s *Server, code string) {
	t.Helper()

	theme := &models.Theme{
		ID:            uuid.NewString(),
		Title:         "Animais",
		Author:        "equipe",
		IsPublic:      true,
		AccessCode:    code,
		PaymentStatus: models.PaymentApproved,
		Approved:      true,
	}
	theme.SetWords([]string{"capivara", "tucano", "arara", "tatu", "onça"})
	require.NoError(t, s.themeRepo.Create(t.Context(), theme))
}

func TestRoomLifecycleOverHTTP(t *testing.T) {
	s, app, _ := newTestServer(t)
	seedApprovedTheme(t, s, "TEMA01")

	host := signupUser(t, app, "ana")
	guest1 := signupUser(t, app, "bruno")
	guest2 := signupUser(t, app, "carla")

	// Host creates a room
	resp, body := doJSON(t, app, http.MethodPost, "/api/rooms", host, fiber.Map{"name": "Ana"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	code, _ := body["code"].(string)
	require.Len(t, code, 6)
	assert.Equal(t, "waiting", body["status"])

	// Guests join
	resp, _ = doJSON(t, app, http.MethodPost, "/api/rooms/"+code+"/join", guest1, fiber.Map{"name": "Bruno"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = doJSON(t, app, http.MethodPost, "/api/rooms/"+code+"/join", guest2, fiber.Map{"name": "Carla"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	players, _ := body["players"].([]interface{})
	assert.Len(t, players, 3)

	// Duplicate display name is rejected
	extra := signupUser(t, app, "duda")
	resp, _ = doJSON(t, app, http.MethodPost, "/api/rooms/"+code+"/join", extra, fiber.Map{"name": " ana "})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Non-host cannot start
	resp, _ = doJSON(t, app, http.MethodPost, "/api/rooms/"+code+"/start", guest1, fiber.Map{
		"mode": "palavraSecreta", "theme_code": "TEMA01",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Host starts the round
	resp, body = doJSON(t, app, http.MethodPost, "/api/rooms/"+code+"/start", host, fiber.Map{
		"mode": "palavraSecreta", "theme_code": "TEMA01",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "start body: %v", body)
	assert.Equal(t, "playing", body["status"])
	assert.Equal(t, "Animais", body["current_category"])
	order, _ := body["speaking_order"].([]interface{})
	assert.Len(t, order, 3)
	// Round secrets never leak through the shared view
	assert.NotContains(t, body, "current_word")
	assert.NotContains(t, body, "impostor_id")

	// Starting again conflicts
	resp, _ = doJSON(t, app, http.MethodPost, "/api/rooms/"+code+"/start", host, fiber.Map{
		"mode": "palavraSecreta", "theme_code": "TEMA01",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Answers and reveal
	resp, _ = doJSON(t, app, http.MethodPost, "/api/rooms/"+code+"/answers", guest1, fiber.Map{"text": "vive na água"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodPost, "/api/rooms/"+code+"/answers", guest1, fiber.Map{"text": "de novo"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodPost, "/api/rooms/"+code+"/answers/reveal", host, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["answers_revealed"])

	// Host ends the round, room goes back to waiting
	resp, body = doJSON(t, app, http.MethodPost, "/api/rooms/"+code+"/end", host, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "waiting", body["status"])
	assert.Nil(t, body["speaking_order"])
}

func TestJoinUnknownRoomReturns404(t *testing.T) {
	_, app, _ := newTestServer(t)
	token := signupUser(t, app, "ana")

	resp, _ := doJSON(t, app, http.MethodPost, "/api/rooms/ZZZZZZ/join", token, fiber.Map{"name": "Ana"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoomCodeValidation(t *testing.T) {
	_, app, _ := newTestServer(t)
	token := signupUser(t, app, "ana")

	resp, _ := doJSON(t, app, http.MethodPost, "/api/rooms/abc/join", token, fiber.Map{"name": "Ana"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartWithUnknownThemeCode(t *testing.T) {
	s, app, _ := newTestServer(t)
	seedApprovedTheme(t, s, "TEMA01")

	host := signupUser(t, app, "ana")
	g1 := signupUser(t, app, "bruno")
	g2 := signupUser(t, app, "carla")

	resp, body := doJSON(t, app, http.MethodPost, "/api/rooms", host, fiber.Map{"name": "Ana"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	code := body["code"].(string)
	doJSON(t, app, http.MethodPost, "/api/rooms/"+code+"/join", g1, fiber.Map{"name": "Bruno"})
	doJSON(t, app, http.MethodPost, "/api/rooms/"+code+"/join", g2, fiber.Map{"name": "Carla"})

	resp, _ = doJSON(t, app, http.MethodPost, "/api/rooms/"+code+"/start", host, fiber.Map{
		"mode": "palavraSecreta", "theme_code": "NOPE99",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLeaveRoomReassignsHost(t *testing.T) {
	_, app, _ := newTestServer(t)

	host := signupUser(t, app, "ana")
	guest := signupUser(t, app, "bruno")

	resp, body := doJSON(t, app, http.MethodPost, "/api/rooms", host, fiber.Map{"name": "Ana"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	code := body["code"].(string)
	hostID := body["host_id"].(string)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/rooms/"+code+"/join", guest, fiber.Map{"name": "Bruno"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/rooms/"+code+"/leave", host, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/api/rooms/"+code, guest, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, hostID, body["host_id"])

	// Last player leaving deletes the room
	resp, _ = doJSON(t, app, http.MethodPost, "/api/rooms/"+code+"/leave", guest, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodGet, "/api/rooms/"+code, guest, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
