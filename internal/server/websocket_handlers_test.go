package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomMember(t *testing.T) {
	s, app, _ := newTestServer(t)

	host := signupUser(t, app, "ana")
	resp, body := doJSON(t, app, http.MethodPost, "/api/rooms", host, fiber.Map{"name": "Ana"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	code, _ := body["code"].(string)
	hostUID, _ := body["host_id"].(string)
	require.NotEmpty(t, code)
	require.NotEmpty(t, hostUID)

	ctx := context.Background()
	assert.True(t, s.roomMember(ctx, code, hostUID))

	// Knowing the code is not enough; the socket is for joined players only.
	assert.False(t, s.roomMember(ctx, code, "424242"))
	assert.False(t, s.roomMember(ctx, "ZZZZZZ", hostUID))
}
