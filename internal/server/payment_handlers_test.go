package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"impostor/internal/cache"
	"impostor/internal/config"
	"impostor/internal/database"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPaymentTestServer wires the server against a fake payment provider.
func newPaymentTestServer(t *testing.T) (*Server, *fiber.App) {
	t.Helper()

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/charges":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":         "ch_test_1",
				"status":     "pending",
				"qr_payload": "00020126pix-test",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
		}
	}))
	t.Cleanup(provider.Close)

	db, err := database.ConnectTest()
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:       "test-secret",
		Env:             "test",
		PaymentAPIURL:   provider.URL,
		PaymentAPIKey:   "whsec-test",
		ThemePriceCents: 990,
		RoomIdleMinutes: 120,
	}

	s, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cache.SetClient(nil) })

	app := fiber.New()
	s.SetupRoutes(app)
	return s, app
}

func TestThemeUnlockFlow(t *testing.T) {
	s, app := newPaymentTestServer(t)
	token := signupUser(t, app, "ana")

	// Author a pending theme
	resp, body := doJSON(t, app, http.MethodPost, "/api/themes", token, fiber.Map{
		"title":  "Comidas",
		"author": "ana",
		"words":  []string{"feijoada", "pastel", "açaí", "coxinha", "pão de queijo"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	themeID := body["id"].(string)
	accessCode := body["access_code"].(string)

	// Create a payment intent
	resp, body = doJSON(t, app, http.MethodPost, "/api/themes/"+themeID+"/unlock", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "intent body: %v", body)
	assert.Equal(t, "ch_test_1", body["payment_id"])
	assert.Equal(t, "00020126pix-test", body["qr_payload"])

	// Provider confirms via webhook
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook",
		jsonBody(t, fiber.Map{
			"payment_id": "ch_test_1",
			"status":     "approved",
			"metadata":   fiber.Map{"theme_id": themeID},
		}))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Key", "whsec-test")
	wresp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, wresp.StatusCode)
	_ = wresp.Body.Close()

	// The theme is now approved and resolvable
	resp, body = doJSON(t, app, http.MethodGet, "/api/themes/"+accessCode, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["approved"])

	theme, err := s.themeRepo.GetByID(t.Context(), themeID)
	require.NoError(t, err)
	assert.True(t, theme.Approved)
}

func TestPaymentWebhook_RejectsBadKey(t *testing.T) {
	_, app := newPaymentTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook",
		jsonBody(t, fiber.Map{"payment_id": "ch_x", "status": "approved"}))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Key", "wrong")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestPaymentWebhook_AcksMalformedPayload(t *testing.T) {
	_, app := newPaymentTestServer(t)

	// Missing metadata is dropped but acknowledged so the provider stops
	// redelivering.
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook",
		jsonBody(t, fiber.Map{"payment_id": "ch_x", "status": "approved"}))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Key", "whsec-test")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestPaymentWebhook_UnknownPaymentFails(t *testing.T) {
	_, app := newPaymentTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook",
		jsonBody(t, fiber.Map{
			"payment_id": "ch_missing",
			"status":     "approved",
			"metadata":   fiber.Map{"theme_id": "nope"},
		}))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Key", "whsec-test")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	// Non-2xx so the provider retries later.
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}
