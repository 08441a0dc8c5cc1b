package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"impostor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateCharge(t *testing.T) {
	var gotKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/charges", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")

		var body createChargeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 990, body.AmountCents)

		json.NewEncoder(w).Encode(Charge{
			ID:        "pay_123",
			Status:    "pending",
			QRPayload: "00020126...",
			Metadata:  body.Metadata,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	charge, err := client.CreateCharge(context.Background(), 990,
		map[string]string{"theme_id": "t1"}, "idem-1")
	require.NoError(t, err)

	assert.Equal(t, "pay_123", charge.ID)
	assert.Equal(t, "idem-1", gotKey)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "t1", charge.Metadata["theme_id"])
}

func TestClient_GetCharge_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	_, err := client.GetCharge(context.Background(), "pay_missing")
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestClient_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	_, err := client.CreateCharge(context.Background(), 990, nil, "idem-2")
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeProvider))

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.Retryable)
}

func TestClient_UnreachableProvider(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "secret")
	_, err := client.GetCharge(context.Background(), "pay_123")
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeProvider))
}
