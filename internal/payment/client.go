// Package payment implements the HTTP client for the external charge provider.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"impostor/internal/models"
)

// Charge is the provider's representation of one payment.
type Charge struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	QRPayload string            `json:"qr_payload"`
	ExpiresAt time.Time         `json:"expires_at"`
	Metadata  map[string]string `json:"metadata"`
}

// Provider is the outbound contract to the payment provider.
type Provider interface {
	CreateCharge(ctx context.Context, amountCents int, metadata map[string]string, idempotencyKey string) (*Charge, error)
	GetCharge(ctx context.Context, id string) (*Charge, error)
}

// Client calls the provider's REST API. Identical idempotency keys never
// create duplicate charges; the provider deduplicates on the header.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient returns a provider client for the given base URL and API key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type createChargeRequest struct {
	AmountCents int               `json:"amount_cents"`
	Metadata    map[string]string `json:"metadata"`
}

// CreateCharge creates a charge with the given idempotency key.
func (c *Client) CreateCharge(ctx context.Context, amountCents int, metadata map[string]string, idempotencyKey string) (*Charge, error) {
	body, err := json.Marshal(createChargeRequest{AmountCents: amountCents, Metadata: metadata})
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	return c.do(req)
}

// GetCharge fetches the current state of a charge.
func (c *Client) GetCharge(ctx context.Context, id string) (*Charge, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/charges/"+id, nil)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Charge, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, models.NewProviderError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, models.NewNotFoundError("Charge", req.URL.Path)
	case resp.StatusCode >= 500:
		return nil, models.NewProviderError(fmt.Errorf("provider returned status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, models.NewValidationError(fmt.Sprintf("provider rejected request with status %d", resp.StatusCode))
	}

	var charge Charge
	if err := json.NewDecoder(resp.Body).Decode(&charge); err != nil {
		return nil, models.NewProviderError(fmt.Errorf("malformed provider response: %w", err))
	}
	return &charge, nil
}
