package service

import (
	"context"
	"log/slog"
	"time"

	"impostor/internal/middleware"
	"impostor/internal/models"
	"impostor/internal/observability"
	"impostor/internal/payment"
	"impostor/internal/repository"
)

// PaymentService bridges the external charge provider and theme approval.
type PaymentService struct {
	themes     repository.ThemeRepository
	provider   payment.Provider
	priceCents int
}

// NewPaymentService returns a new PaymentService.
func NewPaymentService(themes repository.ThemeRepository, provider payment.Provider, priceCents int) *PaymentService {
	return &PaymentService{
		themes:     themes,
		provider:   provider,
		priceCents: priceCents,
	}
}

// ThemeIntent is the client-facing payment handle for a theme unlock.
type ThemeIntent struct {
	PaymentID string    `json:"payment_id"`
	QRPayload string    `json:"qr_payload"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateThemeIntent creates (or reuses) the charge unlocking a theme.
// Idempotent per theme: the theme ID doubles as the provider idempotency key,
// and a live pending charge is returned instead of creating a new one.
func (s *PaymentService) CreateThemeIntent(ctx context.Context, themeID string) (*ThemeIntent, error) {
	theme, err := s.themes.GetByID(ctx, themeID)
	if err != nil {
		return nil, err
	}
	if theme.Approved {
		return nil, models.NewInvalidStateError("theme is already unlocked")
	}

	if theme.PaymentID != "" {
		charge, err := s.provider.GetCharge(ctx, theme.PaymentID)
		if err == nil && charge.Status == "pending" && charge.ExpiresAt.After(time.Now()) {
			return &ThemeIntent{
				PaymentID: charge.ID,
				QRPayload: charge.QRPayload,
				ExpiresAt: charge.ExpiresAt,
			}, nil
		}
		if err != nil && models.IsCode(err, models.CodeProvider) {
			// Provider down; surface the retryable error rather than risk a
			// duplicate charge.
			return nil, err
		}
		// Stale or expired charge, create a fresh one below.
	}

	charge, err := s.provider.CreateCharge(ctx, s.priceCents,
		map[string]string{"theme_id": theme.ID}, theme.ID)
	if err != nil {
		return nil, err
	}

	theme.PaymentID = charge.ID
	if err := s.themes.Update(ctx, theme); err != nil {
		return nil, err
	}

	return &ThemeIntent{
		PaymentID: charge.ID,
		QRPayload: charge.QRPayload,
		ExpiresAt: charge.ExpiresAt,
	}, nil
}

// WebhookPayload is the provider's asynchronous payment notification.
type WebhookPayload struct {
	PaymentID string            `json:"payment_id"`
	Status    string            `json:"status"`
	Metadata  map[string]string `json:"metadata"`
}

// HandleWebhook applies a provider notification to local theme state.
// A nil return acknowledges the webhook; malformed payloads are logged,
// counted, and acknowledged since redelivery cannot fix them. Transient local
// failures return an error so the provider redelivers.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload WebhookPayload) error {
	if payload.PaymentID == "" || payload.Metadata["theme_id"] == "" {
		middleware.WebhookFailures.WithLabelValues("invalid_payload").Inc()
		observability.GlobalLogger.WarnContext(ctx, "dropping webhook with missing metadata",
			slog.String("payment_id", payload.PaymentID),
		)
		return nil
	}

	if payload.Status != "approved" && payload.Status != "paid" {
		// Nothing to apply for pending/expired notifications.
		return nil
	}
	return s.OnPaymentConfirmed(ctx, payload.PaymentID)
}

// OnPaymentConfirmed marks the theme bound to paymentId as approved. Safe to
// invoke repeatedly: an already-approved theme is untouched.
func (s *PaymentService) OnPaymentConfirmed(ctx context.Context, paymentID string) error {
	theme, err := s.themes.GetByPaymentID(ctx, paymentID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			middleware.WebhookFailures.WithLabelValues("payment_not_found").Inc()
			return models.NewNotFoundError("Payment", paymentID)
		}
		return err
	}

	if theme.Approved {
		return nil
	}

	theme.Approved = true
	theme.PaymentStatus = models.PaymentApproved
	if err := s.themes.Update(ctx, theme); err != nil {
		return err
	}

	observability.GlobalLogger.InfoContext(ctx, "theme unlocked",
		slog.String("theme_id", theme.ID),
		slog.String("payment_id", paymentID),
	)
	return nil
}
