package server

import (
	"crypto/subtle"

	"impostor/internal/models"
	"impostor/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateThemeIntent handles POST /api/themes/:id/unlock
// @Summary Create a payment intent for a theme
// @Description Returns the charge the client should pay; idempotent while a live charge exists
// @Tags payments
// @Produce json
// @Param id path string true "Theme ID"
// @Success 200 {object} service.ThemeIntent
// @Failure 404 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Failure 502 {object} object{error=string}
// @Router /themes/{id}/unlock [post]
func (s *Server) CreateThemeIntent(c *fiber.Ctx) error {
	intent, err := s.paymentService.CreateThemeIntent(c.UserContext(), c.Params("id"))
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(intent)
}

// PaymentWebhook handles POST /api/payments/webhook
// @Summary Payment provider webhook
// @Description Applies payment confirmations. Non-2xx responses make the provider redeliver.
// @Tags payments
// @Accept json
// @Produce json
// @Success 200 {object} object{message=string}
// @Failure 401 {object} object{error=string}
// @Router /payments/webhook [post]
func (s *Server) PaymentWebhook(c *fiber.Ctx) error {
	// The provider signs deliveries with the shared API key.
	key := c.Get("X-Webhook-Key")
	if s.config.PaymentAPIKey == "" ||
		subtle.ConstantTimeCompare([]byte(key), []byte(s.config.PaymentAPIKey)) != 1 {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid webhook key"))
	}

	var payload service.WebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid webhook body"))
	}

	// Malformed payloads are acked and dropped inside the service; real
	// failures propagate so the provider redelivers.
	if err := s.paymentService.HandleWebhook(c.UserContext(), payload); err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(fiber.Map{"message": "ok"})
}
