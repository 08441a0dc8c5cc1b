package service

import (
	"context"
	"testing"
	"time"

	"impostor/internal/models"
	"impostor/internal/payment"
)

type providerStub struct {
	createChargeFn func(context.Context, int, map[string]string, string) (*payment.Charge, error)
	getChargeFn    func(context.Context, string) (*payment.Charge, error)
}

func (s *providerStub) CreateCharge(ctx context.Context, amountCents int, metadata map[string]string, idempotencyKey string) (*payment.Charge, error) {
	return s.createChargeFn(ctx, amountCents, metadata, idempotencyKey)
}
func (s *providerStub) GetCharge(ctx context.Context, id string) (*payment.Charge, error) {
	return s.getChargeFn(ctx, id)
}

func pendingCharge(id string) *payment.Charge {
	return &payment.Charge{
		ID:        id,
		Status:    "pending",
		QRPayload: "00020126...",
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}
}

func TestCreateThemeIntentCreatesCharge(t *testing.T) {
	repo := memThemeRepo()
	theme := testTheme()
	theme.Approved = false
	theme.PaymentStatus = models.PaymentPending
	seedTheme(t, repo, theme)

	var gotKey string
	var gotAmount int
	provider := &providerStub{
		createChargeFn: func(_ context.Context, amount int, metadata map[string]string, key string) (*payment.Charge, error) {
			gotAmount = amount
			gotKey = key
			c := pendingCharge("pay_1")
			c.Metadata = metadata
			return c, nil
		},
		getChargeFn: func(context.Context, string) (*payment.Charge, error) {
			return nil, models.NewNotFoundError("Charge", "none")
		},
	}

	svc := NewPaymentService(repo, provider, 990)
	intent, err := svc.CreateThemeIntent(context.Background(), theme.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if intent.PaymentID != "pay_1" || intent.QRPayload == "" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if gotAmount != 990 {
		t.Fatalf("expected configured price, got %d", gotAmount)
	}
	if gotKey != theme.ID {
		t.Fatalf("expected theme id as idempotency key, got %q", gotKey)
	}

	stored, _ := repo.getByIDFn(context.Background(), theme.ID)
	if stored.PaymentID != "pay_1" {
		t.Fatalf("expected charge bound to theme, got %q", stored.PaymentID)
	}
}

func TestCreateThemeIntentReusesLivePendingCharge(t *testing.T) {
	repo := memThemeRepo()
	theme := testTheme()
	theme.Approved = false
	theme.PaymentID = "pay_live"
	seedTheme(t, repo, theme)

	creates := 0
	provider := &providerStub{
		createChargeFn: func(context.Context, int, map[string]string, string) (*payment.Charge, error) {
			creates++
			return pendingCharge("pay_new"), nil
		},
		getChargeFn: func(_ context.Context, id string) (*payment.Charge, error) {
			return pendingCharge(id), nil
		},
	}

	svc := NewPaymentService(repo, provider, 990)
	intent, err := svc.CreateThemeIntent(context.Background(), theme.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.PaymentID != "pay_live" {
		t.Fatalf("expected live charge reuse, got %q", intent.PaymentID)
	}
	if creates != 0 {
		t.Fatalf("expected no duplicate charge creation, got %d", creates)
	}
}

func TestCreateThemeIntentAlreadyUnlocked(t *testing.T) {
	repo := memThemeRepo()
	seedTheme(t, repo, testTheme()) // approved

	svc := NewPaymentService(repo, &providerStub{}, 990)
	_, err := svc.CreateThemeIntent(context.Background(), "theme-1")
	if !models.IsCode(err, models.CodeInvalidState) {
		t.Fatalf("expected invalid state for unlocked theme, got %v", err)
	}
}

func TestCreateThemeIntentProviderDownIsRetryable(t *testing.T) {
	repo := memThemeRepo()
	theme := testTheme()
	theme.Approved = false
	seedTheme(t, repo, theme)

	provider := &providerStub{
		createChargeFn: func(context.Context, int, map[string]string, string) (*payment.Charge, error) {
			return nil, models.NewProviderError(context.DeadlineExceeded)
		},
	}

	svc := NewPaymentService(repo, provider, 990)
	_, err := svc.CreateThemeIntent(context.Background(), theme.ID)
	if !models.IsCode(err, models.CodeProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestOnPaymentConfirmedIsIdempotent(t *testing.T) {
	repo := memThemeRepo()
	theme := testTheme()
	theme.Approved = false
	theme.PaymentStatus = models.PaymentPending
	theme.PaymentID = "pay_1"
	seedTheme(t, repo, theme)

	svc := NewPaymentService(repo, &providerStub{}, 990)
	ctx := context.Background()

	if err := svc.OnPaymentConfirmed(ctx, "pay_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, _ := repo.getByIDFn(ctx, theme.ID)
	if !first.Approved || first.PaymentStatus != models.PaymentApproved {
		t.Fatalf("expected approval, got %+v", first)
	}

	if err := svc.OnPaymentConfirmed(ctx, "pay_1"); err != nil {
		t.Fatalf("second confirmation must be a no-op: %v", err)
	}
	second, _ := repo.getByIDFn(ctx, theme.ID)
	if !second.Approved {
		t.Fatal("approval must never roll back")
	}
}

func TestOnPaymentConfirmedUnknownPayment(t *testing.T) {
	svc := NewPaymentService(memThemeRepo(), &providerStub{}, 990)

	err := svc.OnPaymentConfirmed(context.Background(), "pay_missing")
	if !models.IsCode(err, models.CodeNotFound) {
		t.Fatalf("expected payment not found, got %v", err)
	}
}

func TestHandleWebhookDropsMissingMetadata(t *testing.T) {
	svc := NewPaymentService(memThemeRepo(), &providerStub{}, 990)

	// Acked (nil) so the provider does not redeliver an unfixable payload.
	if err := svc.HandleWebhook(context.Background(), WebhookPayload{PaymentID: "pay_1"}); err != nil {
		t.Fatalf("malformed webhook must be dropped and acked, got %v", err)
	}
	if err := svc.HandleWebhook(context.Background(), WebhookPayload{
		Metadata: map[string]string{"theme_id": "t"},
	}); err != nil {
		t.Fatalf("malformed webhook must be dropped and acked, got %v", err)
	}
}

func TestHandleWebhookAppliesApproval(t *testing.T) {
	repo := memThemeRepo()
	theme := testTheme()
	theme.Approved = false
	theme.PaymentStatus = models.PaymentPending
	theme.PaymentID = "pay_1"
	seedTheme(t, repo, theme)

	svc := NewPaymentService(repo, &providerStub{}, 990)
	err := svc.HandleWebhook(context.Background(), WebhookPayload{
		PaymentID: "pay_1",
		Status:    "approved",
		Metadata:  map[string]string{"theme_id": theme.ID},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := repo.getByIDFn(context.Background(), theme.ID)
	if !stored.Approved {
		t.Fatal("expected webhook to approve the theme")
	}
}
