package service

import (
	"context"
	"fmt"

	"impostor/internal/models"
	"impostor/internal/repository"
	"impostor/internal/validation"

	"github.com/google/uuid"
)

// DefaultThemeCode is the access code of the built-in seeded word pack used
// when a round is started without an explicit theme.
const DefaultThemeCode = "BASICO"

// themeCodeRetries bounds access-code generation attempts.
const themeCodeRetries = 5

// ThemeService resolves, lists, and creates word-pack themes.
type ThemeService struct {
	themes repository.ThemeRepository
	codeFn func() string
}

// NewThemeService returns a new ThemeService.
func NewThemeService(themes repository.ThemeRepository) *ThemeService {
	return &ThemeService{themes: themes}
}

// SetCodeGenerator replaces access-code generation. Tests inject a
// deterministic generator here.
func (s *ThemeService) SetCodeGenerator(fn func() string) {
	s.codeFn = fn
}

func (s *ThemeService) generateAccessCode() string {
	if s.codeFn != nil {
		return s.codeFn()
	}
	// UUIDs give us a cheap uniform source of hex characters; uppercased
	// they fit the 6-char code alphabet.
	raw := uuid.NewString()
	code := make([]byte, 0, models.AccessCodeLength)
	for i := 0; i < len(raw) && len(code) < models.AccessCodeLength; i++ {
		c := raw[i]
		switch {
		case c >= '0' && c <= '9':
			code = append(code, c)
		case c >= 'a' && c <= 'z':
			code = append(code, c-'a'+'A')
		}
	}
	return string(code)
}

// ResolveTheme maps a 6-character access code to a usable theme. The code is
// normalized to uppercase before matching. Unapproved themes surface a
// conflict distinct from not-found so callers can show "payment pending"
// instead of "invalid code".
func (s *ThemeService) ResolveTheme(ctx context.Context, code string) (*models.Theme, error) {
	normalized := models.NormalizeThemeCode(code)
	if len(normalized) != models.AccessCodeLength {
		return nil, models.NewValidationError(fmt.Sprintf(
			"theme code must be exactly %d characters", models.AccessCodeLength))
	}

	theme, err := s.themes.GetByAccessCode(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if !theme.Approved {
		return nil, models.NewConflictError("theme is awaiting payment approval")
	}
	return theme, nil
}

// CreateTheme registers a new private theme in the pending, unapproved state
// with a freshly generated access code. Approval happens through the payment
// flow.
func (s *ThemeService) CreateTheme(ctx context.Context, title, author string, words []string) (*models.Theme, error) {
	if err := validation.ValidateThemeTitle(title); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateThemeWords(words); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	for attempt := 0; attempt < themeCodeRetries; attempt++ {
		theme := &models.Theme{
			ID:            uuid.NewString(),
			Title:         title,
			Author:        author,
			AccessCode:    s.generateAccessCode(),
			PaymentStatus: models.PaymentPending,
			Approved:      false,
		}
		theme.SetWords(words)

		err := s.themes.Create(ctx, theme)
		if err == nil {
			return theme, nil
		}
		if !models.IsCode(err, models.CodeConflict) {
			return nil, err
		}
	}
	return nil, models.NewConflictError("theme creation failed after repeated code collisions")
}

// ListPublic returns all approved public themes.
func (s *ThemeService) ListPublic(ctx context.Context) ([]models.Theme, error) {
	return s.themes.ListPublic(ctx)
}
