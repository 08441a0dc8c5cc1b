package cache

import (
	"context"
	"fmt"
	"time"

	"impostor/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	ThemeKeyPrefix     = "theme:%s"
	PublicThemesKey    = "themes:public"
	WSTicketKeyPrefix  = "ws_ticket:%s"
	RoomPresencePrefix = "room:presence:%s"
	RoomEventsPrefix   = "room:events:%s"
)

const (
	ThemeTTL        = 10 * time.Minute
	PublicThemesTTL = 5 * time.Minute
	WSTicketTTL     = 30 * time.Second
)

func ThemeKey(code string) string {
	return fmt.Sprintf(ThemeKeyPrefix, code)
}

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketKeyPrefix, ticket)
}

func RoomPresenceChannel(code string) string {
	return fmt.Sprintf(RoomPresencePrefix, code)
}

func RoomEventsChannel(code string) string {
	return fmt.Sprintf(RoomEventsPrefix, code)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateTheme(ctx context.Context, code string) {
	Invalidate(ctx, ThemeKey(code))
	Invalidate(ctx, PublicThemesKey)
}

// themePayload mirrors models.Theme field for field. The model hides the word
// list and payment id from API responses with json:"-" tags, so marshaling
// the model directly would drop them; caching goes through this struct so the
// round trip is lossless.
type themePayload struct {
	ID            string               `json:"id"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	Title         string               `json:"titulo"`
	Author        string               `json:"autor"`
	WordsState    string               `json:"palavras"`
	IsPublic      bool                 `json:"is_public"`
	AccessCode    string               `json:"access_code"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	PaymentID     string               `json:"payment_id"`
	Approved      bool                 `json:"approved"`
}

func payloadFor(t models.Theme) themePayload {
	return themePayload{
		ID:            t.ID,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		Title:         t.Title,
		Author:        t.Author,
		WordsState:    t.WordsState,
		IsPublic:      t.IsPublic,
		AccessCode:    t.AccessCode,
		PaymentStatus: t.PaymentStatus,
		PaymentID:     t.PaymentID,
		Approved:      t.Approved,
	}
}

func (p themePayload) theme() models.Theme {
	return models.Theme{
		ID:            p.ID,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		Title:         p.Title,
		Author:        p.Author,
		WordsState:    p.WordsState,
		IsPublic:      p.IsPublic,
		AccessCode:    p.AccessCode,
		PaymentStatus: p.PaymentStatus,
		PaymentID:     p.PaymentID,
		Approved:      p.Approved,
	}
}

// GetTheme returns a cached theme by access code, or nil on miss.
// A nil Redis client is treated as a cache miss so callers never need to branch.
func GetTheme(ctx context.Context, code string) *models.Theme {
	var p themePayload
	found, err := GetJSON(ctx, ThemeKey(code), &p)
	if err != nil || !found {
		return nil
	}
	theme := p.theme()
	return &theme
}

// SetTheme caches a theme under its access code.
func SetTheme(ctx context.Context, theme *models.Theme) {
	if theme == nil || theme.AccessCode == "" {
		return
	}
	_ = SetJSON(ctx, ThemeKey(theme.AccessCode), payloadFor(*theme), ThemeTTL)
}

// GetPublicThemes returns the cached public theme listing, or nil on miss.
func GetPublicThemes(ctx context.Context) []models.Theme {
	var payloads []themePayload
	found, err := GetJSON(ctx, PublicThemesKey, &payloads)
	if err != nil || !found {
		return nil
	}
	themes := make([]models.Theme, len(payloads))
	for i, p := range payloads {
		themes[i] = p.theme()
	}
	return themes
}

// SetPublicThemes caches the public theme listing.
func SetPublicThemes(ctx context.Context, themes []models.Theme) {
	payloads := make([]themePayload, len(themes))
	for i, t := range themes {
		payloads[i] = payloadFor(t)
	}
	_ = SetJSON(ctx, PublicThemesKey, payloads, PublicThemesTTL)
}

// ConsumeWSTicket atomically fetches and deletes a single-use WebSocket ticket,
// returning the user ID it was issued for. Returns redis.Nil error when absent.
func ConsumeWSTicket(ctx context.Context, ticket string) (string, error) {
	if client == nil {
		return "", redis.Nil
	}
	return client.GetDel(ctx, WSTicketKey(ticket)).Result()
}

// IssueWSTicket stores a single-use WebSocket ticket for the given user ID.
func IssueWSTicket(ctx context.Context, ticket, userID string) error {
	if client == nil {
		return fmt.Errorf("redis unavailable")
	}
	return client.Set(ctx, WSTicketKey(ticket), userID, WSTicketTTL).Err()
}
