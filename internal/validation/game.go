package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var roomCodeRegex = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// ValidateRoomCode validates the 6-character room code format.
func ValidateRoomCode(code string) error {
	if !roomCodeRegex.MatchString(code) {
		return fmt.Errorf("room code must be exactly 6 uppercase letters or digits")
	}
	return nil
}

// ValidatePlayerName validates a display name submitted on room join.
func ValidatePlayerName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("player name is required")
	}
	if utf8.RuneCountInString(trimmed) > 24 {
		return fmt.Errorf("player name must not exceed 24 characters")
	}
	return nil
}

// ValidateThemeTitle validates a theme title submitted on theme creation.
func ValidateThemeTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return fmt.Errorf("theme title is required")
	}
	if utf8.RuneCountInString(trimmed) > 60 {
		return fmt.Errorf("theme title must not exceed 60 characters")
	}
	return nil
}

// ValidateThemeWords validates the word list of a theme. A playable theme
// needs enough distinct words to deal one per player plus a decoy.
func ValidateThemeWords(words []string) error {
	if len(words) < 5 {
		return fmt.Errorf("theme must contain at least 5 words")
	}
	if len(words) > 500 {
		return fmt.Errorf("theme must not exceed 500 words")
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		trimmed := strings.TrimSpace(w)
		if trimmed == "" {
			return fmt.Errorf("theme words cannot be empty")
		}
		key := strings.ToLower(trimmed)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("theme contains duplicate word %q", trimmed)
		}
		seen[key] = struct{}{}
	}
	return nil
}
