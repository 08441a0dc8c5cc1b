package models

import (
	"encoding/json"
	"strings"
	"time"
)

// PaymentStatus tracks the purchase lifecycle of a custom theme.
type PaymentStatus string

const (
	// PaymentPending indicates the theme was created but not yet paid for.
	PaymentPending PaymentStatus = "pending"
	// PaymentApproved indicates the provider confirmed the payment.
	PaymentApproved PaymentStatus = "approved"
)

// AccessCodeLength is the fixed size of theme access codes and room codes.
const AccessCodeLength = 6

// Theme is a named, ordered word list usable as round content. Column names
// keep the original Portuguese schema (titulo, autor, palavras) the clients
// already depend on.
type Theme struct {
	ID            string        `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Title         string        `gorm:"column:titulo;not null" json:"titulo"`
	Author        string        `gorm:"column:autor" json:"autor"`
	WordsState    string        `gorm:"column:palavras;type:json" json:"-"`
	IsPublic      bool          `gorm:"column:is_public;default:false" json:"is_public"`
	AccessCode    string        `gorm:"column:access_code;size:6;uniqueIndex" json:"access_code,omitempty"`
	PaymentStatus PaymentStatus `gorm:"column:payment_status;default:'pending'" json:"payment_status"`
	PaymentID     string        `gorm:"column:payment_id;index" json:"-"`
	Approved      bool          `gorm:"default:false" json:"approved"`
}

// Words deserializes the ordered word list.
func (t *Theme) Words() []string {
	if t.WordsState == "" || t.WordsState == "[]" {
		return []string{}
	}
	var words []string
	if err := json.Unmarshal([]byte(t.WordsState), &words); err != nil {
		return []string{}
	}
	return words
}

// SetWords serializes the ordered word list.
func (t *Theme) SetWords(words []string) {
	bytes, _ := json.Marshal(words)
	t.WordsState = string(bytes)
}

// NormalizeThemeCode upper-cases and trims a user-entered code. The UI
// upper-cases input too, but the server never trusts that.
func NormalizeThemeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
