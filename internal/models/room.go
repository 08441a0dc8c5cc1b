package models

import (
	"encoding/json"
	"strings"
	"time"
)

// RoomStatus defines the lifecycle state of a room.
type RoomStatus string

const (
	// RoomWaiting indicates the room is in the lobby between rounds.
	RoomWaiting RoomStatus = "waiting"
	// RoomPlaying indicates an active round.
	RoomPlaying RoomStatus = "playing"
)

// GameMode identifies one of the fixed round types. The values are wire
// constants shared with the clients and must not be renamed.
type GameMode string

const (
	// ModeSecretWord gives everyone a category and a word; the impostor only
	// sees the category.
	ModeSecretWord GameMode = "palavraSecreta"
	// ModeWords gives every player a word from the theme; the impostor gets a
	// decoy word instead.
	ModeWords GameMode = "palavras"
	// ModeTwoFactions splits the roster into two factions, each with its own
	// word.
	ModeTwoFactions GameMode = "duasFaccoes"
	// ModeCategoryItem gives everyone a category and an item; the impostor
	// only sees the category.
	ModeCategoryItem GameMode = "categoriaItem"
	// ModeDifferentQuestions gives the impostor a different question than the
	// rest of the roster.
	ModeDifferentQuestions GameMode = "perguntasDiferentes"
	// ModeCommunityWord plays with a word drawn from player submissions.
	ModeCommunityWord GameMode = "palavraComunidade"
)

// Valid reports whether m is one of the known game modes.
func (m GameMode) Valid() bool {
	switch m {
	case ModeSecretWord, ModeWords, ModeTwoFactions,
		ModeCategoryItem, ModeDifferentQuestions, ModeCommunityWord:
		return true
	}
	return false
}

// MinPlayers returns the smallest active roster that can start a round of
// this mode. Two factions need at least two players each.
func (m GameMode) MinPlayers() int {
	if m == ModeTwoFactions {
		return 4
	}
	return 3
}

// Player is a participant embedded in a Room. Roster order is join order.
type Player struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
	// WaitingForGame marks players who joined mid-round and are queued for
	// the next round boundary.
	WaitingForGame bool `json:"waiting_for_game,omitempty"`
	// Connected is tri-state: true (active), false (temporarily dropped),
	// nil (presence never tracked).
	Connected *bool `json:"connected,omitempty"`
}

// IsConnected treats untracked presence as present.
func (p Player) IsConnected() bool {
	return p.Connected == nil || *p.Connected
}

// SameName compares display names the way join-time conflict detection does:
// case-insensitive after trimming surrounding whitespace.
func (p Player) SameName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(name))
}

// Room represents one multiplayer session keyed by a short code.
type Room struct {
	Code            string     `gorm:"primaryKey;size:6" json:"code"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	HostID          string     `gorm:"size:64;not null" json:"host_id"`
	Status          RoomStatus `gorm:"default:'waiting'" json:"status"`
	GameMode        GameMode   `json:"game_mode,omitempty"`
	CurrentCategory string     `json:"current_category,omitempty"`
	CurrentWord     string     `json:"-"`
	ImpostorID      string     `json:"-"`
	GameData        string     `gorm:"type:json" json:"-"`
	PlayersState    string     `gorm:"column:players;type:json" json:"-"`
	// Version guards read-modify-write cycles across processes. Every
	// repository update increments it and refuses to apply over a newer row.
	Version uint `gorm:"not null;default:1" json:"-"`
}

// Players deserializes the roster, preserving join order.
func (r *Room) Players() []Player {
	if r.PlayersState == "" || r.PlayersState == "[]" {
		return []Player{}
	}
	var players []Player
	if err := json.Unmarshal([]byte(r.PlayersState), &players); err != nil {
		return []Player{}
	}
	return players
}

// SetPlayers serializes the roster.
func (r *Room) SetPlayers(players []Player) {
	bytes, _ := json.Marshal(players)
	r.PlayersState = string(bytes)
}

// FindPlayer returns the roster index of uid, or -1.
func FindPlayer(players []Player, uid string) int {
	for i, p := range players {
		if p.UID == uid {
			return i
		}
	}
	return -1
}

// Round deserializes the mode-specific round payload.
func (r *Room) Round() RoundData {
	if r.GameData == "" || r.GameData == "{}" {
		return RoundData{}
	}
	var round RoundData
	if err := json.Unmarshal([]byte(r.GameData), &round); err != nil {
		return RoundData{}
	}
	return round
}

// SetRound serializes the round payload.
func (r *Room) SetRound(round RoundData) {
	bytes, _ := json.Marshal(round)
	r.GameData = string(bytes)
}

// ClearRound drops all round-specific fields. Required whenever the room
// returns to the waiting state.
func (r *Room) ClearRound() {
	r.GameMode = ""
	r.CurrentCategory = ""
	r.CurrentWord = ""
	r.ImpostorID = ""
	r.GameData = "{}"
}

// Answer is one player's submission within a round. Append-only until
// revealed.
type Answer struct {
	PlayerID string `json:"player_id"`
	Text     string `json:"text"`
}

// Vote is one player's accusation within a round. Append-only until revealed.
type Vote struct {
	PlayerID string `json:"player_id"`
	TargetID string `json:"target_id"`
}

// SecretWordRound carries the palavraSecreta payload.
type SecretWordRound struct {
	Category string `json:"category"`
	Word     string `json:"word"`
}

// WordsRound carries the palavras payload: each player sees their own word,
// the impostor unknowingly holds the decoy.
type WordsRound struct {
	Words     map[string]string `json:"words"`
	DecoyWord string            `json:"decoy_word"`
}

// FactionsRound carries the duasFaccoes payload. Assignments maps uid to
// faction index 0 or 1.
type FactionsRound struct {
	Assignments map[string]int `json:"assignments"`
	Words       [2]string      `json:"words"`
}

// CategoryItemRound carries the categoriaItem payload.
type CategoryItemRound struct {
	Category string `json:"category"`
	Item     string `json:"item"`
}

// QuestionsRound carries the perguntasDiferentes payload.
type QuestionsRound struct {
	Question         string `json:"question"`
	ImpostorQuestion string `json:"impostor_question"`
}

// CommunityRound carries the palavraComunidade payload. Submissions maps uid
// to the word that player contributed before the draw.
type CommunityRound struct {
	Submissions map[string]string `json:"submissions"`
	ChosenWord  string            `json:"chosen_word,omitempty"`
}

// RoundData is the mode-tagged union stored in Room.GameData. Exactly one
// variant pointer matching Mode is set while a round is active.
type RoundData struct {
	Mode         GameMode           `json:"mode,omitempty"`
	SecretWord   *SecretWordRound   `json:"secret_word,omitempty"`
	Words        *WordsRound        `json:"words,omitempty"`
	Factions     *FactionsRound     `json:"factions,omitempty"`
	CategoryItem *CategoryItemRound `json:"category_item,omitempty"`
	Questions    *QuestionsRound    `json:"questions,omitempty"`
	Community    *CommunityRound    `json:"community,omitempty"`

	// Shared per-round collections, independent of mode.
	SpeakingOrder   []string `json:"speaking_order,omitempty"`
	Answers         []Answer `json:"answers,omitempty"`
	Votes           []Vote   `json:"votes,omitempty"`
	AnswersRevealed bool     `json:"answers_revealed,omitempty"`
	VotesRevealed   bool     `json:"votes_revealed,omitempty"`
}

// HasAnswered reports whether uid already submitted an answer this round.
func (d *RoundData) HasAnswered(uid string) bool {
	for _, a := range d.Answers {
		if a.PlayerID == uid {
			return true
		}
	}
	return false
}

// HasVoted reports whether uid already cast a vote this round.
func (d *RoundData) HasVoted(uid string) bool {
	for _, v := range d.Votes {
		if v.PlayerID == uid {
			return true
		}
	}
	return false
}

// RoomView is the client-visible projection of a Room. Round secrets
// (current word, impostor, per-player payloads) stay server-side and are
// delivered individually, never in the shared snapshot.
type RoomView struct {
	Code            string     `json:"code"`
	HostID          string     `json:"host_id"`
	Status          RoomStatus `json:"status"`
	GameMode        GameMode   `json:"game_mode,omitempty"`
	CurrentCategory string     `json:"current_category,omitempty"`
	Players         []Player   `json:"players"`
	SpeakingOrder   []string   `json:"speaking_order,omitempty"`
	AnswersRevealed bool       `json:"answers_revealed,omitempty"`
	VotesRevealed   bool       `json:"votes_revealed,omitempty"`
	Answers         []Answer   `json:"answers,omitempty"`
	Votes           []Vote     `json:"votes,omitempty"`
}

// View builds the shared snapshot broadcast to every room member.
// Answers and votes appear only after the host reveals them.
func (r *Room) View() RoomView {
	round := r.Round()
	view := RoomView{
		Code:            r.Code,
		HostID:          r.HostID,
		Status:          r.Status,
		GameMode:        r.GameMode,
		CurrentCategory: r.CurrentCategory,
		Players:         r.Players(),
		SpeakingOrder:   round.SpeakingOrder,
		AnswersRevealed: round.AnswersRevealed,
		VotesRevealed:   round.VotesRevealed,
	}
	if round.AnswersRevealed {
		view.Answers = round.Answers
	}
	if round.VotesRevealed {
		view.Votes = round.Votes
	}
	return view
}
