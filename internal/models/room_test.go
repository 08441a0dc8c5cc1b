package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameMode_Valid(t *testing.T) {
	for _, m := range []GameMode{
		ModeSecretWord, ModeWords, ModeTwoFactions,
		ModeCategoryItem, ModeDifferentQuestions, ModeCommunityWord,
	} {
		assert.True(t, m.Valid(), "mode %s", m)
	}
	assert.False(t, GameMode("charades").Valid())
	assert.False(t, GameMode("").Valid())
}

func TestGameMode_MinPlayers(t *testing.T) {
	assert.Equal(t, 4, ModeTwoFactions.MinPlayers())
	assert.Equal(t, 3, ModeSecretWord.MinPlayers())
	assert.Equal(t, 3, ModeWords.MinPlayers())
}

func TestPlayer_IsConnected(t *testing.T) {
	connected := true
	disconnected := false

	assert.True(t, Player{UID: "u1"}.IsConnected(), "untracked presence counts as present")
	assert.True(t, Player{UID: "u1", Connected: &connected}.IsConnected())
	assert.False(t, Player{UID: "u1", Connected: &disconnected}.IsConnected())
}

func TestPlayer_SameName(t *testing.T) {
	p := Player{UID: "u1", Name: "Ana"}

	assert.True(t, p.SameName("ana"))
	assert.True(t, p.SameName("  ANA  "))
	assert.False(t, p.SameName("Anabela"))
}

func TestRoom_PlayersRoundTrip(t *testing.T) {
	room := &Room{Code: "AB12CD"}

	assert.Empty(t, room.Players(), "empty state yields empty roster")

	room.SetPlayers([]Player{
		{UID: "u1", Name: "Ana"},
		{UID: "u2", Name: "Bia", WaitingForGame: true},
	})

	players := room.Players()
	require.Len(t, players, 2)
	assert.Equal(t, "Ana", players[0].Name)
	assert.True(t, players[1].WaitingForGame)

	room.PlayersState = "not json"
	assert.Empty(t, room.Players(), "corrupt state yields empty roster")
}

func TestFindPlayer(t *testing.T) {
	players := []Player{{UID: "u1"}, {UID: "u2"}}

	assert.Equal(t, 1, FindPlayer(players, "u2"))
	assert.Equal(t, -1, FindPlayer(players, "u9"))
	assert.Equal(t, -1, FindPlayer(nil, "u1"))
}

func TestRoom_ClearRound(t *testing.T) {
	room := &Room{
		Code:            "AB12CD",
		Status:          RoomWaiting,
		GameMode:        ModeSecretWord,
		CurrentCategory: "Animais",
		CurrentWord:     "capivara",
		ImpostorID:      "u2",
	}
	room.SetRound(RoundData{
		Mode:          ModeSecretWord,
		SecretWord:    &SecretWordRound{Category: "Animais", Word: "capivara"},
		SpeakingOrder: []string{"u1", "u2"},
	})

	room.ClearRound()

	assert.Empty(t, room.GameMode)
	assert.Empty(t, room.CurrentCategory)
	assert.Empty(t, room.CurrentWord)
	assert.Empty(t, room.ImpostorID)
	assert.Empty(t, room.Round().SpeakingOrder)
	assert.Nil(t, room.Round().SecretWord)
}

func TestRoundData_HasAnsweredAndVoted(t *testing.T) {
	round := RoundData{
		Answers: []Answer{{PlayerID: "u1", Text: "late"}},
		Votes:   []Vote{{PlayerID: "u2", TargetID: "u1"}},
	}

	assert.True(t, round.HasAnswered("u1"))
	assert.False(t, round.HasAnswered("u2"))
	assert.True(t, round.HasVoted("u2"))
	assert.False(t, round.HasVoted("u1"))
}

func TestRoom_ViewHidesSecrets(t *testing.T) {
	room := &Room{
		Code:            "AB12CD",
		HostID:          "u1",
		Status:          RoomPlaying,
		GameMode:        ModeSecretWord,
		CurrentCategory: "Animais",
		CurrentWord:     "capivara",
		ImpostorID:      "u2",
	}
	room.SetPlayers([]Player{{UID: "u1", Name: "Ana"}, {UID: "u2", Name: "Bia"}})
	room.SetRound(RoundData{
		Mode:          ModeSecretWord,
		SecretWord:    &SecretWordRound{Category: "Animais", Word: "capivara"},
		SpeakingOrder: []string{"u2", "u1"},
		Answers:       []Answer{{PlayerID: "u1", Text: "sneaky"}},
		Votes:         []Vote{{PlayerID: "u1", TargetID: "u2"}},
	})

	view := room.View()

	assert.Equal(t, "AB12CD", view.Code)
	assert.Equal(t, []string{"u2", "u1"}, view.SpeakingOrder)
	assert.Nil(t, view.Answers, "answers stay hidden before reveal")
	assert.Nil(t, view.Votes, "votes stay hidden before reveal")

	body, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "capivara")
	assert.NotContains(t, string(body), "impostor")
}

func TestRoom_ViewExposesRevealedCollections(t *testing.T) {
	room := &Room{Code: "AB12CD", HostID: "u1", Status: RoomPlaying, GameMode: ModeSecretWord}
	room.SetPlayers([]Player{{UID: "u1", Name: "Ana"}})
	room.SetRound(RoundData{
		Mode:            ModeSecretWord,
		Answers:         []Answer{{PlayerID: "u1", Text: "sneaky"}},
		Votes:           []Vote{{PlayerID: "u1", TargetID: "u2"}},
		AnswersRevealed: true,
		VotesRevealed:   true,
	})

	view := room.View()

	require.Len(t, view.Answers, 1)
	assert.Equal(t, "sneaky", view.Answers[0].Text)
	require.Len(t, view.Votes, 1)
	assert.Equal(t, "u2", view.Votes[0].TargetID)
}
