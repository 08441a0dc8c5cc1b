// Package service provides application business logic (rooms, themes, payments).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"impostor/internal/middleware"
	"impostor/internal/models"
	"impostor/internal/observability"
	"impostor/internal/repository"
	"impostor/internal/validation"
)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// roomCodeRetries bounds code generation attempts before surfacing a conflict.
const roomCodeRetries = 5

// ThemeResolver resolves a theme access code to a usable word list.
// Implemented by ThemeService.
type ThemeResolver interface {
	ResolveTheme(ctx context.Context, code string) (*models.Theme, error)
}

// RoomEventPublisher fans a room snapshot out to all members after a mutation.
// Implemented by notifications.Notifier; nil disables publishing.
type RoomEventPublisher interface {
	PublishRoomEvent(ctx context.Context, code, event string, view models.RoomView)
}

// RoomService owns room lifecycle: the lobby roster, round transitions, and
// the per-round payloads. All mutations on one room are serialized through an
// in-process lock table keyed by room code.
type RoomService struct {
	rooms     repository.RoomRepository
	themes    ThemeResolver
	publisher RoomEventPublisher

	idleAfter time.Duration

	// rng drives impostor selection and speaking-order shuffles. Injectable
	// so tests can assert deterministic outcomes.
	rngMu sync.Mutex
	rng   *rand.Rand

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	now func() time.Time
}

// NewRoomService returns a RoomService with a time-seeded random source.
func NewRoomService(rooms repository.RoomRepository, themes ThemeResolver, publisher RoomEventPublisher, idleAfter time.Duration) *RoomService {
	return &RoomService{
		rooms:     rooms,
		themes:    themes,
		publisher: publisher,
		idleAfter: idleAfter,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		locks:     make(map[string]*sync.Mutex),
		now:       time.Now,
	}
}

// SetRand replaces the random source. Tests inject a seeded source here.
func (s *RoomService) SetRand(r *rand.Rand) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	s.rng = r
}

func (s *RoomService) randIntn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}

func (s *RoomService) randShuffle(n int, swap func(i, j int)) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	s.rng.Shuffle(n, swap)
}

// roomLock returns the mutex serializing mutations for one room code.
func (s *RoomService) roomLock(code string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[code]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[code] = mu
	}
	return mu
}

func (s *RoomService) dropLock(code string) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	delete(s.locks, code)
}

func (s *RoomService) publish(ctx context.Context, room *models.Room, event string) {
	if s.publisher != nil {
		s.publisher.PublishRoomEvent(ctx, room.Code, event, room.View())
	}
}

// isRoomIdle reports whether the room has been untouched past the idle cutoff.
func (s *RoomService) isRoomIdle(room *models.Room) bool {
	return s.idleAfter > 0 && s.now().Sub(room.UpdatedAt) > s.idleAfter
}

// loadRoom fetches a room, reaping it on access when idle. Callers must hold
// the room lock.
func (s *RoomService) loadRoom(ctx context.Context, code string) (*models.Room, error) {
	room, err := s.rooms.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if s.isRoomIdle(room) {
		if delErr := s.rooms.Delete(ctx, code); delErr != nil {
			return nil, delErr
		}
		middleware.RoomsReaped.Inc()
		return nil, models.NewNotFoundError("Room", code)
	}
	return room, nil
}

func (s *RoomService) generateRoomCode() string {
	code := make([]byte, models.AccessCodeLength)
	for i := range code {
		code[i] = roomCodeAlphabet[s.randIntn(len(roomCodeAlphabet))]
	}
	return string(code)
}

// CreateRoom creates a room with a fresh unique code and the host as its
// only, connected player.
func (s *RoomService) CreateRoom(ctx context.Context, hostUID, hostName string) (*models.Room, error) {
	if hostUID == "" {
		return nil, models.NewValidationError("host uid is required")
	}
	if err := validation.ValidatePlayerName(hostName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	connected := true
	for attempt := 0; attempt < roomCodeRetries; attempt++ {
		room := &models.Room{
			Code:   s.generateRoomCode(),
			HostID: hostUID,
			Status: models.RoomWaiting,
		}
		room.SetPlayers([]models.Player{{UID: hostUID, Name: hostName, Connected: &connected}})
		room.GameData = "{}"

		err := s.rooms.Create(ctx, room)
		if err == nil {
			s.publish(ctx, room, "room_created")
			return room, nil
		}
		if !models.IsCode(err, models.CodeConflict) {
			return nil, err
		}
		// Code collision, draw a new one.
	}
	return nil, models.NewConflictError("room creation failed after repeated code collisions")
}

// JoinRoom adds a player to a room. Rejoining with a known uid reconnects the
// existing player instead of appending. Joining mid-round queues the player
// for the next round boundary.
func (s *RoomService) JoinRoom(ctx context.Context, code, uid, name string) (*models.Room, error) {
	if uid == "" {
		return nil, models.NewValidationError("player uid is required")
	}
	if err := validation.ValidatePlayerName(name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	mu := s.roomLock(code)
	mu.Lock()
	defer mu.Unlock()

	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	players := room.Players()
	connected := true

	if i := models.FindPlayer(players, uid); i >= 0 {
		// Reconnect path: the uid owns its roster slot, including its name.
		players[i].Connected = &connected
		room.SetPlayers(players)
		if err := s.rooms.Update(ctx, room); err != nil {
			return nil, err
		}
		s.publish(ctx, room, "player_joined")
		return room, nil
	}

	for _, p := range players {
		if p.IsConnected() && p.SameName(name) {
			return nil, models.NewConflictError("a connected player already uses this name")
		}
	}

	players = append(players, models.Player{
		UID:            uid,
		Name:           name,
		Connected:      &connected,
		WaitingForGame: room.Status == models.RoomPlaying,
	})
	room.SetPlayers(players)

	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, err
	}
	s.publish(ctx, room, "player_joined")
	return room, nil
}

// LeaveRoom removes a player. The last player to leave deletes the room; a
// departing host hands off to the earliest-joined connected remaining player.
func (s *RoomService) LeaveRoom(ctx context.Context, code, uid string) error {
	mu := s.roomLock(code)
	mu.Lock()
	defer mu.Unlock()

	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return err
	}

	players := room.Players()
	i := models.FindPlayer(players, uid)
	if i < 0 {
		return models.NewNotFoundError("Player", uid)
	}
	players = append(players[:i], players[i+1:]...)

	if len(players) == 0 {
		if err := s.rooms.Delete(ctx, code); err != nil {
			return err
		}
		s.dropLock(code)
		return nil
	}

	if room.HostID == uid {
		room.HostID = nextHost(players)
	}
	room.SetPlayers(players)

	if err := s.rooms.Update(ctx, room); err != nil {
		return err
	}
	s.publish(ctx, room, "player_left")
	return nil
}

// nextHost picks the earliest-joined connected player, falling back to the
// earliest-joined player so the host always references a present uid.
func nextHost(players []models.Player) string {
	for _, p := range players {
		if p.IsConnected() {
			return p.UID
		}
	}
	return players[0].UID
}

// SetConnected toggles presence without removing the player. Idempotent; a
// concurrent LeaveRoom wins and this returns NotFound.
func (s *RoomService) SetConnected(ctx context.Context, code, uid string, connected bool) (*models.Room, error) {
	mu := s.roomLock(code)
	mu.Lock()
	defer mu.Unlock()

	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	players := room.Players()
	i := models.FindPlayer(players, uid)
	if i < 0 {
		return nil, models.NewNotFoundError("Player", uid)
	}
	players[i].Connected = &connected
	room.SetPlayers(players)

	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, err
	}
	s.publish(ctx, room, "presence_changed")
	return room, nil
}

// StartGame transitions waiting→playing: resolves the theme, picks the
// impostor uniformly over eligible players, shuffles the speaking order, and
// builds the mode payload. Host-only.
func (s *RoomService) StartGame(ctx context.Context, code, uid string, mode models.GameMode, themeCode string) (*models.Room, error) {
	if !mode.Valid() {
		return nil, models.NewValidationError(fmt.Sprintf("unknown game mode %q", mode))
	}

	// An omitted theme code falls back to the built-in seeded pack.
	if themeCode == "" {
		themeCode = DefaultThemeCode
	}

	// Theme resolution happens before taking the room lock so slow content
	// lookups never block other mutations on the same room.
	theme, err := s.themes.ResolveTheme(ctx, themeCode)
	if err != nil {
		return nil, err
	}

	mu := s.roomLock(code)
	mu.Lock()
	defer mu.Unlock()

	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	if room.HostID != uid {
		return nil, models.NewUnauthorizedError("only the host can start the game")
	}
	if room.Status != models.RoomWaiting {
		return nil, models.NewInvalidStateError("game already in progress")
	}

	players := room.Players()
	eligible := make([]models.Player, 0, len(players))
	for _, p := range players {
		if p.IsConnected() && !p.WaitingForGame {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) < mode.MinPlayers() {
		return nil, models.NewValidationError(fmt.Sprintf(
			"insufficient players: mode %s needs at least %d, have %d", mode, mode.MinPlayers(), len(eligible)))
	}

	impostorID := eligible[s.randIntn(len(eligible))].UID

	order := make([]string, len(eligible))
	for i, p := range eligible {
		order[i] = p.UID
	}
	s.randShuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	round, err := s.buildRound(mode, theme, eligible, impostorID)
	if err != nil {
		return nil, err
	}
	round.SpeakingOrder = order

	room.GameMode = mode
	room.ImpostorID = impostorID
	room.Status = models.RoomPlaying
	switch mode {
	case models.ModeSecretWord:
		room.CurrentCategory = round.SecretWord.Category
		room.CurrentWord = round.SecretWord.Word
	case models.ModeCategoryItem:
		room.CurrentCategory = round.CategoryItem.Category
		room.CurrentWord = round.CategoryItem.Item
	default:
		room.CurrentCategory = theme.Title
		room.CurrentWord = ""
	}
	room.SetRound(round)

	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, err
	}
	middleware.RoundsStarted.WithLabelValues(string(mode)).Inc()
	observability.GlobalLogger.InfoContext(ctx, "round started",
		slog.String("room_code", code),
		slog.String("mode", string(mode)),
		slog.Int("players", len(eligible)),
	)
	s.publish(ctx, room, "game_started")
	return room, nil
}

// buildRound assembles the mode-tagged payload from the theme's word list.
// Any prior round's votes and answers are implicitly dropped since the
// payload is built from scratch.
func (s *RoomService) buildRound(mode models.GameMode, theme *models.Theme, eligible []models.Player, impostorID string) (models.RoundData, error) {
	round := models.RoundData{Mode: mode}

	needed := 1
	switch mode {
	case models.ModeWords, models.ModeTwoFactions, models.ModeDifferentQuestions:
		needed = 2
	}
	picked, err := s.pickWords(theme, needed)
	if err != nil {
		return round, err
	}

	switch mode {
	case models.ModeSecretWord:
		round.SecretWord = &models.SecretWordRound{Category: theme.Title, Word: picked[0]}
	case models.ModeWords:
		words := make(map[string]string, len(eligible))
		for _, p := range eligible {
			if p.UID == impostorID {
				words[p.UID] = picked[1]
			} else {
				words[p.UID] = picked[0]
			}
		}
		round.Words = &models.WordsRound{Words: words, DecoyWord: picked[1]}
	case models.ModeTwoFactions:
		assignments := make(map[string]int, len(eligible))
		// Shuffle a copy so faction membership is independent of join order.
		shuffled := make([]models.Player, len(eligible))
		copy(shuffled, eligible)
		s.randShuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		for i, p := range shuffled {
			assignments[p.UID] = i % 2
		}
		round.Factions = &models.FactionsRound{
			Assignments: assignments,
			Words:       [2]string{picked[0], picked[1]},
		}
	case models.ModeCategoryItem:
		round.CategoryItem = &models.CategoryItemRound{Category: theme.Title, Item: picked[0]}
	case models.ModeDifferentQuestions:
		round.Questions = &models.QuestionsRound{Question: picked[0], ImpostorQuestion: picked[1]}
	case models.ModeCommunityWord:
		round.Community = &models.CommunityRound{
			Submissions: make(map[string]string),
			ChosenWord:  picked[0],
		}
	}
	return round, nil
}

// pickWords draws n distinct words uniformly from the theme.
func (s *RoomService) pickWords(theme *models.Theme, n int) ([]string, error) {
	words := theme.Words()
	if len(words) < n {
		return nil, models.NewValidationError(fmt.Sprintf(
			"theme %q has %d words, need at least %d", theme.Title, len(words), n))
	}
	idx := make([]int, len(words))
	for i := range idx {
		idx[i] = i
	}
	s.randShuffle(len(idx), func(i, j int) {
		idx[i], idx[j] = idx[j], idx[i]
	})

	picked := make([]string, n)
	for i := 0; i < n; i++ {
		picked[i] = words[idx[i]]
	}
	return picked, nil
}

// SubmitAnswer appends one answer per player per round.
func (s *RoomService) SubmitAnswer(ctx context.Context, code, uid, text string) (*models.Room, error) {
	if text == "" {
		return nil, models.NewValidationError("answer text is required")
	}

	mu := s.roomLock(code)
	mu.Lock()
	defer mu.Unlock()

	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomPlaying {
		return nil, models.NewInvalidStateError("no active round")
	}

	players := room.Players()
	i := models.FindPlayer(players, uid)
	if i < 0 {
		return nil, models.NewNotFoundError("Player", uid)
	}
	if players[i].WaitingForGame {
		return nil, models.NewInvalidStateError("player is waiting for the next round")
	}

	round := room.Round()
	if round.AnswersRevealed {
		return nil, models.NewInvalidStateError("answers already revealed")
	}
	if round.HasAnswered(uid) {
		return nil, models.NewConflictError("player already answered this round")
	}
	round.Answers = append(round.Answers, models.Answer{PlayerID: uid, Text: text})
	room.SetRound(round)

	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, err
	}
	s.publish(ctx, room, "answer_submitted")
	return room, nil
}

// CastVote appends one vote per player per round. The target must be present
// in the roster.
func (s *RoomService) CastVote(ctx context.Context, code, uid, targetUID string) (*models.Room, error) {
	mu := s.roomLock(code)
	mu.Lock()
	defer mu.Unlock()

	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomPlaying {
		return nil, models.NewInvalidStateError("no active round")
	}

	players := room.Players()
	if models.FindPlayer(players, uid) < 0 {
		return nil, models.NewNotFoundError("Player", uid)
	}
	if models.FindPlayer(players, targetUID) < 0 {
		return nil, models.NewValidationError("vote target is not in the room")
	}

	round := room.Round()
	if round.VotesRevealed {
		return nil, models.NewInvalidStateError("votes already revealed")
	}
	if round.HasVoted(uid) {
		return nil, models.NewConflictError("player already voted this round")
	}
	round.Votes = append(round.Votes, models.Vote{PlayerID: uid, TargetID: targetUID})
	room.SetRound(round)

	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, err
	}
	s.publish(ctx, room, "vote_cast")
	return room, nil
}

// RevealAnswers marks the round's answers visible. Host-only and idempotent.
func (s *RoomService) RevealAnswers(ctx context.Context, code, uid string) (*models.Room, error) {
	return s.reveal(ctx, code, uid, "answers_revealed", func(round *models.RoundData) bool {
		if round.AnswersRevealed {
			return false
		}
		round.AnswersRevealed = true
		return true
	})
}

// RevealVotes marks the round's votes visible. Host-only and idempotent.
func (s *RoomService) RevealVotes(ctx context.Context, code, uid string) (*models.Room, error) {
	return s.reveal(ctx, code, uid, "votes_revealed", func(round *models.RoundData) bool {
		if round.VotesRevealed {
			return false
		}
		round.VotesRevealed = true
		return true
	})
}

func (s *RoomService) reveal(ctx context.Context, code, uid, event string, apply func(*models.RoundData) bool) (*models.Room, error) {
	mu := s.roomLock(code)
	mu.Lock()
	defer mu.Unlock()

	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.HostID != uid {
		return nil, models.NewUnauthorizedError("only the host can reveal")
	}
	if room.Status != models.RoomPlaying {
		return nil, models.NewInvalidStateError("no active round")
	}

	round := room.Round()
	if !apply(&round) {
		// Already revealed: same visible state, no duplicate event.
		return room, nil
	}
	room.SetRound(round)

	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, err
	}
	s.publish(ctx, room, event)
	return room, nil
}

// EndRound transitions playing→waiting, admits queued players, and clears all
// round-specific state. Host-only.
func (s *RoomService) EndRound(ctx context.Context, code, uid string) (*models.Room, error) {
	mu := s.roomLock(code)
	mu.Lock()
	defer mu.Unlock()

	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.HostID != uid {
		return nil, models.NewUnauthorizedError("only the host can end the round")
	}
	if room.Status != models.RoomPlaying {
		return nil, models.NewInvalidStateError("no active round")
	}

	players := room.Players()
	for i := range players {
		players[i].WaitingForGame = false
	}
	room.SetPlayers(players)
	room.ClearRound()
	room.Status = models.RoomWaiting

	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, err
	}
	s.publish(ctx, room, "round_ended")
	return room, nil
}

// GetRoom returns the room, reaping it on access when idle.
func (s *RoomService) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	mu := s.roomLock(code)
	mu.Lock()
	defer mu.Unlock()
	return s.loadRoom(ctx, code)
}

// ReapIdleRooms deletes rooms with no activity past the idle cutoff. Returns
// the number of rooms removed.
func (s *RoomService) ReapIdleRooms(ctx context.Context) (int, error) {
	if s.idleAfter <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.idleAfter)
	stale, err := s.rooms.ListIdleSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, room := range stale {
		mu := s.roomLock(room.Code)
		mu.Lock()
		// Re-check under the lock; the room may have seen activity since the listing.
		current, err := s.rooms.GetByCode(ctx, room.Code)
		if err == nil && s.isRoomIdle(current) {
			if err := s.rooms.Delete(ctx, room.Code); err == nil {
				middleware.RoomsReaped.Inc()
				reaped++
			}
		}
		mu.Unlock()
		s.dropLock(room.Code)
	}
	return reaped, nil
}

// StartReaper sweeps for idle rooms on a fixed interval until ctx is done.
func (s *RoomService) StartReaper(ctx context.Context, every time.Duration) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				observability.GlobalLogger.Error("room reaper panicked", slog.Any("panic", r))
			}
		}()

		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := s.ReapIdleRooms(ctx); err != nil {
					observability.GlobalLogger.Error("room reaper sweep failed", slog.String("error", err.Error()))
				} else if n > 0 {
					observability.GlobalLogger.Info("reaped idle rooms", slog.Int("count", n))
				}
			}
		}
	}()
}
