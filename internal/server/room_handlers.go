package server

import (
	"strings"

	"impostor/internal/models"
	"impostor/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// roomCodeParam extracts and validates the :code route parameter.
func roomCodeParam(c *fiber.Ctx) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(c.Params("code")))
	if err := validation.ValidateRoomCode(code); err != nil {
		return "", models.NewValidationError(err.Error())
	}
	return code, nil
}

// CreateRoom handles POST /api/rooms
// @Summary Create a room
// @Description Create a new waiting room with the caller as host
// @Tags rooms
// @Accept json
// @Produce json
// @Param request body object{name=string} true "Host display name"
// @Success 201 {object} models.RoomView
// @Failure 400 {object} object{error=string}
// @Router /rooms [post]
func (s *Server) CreateRoom(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := validation.ValidatePlayerName(req.Name); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	room, err := s.roomService.CreateRoom(c.UserContext(), s.playerUID(c), req.Name)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(room.View())
}

// JoinRoom handles POST /api/rooms/:code/join
// @Summary Join a room
// @Tags rooms
// @Accept json
// @Produce json
// @Param code path string true "Room code"
// @Param request body object{name=string} true "Display name"
// @Success 200 {object} models.RoomView
// @Failure 404 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /rooms/{code}/join [post]
func (s *Server) JoinRoom(c *fiber.Ctx) error {
	code, err := roomCodeParam(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := validation.ValidatePlayerName(req.Name); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	room, err := s.roomService.JoinRoom(c.UserContext(), code, s.playerUID(c), req.Name)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(room.View())
}

// LeaveRoom handles POST /api/rooms/:code/leave
func (s *Server) LeaveRoom(c *fiber.Ctx) error {
	code, err := roomCodeParam(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	if err := s.roomService.LeaveRoom(c.UserContext(), code, s.playerUID(c)); err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(fiber.Map{"message": "Left room"})
}

// SetConnected handles POST /api/rooms/:code/connected
func (s *Server) SetConnected(c *fiber.Ctx) error {
	code, err := roomCodeParam(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	var req struct {
		Connected bool `json:"connected"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	room, err := s.roomService.SetConnected(c.UserContext(), code, s.playerUID(c), req.Connected)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(room.View())
}

// StartGame handles POST /api/rooms/:code/start
// @Summary Start a round
// @Description Host starts a round with a game mode and optional theme code
// @Tags rooms
// @Accept json
// @Produce json
// @Param code path string true "Room code"
// @Param request body object{mode=string,theme_code=string} true "Round settings"
// @Success 200 {object} models.RoomView
// @Failure 400 {object} object{error=string}
// @Failure 401 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /rooms/{code}/start [post]
func (s *Server) StartGame(c *fiber.Ctx) error {
	code, err := roomCodeParam(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	var req struct {
		Mode      string `json:"mode"`
		ThemeCode string `json:"theme_code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	room, err := s.roomService.StartGame(c.UserContext(), code, s.playerUID(c),
		models.GameMode(req.Mode), req.ThemeCode)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(room.View())
}

// SubmitAnswer handles POST /api/rooms/:code/answers
func (s *Server) SubmitAnswer(c *fiber.Ctx) error {
	code, err := roomCodeParam(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	room, err := s.roomService.SubmitAnswer(c.UserContext(), code, s.playerUID(c), req.Text)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(room.View())
}

// CastVote handles POST /api/rooms/:code/votes
func (s *Server) CastVote(c *fiber.Ctx) error {
	code, err := roomCodeParam(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	var req struct {
		TargetUID string `json:"target_uid"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	room, err := s.roomService.CastVote(c.UserContext(), code, s.playerUID(c), req.TargetUID)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(room.View())
}

// RevealAnswers handles POST /api/rooms/:code/answers/reveal
func (s *Server) RevealAnswers(c *fiber.Ctx) error {
	code, err := roomCodeParam(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	room, err := s.roomService.RevealAnswers(c.UserContext(), code, s.playerUID(c))
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(room.View())
}

// RevealVotes handles POST /api/rooms/:code/votes/reveal
func (s *Server) RevealVotes(c *fiber.Ctx) error {
	code, err := roomCodeParam(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	room, err := s.roomService.RevealVotes(c.UserContext(), code, s.playerUID(c))
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(room.View())
}

// EndRound handles POST /api/rooms/:code/end
func (s *Server) EndRound(c *fiber.Ctx) error {
	code, err := roomCodeParam(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	room, err := s.roomService.EndRound(c.UserContext(), code, s.playerUID(c))
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(room.View())
}

// GetRoom handles GET /api/rooms/:code
// @Summary Get room state
// @Tags rooms
// @Produce json
// @Param code path string true "Room code"
// @Success 200 {object} models.RoomView
// @Failure 404 {object} object{error=string}
// @Router /rooms/{code} [get]
func (s *Server) GetRoom(c *fiber.Ctx) error {
	code, err := roomCodeParam(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	room, err := s.roomService.GetRoom(c.UserContext(), code)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(room.View())
}
