package server

import (
	"impostor/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ResolveTheme handles GET /api/themes/:code
// @Summary Resolve a theme by access code
// @Tags themes
// @Produce json
// @Param code path string true "6-char access code"
// @Success 200 {object} models.Theme
// @Failure 404 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /themes/{code} [get]
func (s *Server) ResolveTheme(c *fiber.Ctx) error {
	theme, err := s.themeService.ResolveTheme(c.UserContext(), c.Params("code"))
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(theme)
}

// ListPublicThemes handles GET /api/themes/public
// @Summary List public approved themes
// @Tags themes
// @Produce json
// @Success 200 {array} models.Theme
// @Router /themes/public [get]
func (s *Server) ListPublicThemes(c *fiber.Ctx) error {
	themes, err := s.themeService.ListPublic(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(themes)
}

// CreateTheme handles POST /api/themes
// @Summary Create a custom theme
// @Description Creates a pending theme; it must be unlocked via payment before use
// @Tags themes
// @Accept json
// @Produce json
// @Param request body object{title=string,author=string,words=[]string} true "Theme content"
// @Success 201 {object} models.Theme
// @Failure 400 {object} object{error=string}
// @Router /themes [post]
func (s *Server) CreateTheme(c *fiber.Ctx) error {
	var req struct {
		Title  string   `json:"title"`
		Author string   `json:"author"`
		Words  []string `json:"words"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	theme, err := s.themeService.CreateTheme(c.UserContext(), req.Title, req.Author, req.Words)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(theme)
}
