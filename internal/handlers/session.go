package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"touchview/internal/models"
	"touchview/internal/services"
)

// SessionHandler exposes the viewer session lifecycle over HTTP.
type SessionHandler struct {
	sessions *services.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// respondError maps service errors onto HTTP status codes.
func respondError(c *fiber.Ctx, err error) error {
	var (
		notFound   *services.NotFoundError
		conflict   *services.ConflictError
		validation *services.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &validation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

// Create handles POST /sessions
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	var req models.CreateSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	info, err := h.sessions.Create(req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(info)
}

// List handles GET /sessions
func (h *SessionHandler) List(c *fiber.Ctx) error {
	sessions := h.sessions.List()
	return c.JSON(fiber.Map{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// Load handles POST /sessions/:id/load
func (h *SessionHandler) Load(c *fiber.Ctx) error {
	var req models.LoadSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	info, err := h.sessions.Load(c.Params("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(info)
}

// State handles GET /sessions/:id/state
func (h *SessionHandler) State(c *fiber.Ctx) error {
	state, err := h.sessions.State(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

// Delete handles DELETE /sessions/:id
func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	resp, err := h.sessions.Delete(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}
