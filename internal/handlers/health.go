package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"touchview/internal/services"
)

// HealthHandler reports service liveness.
type HealthHandler struct {
	sessions *services.SessionService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(sessions *services.SessionService) *HealthHandler {
	return &HealthHandler{sessions: sessions}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"service":   "touchview",
		"sessions":  h.sessions.Count(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
