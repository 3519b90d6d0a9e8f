package handlers

import (
	"repoEventsCache/internal/events"

	"github.com/gofiber/fiber/v2"
)

type HTTP struct {
	service events.Service
}

func NewHTTP(s events.Service) *HTTP {
	return &HTTP{
		service: s,
	}
}

func (h *HTTP) GetEventById(c *fiber.Ctx) error {
	id := c.Params("id")

	event, err := h.service.GetByID(id)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"error": "event not found",
		})
	}

	return c.JSON(event)
}

func (h *HTTP) GetEvents(c *fiber.Ctx) error {
	snapshot, err := h.service.Snapshot()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "snapshot unavailable"})
	}
	c.Set("Content-Type", "application/json")
	return c.Send(snapshot)
}

// Refresh triggers one refresh cycle (or joins the one in flight) and
// reports the size of the resulting collection. The cycle always "ends";
// fetch failures are not distinguishable here, same as a refresh spinner
// that simply stops.
func (h *HTTP) Refresh(c *fiber.Ctx) error {
	count := h.service.Refresh(c.Context())
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"events": count})
}

func (h *HTTP) Healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
