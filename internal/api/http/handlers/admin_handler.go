package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/civic-issue-service/internal/service"
)

// SweepRunner runs one SLA sweep on demand.
type SweepRunner interface {
	RunOnce(ctx context.Context) (service.SweepResult, error)
}

// AdminHandler exposes operational endpoints.
type AdminHandler struct {
	sweeper SweepRunner
}

// NewAdminHandler constructs handler.
func NewAdminHandler(sweeper SweepRunner) *AdminHandler {
	return &AdminHandler{sweeper: sweeper}
}

// RunSweep handles POST /admin/sla/sweep.
func (h *AdminHandler) RunSweep(c *fiber.Ctx) error {
	result, err := h.sweeper.RunOnce(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
