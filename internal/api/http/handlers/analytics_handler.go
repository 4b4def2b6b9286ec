package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/civic-issue-service/internal/report"
	"github.com/spec-kit/civic-issue-service/internal/service"
)

// AnalyticsHandler exposes derived issue views.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Stats handles GET /issues/stats.
func (h *AnalyticsHandler) Stats(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	stats, err := h.analytics.Stats(c.UserContext(), principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// Chart handles GET /issues/chart.
func (h *AnalyticsHandler) Chart(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	chart, err := h.analytics.ChartData(c.UserContext(), principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": chart})
}

// Analytics handles GET /issues/analytics.
func (h *AnalyticsHandler) Analytics(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	data, err := h.analytics.AnalyticsData(c.UserContext(), principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": data})
}

// Export handles GET /issues/export.
func (h *AnalyticsHandler) Export(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	workbook, err := h.analytics.ExportIssues(c.UserContext(), principal.Actor())
	if err != nil {
		return err
	}
	fileName := fmt.Sprintf("issues_%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	c.Set(fiber.HeaderContentType, report.ContentType)
	c.Set(fiber.HeaderContentDisposition, "attachment; filename="+fileName)
	return c.Send(workbook)
}
