package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/book-tutor/backend/internal/analytics"
	"github.com/book-tutor/backend/pkg/logger"
)

type StatsHandler struct {
	reporter *analytics.Reporter
}

func NewStatsHandler(reporter *analytics.Reporter) *StatsHandler {
	return &StatsHandler{
		reporter: reporter,
	}
}

func (h *StatsHandler) GetLogStats(c *fiber.Ctx) error {
	report, err := h.reporter.BuildReport()
	if err != nil {
		logger.Error("Failed to build interaction report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build report",
		})
	}

	if c.Query("format") == "text" {
		c.Set("Content-Type", "text/plain; charset=utf-8")
		return c.SendString(h.reporter.FormatReport(report))
	}

	return c.JSON(report)
}
