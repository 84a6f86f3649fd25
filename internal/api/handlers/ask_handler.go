package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/book-tutor/backend/internal/tutor"
	"github.com/book-tutor/backend/pkg/logger"
)

type AskHandler struct {
	tutor *tutor.Tutor
}

func NewAskHandler(t *tutor.Tutor) *AskHandler {
	return &AskHandler{
		tutor: t,
	}
}

func (h *AskHandler) HandleAsk(c *fiber.Ctx) error {
	var req struct {
		Document string `json:"document"`
		Question string `json:"question"`
	}

	if body, ok := c.Locals("sanitized_body").(map[string]interface{}); ok {
		req.Document, _ = body["document"].(string)
		req.Question, _ = body["question"].(string)
	} else if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Document == "" || req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Document and question are required",
		})
	}

	turn := h.tutor.Ask(c.Context(), req.Document, req.Question)

	return c.JSON(fiber.Map{
		"id":          turn.ID,
		"answer":      turn.Answer,
		"score":       turn.Score,
		"mode":        turn.Mode,
		"latency_sec": turn.LatencySec,
	})
}
