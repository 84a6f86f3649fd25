package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/book-tutor/backend/internal/storage/models"
	"github.com/book-tutor/backend/pkg/logger"
)

type FeedbackStore interface {
	StoreFeedback(feedback *models.Feedback) error
}

type FeedbackHandler struct {
	store FeedbackStore
}

func NewFeedbackHandler(store FeedbackStore) *FeedbackHandler {
	return &FeedbackHandler{
		store: store,
	}
}

func (h *FeedbackHandler) SubmitFeedback(c *fiber.Ctx) error {
	var req struct {
		TurnID  string `json:"turn_id"`
		Helpful bool   `json:"helpful"`
		Comment string `json:"comment"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.TurnID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "turn_id is required",
		})
	}

	feedback := &models.Feedback{
		TurnID:  req.TurnID,
		Helpful: req.Helpful,
		Comment: req.Comment,
	}

	if err := h.store.StoreFeedback(feedback); err != nil {
		logger.Error("Failed to store feedback", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store feedback",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Feedback recorded",
	})
}
