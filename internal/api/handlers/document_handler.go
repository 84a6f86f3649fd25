package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/book-tutor/backend/internal/index"
	"github.com/book-tutor/backend/internal/library"
	"github.com/book-tutor/backend/pkg/logger"
)

type DocumentHandler struct {
	builder *index.Builder
}

func NewDocumentHandler(builder *index.Builder) *DocumentHandler {
	return &DocumentHandler{
		builder: builder,
	}
}

// WarmDocument builds the index for a book ahead of the first question.
func (h *DocumentHandler) WarmDocument(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name is required",
		})
	}

	idx, err := h.builder.BuildOrLoad(c.Context(), req.Name)
	if err != nil {
		if errors.Is(err, library.ErrSourceNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Book file not found",
			})
		}
		logger.Error("Failed to index document", zap.String("name", req.Name), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to index document",
		})
	}

	return c.JSON(fiber.Map{
		"doc_id":      idx.DocID,
		"name":        idx.Name,
		"chunk_count": idx.ChunkCount,
	})
}
