package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/book-tutor/backend/internal/middleware/validation"
	"github.com/book-tutor/backend/internal/tutor"
	"github.com/book-tutor/backend/pkg/logger"
)

// WebSocketHandler runs an interactive tutoring session: one question in,
// the answer streamed back word by word.
type WebSocketHandler struct {
	tutor *tutor.Tutor
}

func NewWebSocketHandler(t *tutor.Tutor) *WebSocketHandler {
	return &WebSocketHandler{
		tutor: t,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("Tutor session started")

	defer func() {
		c.Close()
		logger.Info("Tutor session closed")
	}()

	for {
		var msg struct {
			Type     string `json:"type"`
			Document string `json:"document"`
			Question string `json:"question"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Info("Session read ended", zap.Error(err))
			break
		}

		if msg.Type != "question" {
			continue
		}

		if msg.Document == "" || msg.Question == "" {
			h.sendError(c, "Document and question are required")
			continue
		}

		// the ws path never passes the HTTP validation middleware
		if m := validation.ValidateDocumentName(msg.Document, 0); m != "" {
			h.sendError(c, m)
			continue
		}
		if m := validation.ValidateQuestion(msg.Question, 0); m != "" {
			h.sendError(c, m)
			continue
		}

		err = h.streamTurn(c, msg.Document, msg.Question)
		if err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			break
		}
	}
}

func (h *WebSocketHandler) streamTurn(c *websocket.Conn, document, question string) error {
	ctx := context.Background()

	if err := h.sendChunk(c, "status", "Thinking..."); err != nil {
		return err
	}

	turn := h.tutor.Ask(ctx, document, question)

	words := splitIntoWords(turn.Answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 && word != "\n" {
			chunk += " "
		}

		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":        "complete",
		"turn_id":     turn.ID,
		"mode":        turn.Mode,
		"score":       turn.Score,
		"latency_sec": turn.LatencySec,
	})
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
