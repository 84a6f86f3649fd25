package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var (
	injectionPattern = regexp.MustCompile(`(?i)(union\s+select|insert\s+into|drop\s+table|<script|<iframe|javascript:|onerror=|onload=)`)
	// book names must stay a bare file name, no path traversal
	documentNamePattern = regexp.MustCompile(`^[\w\- .()]+$`)
)

const (
	DefaultMaxQuestionLength  = 2000
	DefaultMaxDocumentNameLen = 255
)

type Config struct {
	MaxQuestionLength   int
	MaxDocumentNameLen  int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware validates ask and document request bodies before the handlers
// see them. Sanitized bodies are stashed in c.Locals("sanitized_body").
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQuestionLength == 0 {
		cfg.MaxQuestionLength = DefaultMaxQuestionLength
	}
	if cfg.MaxDocumentNameLen == 0 {
		cfg.MaxDocumentNameLen = DefaultMaxDocumentNameLen
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == "POST" || c.Method() == "PUT" {
			contentType := c.Get("Content-Type")
			if contentType != "" {
				allowed := false
				for _, allowedType := range cfg.AllowedContentTypes {
					if strings.Contains(contentType, allowedType) {
						allowed = true
						break
					}
				}
				if !allowed {
					return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
						"error": "Unsupported content type",
					})
				}
			}
		}

		path := c.Path()

		if strings.Contains(path, "/api/v1/ask") && c.Method() == "POST" {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			question, ok := req["question"].(string)
			if !ok {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Question is required and must be a string",
				})
			}

			if msg := ValidateQuestion(question, cfg.MaxQuestionLength); msg != "" {
				if msg == "Invalid question content" {
					cfg.Logger.Warn("Suspicious question content",
						zap.String("ip", c.IP()),
					)
				}
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": msg,
				})
			}

			document, ok := req["document"].(string)
			if !ok || document == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Document is required and must be a string",
				})
			}

			if msg := ValidateDocumentName(document, cfg.MaxDocumentNameLen); msg != "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": msg,
				})
			}

			req["question"] = sanitizeString(question)
			c.Locals("sanitized_body", req)
		}

		if strings.Contains(path, "/api/v1/documents") && c.Method() == "POST" {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			name, ok := req["name"].(string)
			if !ok || name == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Name is required and must be a string",
				})
			}

			if msg := ValidateDocumentName(name, cfg.MaxDocumentNameLen); msg != "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": msg,
				})
			}
		}

		return c.Next()
	}
}

// ValidateQuestion returns an empty string for an acceptable question or
// the user-facing rejection reason. Shared by the HTTP middleware and the
// websocket session, which never passes through the middleware chain.
func ValidateQuestion(question string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxQuestionLength
	}
	if strings.TrimSpace(question) == "" {
		return "Question is required and must be a string"
	}
	if len(question) > maxLen {
		return "Question exceeds maximum length"
	}
	if injectionPattern.MatchString(question) {
		return "Invalid question content"
	}
	return ""
}

// ValidateDocumentName rejects path traversal and odd characters in book
// names. Same contract as ValidateQuestion.
func ValidateDocumentName(name string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxDocumentNameLen
	}
	if len(name) > maxLen {
		return "Document name exceeds maximum length"
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\") {
		return "Invalid document name"
	}
	if !documentNamePattern.MatchString(name) {
		return "Invalid document name"
	}
	return ""
}

func sanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return input
}
