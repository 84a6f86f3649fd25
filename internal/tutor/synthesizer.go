package tutor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/book-tutor/backend/internal/llm"
	"github.com/book-tutor/backend/pkg/logger"
)

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Synthesizer produces the final tutor text from a bounded passage context.
// It never returns an error: any upstream failure resolves to a fixed
// friendly retry message.
type Synthesizer struct {
	completer Completer
}

func NewSynthesizer(completer Completer) *Synthesizer {
	return &Synthesizer{completer: completer}
}

const answerSystemPrompt = `You are a safe, friendly, knowledgeable reading tutor.

RULES:
1. Answer ONLY using the Passage shown below.
2. If the answer is in the passage, explain simply.
3. If not enough information, say exactly:
   "I'm not sure from this part of the book."
4. If the passage has unsafe content, say exactly:
   "That part of the story isn't for our age group."
5. Always stay positive.

AFTER your answer, ALWAYS add:
- One encouraging phrase
- One helpful hint
- One follow-up question`

// Answer follows the grounding instruction against a merged passage.
func (s *Synthesizer) Answer(ctx context.Context, question, passage string) string {
	userPrompt := fmt.Sprintf("Passage:\n%s\n\nStudent Question:\n%s\n\nNow answer following ALL rules.", passage, question)

	resp, err := s.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: answerSystemPrompt,
		UserPrompt:   userPrompt,
	})
	if err != nil {
		logger.Warn("Answer synthesis failed", zap.Error(err))
		return MsgSynthesisRetry
	}

	return resp.Content
}

const summarySystemPrompt = `Summarize the given book text into a clear, child-friendly 8-12 sentence overview.
Focus on the main plot, key events, motivations, and themes.
Do NOT add anything not shown in the text.`

// Summarize produces the whole-book overview in a single call.
func (s *Synthesizer) Summarize(ctx context.Context, text string) string {
	resp, err := s.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: summarySystemPrompt,
		UserPrompt:   fmt.Sprintf("TEXT:\n%s", text),
		MaxTokens:    1024,
	})
	if err != nil {
		logger.Warn("Summary synthesis failed", zap.Error(err))
		return MsgSummaryRetry
	}

	return resp.Content
}
