package safety

import (
	"context"

	"go.uber.org/zap"

	"github.com/book-tutor/backend/pkg/logger"
)

// Moderator is the remote moderation dependency, satisfied by the LLM
// client.
type Moderator interface {
	Moderate(ctx context.Context, text string) (bool, error)
}

// ResponseFilter gates fully synthesized answers through a remote
// moderation service. Fail-closed: a moderation outage means the answer is
// treated as unsafe, trading availability for child-safety correctness.
type ResponseFilter struct {
	moderator Moderator
}

func NewResponseFilter(moderator Moderator) *ResponseFilter {
	return &ResponseFilter{moderator: moderator}
}

func (f *ResponseFilter) IsResponseSafe(ctx context.Context, text string) bool {
	flagged, err := f.moderator.Moderate(ctx, text)
	if err != nil {
		logger.Warn("Moderation unavailable, treating response as unsafe", zap.Error(err))
		return false
	}

	if flagged {
		logger.Info("Response flagged by moderation")
	}

	return !flagged
}
