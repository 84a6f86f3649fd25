package safety

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPassageFilter_CleanTextIsSafe(t *testing.T) {
	f := NewPassageFilter(0.5)

	assert.True(t, f.IsPassageSafe("The rabbit hopped across the sunny meadow and found a carrot."))
}

func TestPassageFilter_RepeatedToxicTermsAreUnsafe(t *testing.T) {
	f := NewPassageFilter(0.5)

	assert.False(t, f.IsPassageSafe("The killer murdered him, then murdered again in the massacre."))
}

func TestPassageFilter_SingleMildTermStaysUnderThreshold(t *testing.T) {
	f := NewPassageFilter(0.5)

	// one weight-1.0 term scores exactly 0.5, which does not exceed it
	assert.True(t, f.IsPassageSafe("Someone said there had been a murder in town."))
}

func TestPassageFilter_ClassifyScoresBounded(t *testing.T) {
	f := NewPassageFilter(0.5)

	for _, ls := range f.Classify("torture torture torture massacre gore murdered") {
		assert.GreaterOrEqual(t, ls.Score, 0.0)
		assert.Less(t, ls.Score, 1.0)
	}
}

func TestPassageFilter_CaseInsensitive(t *testing.T) {
	f := NewPassageFilter(0.5)

	assert.False(t, f.IsPassageSafe("MURDERED! STRANGLED! A MASSACRE!"))
}

type stubModerator struct {
	flagged bool
	err     error
}

func (m *stubModerator) Moderate(ctx context.Context, text string) (bool, error) {
	return m.flagged, m.err
}

func TestResponseFilter_Safe(t *testing.T) {
	f := NewResponseFilter(&stubModerator{flagged: false})
	assert.True(t, f.IsResponseSafe(context.Background(), "Here is a friendly answer."))
}

func TestResponseFilter_Flagged(t *testing.T) {
	f := NewResponseFilter(&stubModerator{flagged: true})
	assert.False(t, f.IsResponseSafe(context.Background(), "something inappropriate"))
}

func TestResponseFilter_FailsClosedOnError(t *testing.T) {
	f := NewResponseFilter(&stubModerator{err: errors.New("network down")})
	assert.False(t, f.IsResponseSafe(context.Background(), "any text at all"))
}
