package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitText_Empty(t *testing.T) {
	assert.Nil(t, SplitText("", 800, 150))
}

func TestSplitText_ShorterThanChunk(t *testing.T) {
	chunks := SplitText("short text", 800, 150)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])
}

func TestSplitText_OverlapBetweenNeighbors(t *testing.T) {
	text := strings.Repeat("abcdefghij", 100) // 1000 chars
	chunks := SplitText(text, 800, 150)

	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 800)
	// second chunk starts at 650, repeating the last 150 chars of the first
	assert.Equal(t, chunks[0][650:], chunks[1][:150])
}

func TestSplitText_Deterministic(t *testing.T) {
	text := strings.Repeat("once upon a time in a quiet village ", 200)

	first := SplitText(text, 800, 150)
	second := SplitText(text, 800, 150)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i], second[i])
	}
}

func TestSplitText_CoversWholeText(t *testing.T) {
	text := strings.Repeat("x", 2500)
	chunks := SplitText(text, 800, 150)

	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0])
	for _, c := range chunks[1:] {
		if len(c) > 150 {
			rebuilt.WriteString(c[150:])
		}
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestSplitText_UnicodeBoundaries(t *testing.T) {
	text := strings.Repeat("日本語の本", 400)
	chunks := SplitText(text, 800, 150)

	for _, c := range chunks {
		assert.True(t, len([]rune(c)) <= 800)
		assert.True(t, strings.ContainsRune(c, '日') || strings.ContainsRune(c, '本'))
	}
}
