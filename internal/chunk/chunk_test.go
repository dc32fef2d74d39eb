package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestSplit(t *testing.T) {
	t.Run("ShouldProduceExpectedChunkCount", func(t *testing.T) {
		cases := []struct {
			w, size, overlap int
		}{
			{0, 5, 2},
			{1, 5, 0},
			{1, 5, 2},
			{2, 5, 2},
			{4, 5, 2},
			{5, 5, 2},
			{10, 5, 2},
			{100, 10, 3},
			{4, 500, 50},
			{50, 500, 50},
			{500, 500, 50},
			{501, 500, 50},
			{1000, 500, 50},
		}
		for _, tc := range cases {
			chunks, err := Split(words(tc.w), tc.size, tc.overlap)
			require.NoError(t, err)

			// One window for any non-empty text of at most overlap
			// words, ceil((w-overlap)/step) windows beyond that.
			var want int
			switch {
			case tc.w == 0:
				want = 0
			case tc.w <= tc.overlap:
				want = 1
			default:
				step := tc.size - tc.overlap
				want = (tc.w - tc.overlap + step - 1) / step
			}
			assert.Len(t, chunks, want, "w=%d size=%d overlap=%d", tc.w, tc.size, tc.overlap)
		}
	})

	t.Run("ShouldOverlapConsecutiveChunks", func(t *testing.T) {
		chunks, err := Split(words(20), 8, 3)
		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)

		for i := 1; i < len(chunks); i++ {
			prev := strings.Fields(chunks[i-1])
			cur := strings.Fields(chunks[i])
			if len(prev) < 8 {
				continue // trailing partial window
			}
			tail := prev[len(prev)-3:]
			head := cur[:3]
			assert.Equal(t, tail, head, "chunks %d and %d should share 3 words", i-1, i)
		}
	})

	t.Run("ShouldReturnEmptyForEmptyText", func(t *testing.T) {
		chunks, err := Split("   \n\t  ", 500, 50)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("ShouldKeepWholeShortTextInOneChunk", func(t *testing.T) {
		chunks, err := Split("the sky is blue", 500, 50)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "the sky is blue", chunks[0])
	})

	t.Run("ShouldRejectDegenerateOverlap", func(t *testing.T) {
		_, err := Split("some text here", 10, 10)
		assert.Error(t, err)

		_, err = Split("some text here", 10, 15)
		assert.Error(t, err)

		_, err = Split("some text here", 10, -1)
		assert.Error(t, err)

		_, err = Split("some text here", 0, 0)
		assert.Error(t, err)
	})

	t.Run("ShouldBeDeterministic", func(t *testing.T) {
		text := words(137)
		a, err := Split(text, 30, 7)
		require.NoError(t, err)
		b, err := Split(text, 30, 7)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}
