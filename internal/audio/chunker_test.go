package audio

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeScript(words int, newlineEvery int) string {
	var b strings.Builder
	for i := 1; i <= words; i++ {
		b.WriteString("word")
		if newlineEvery > 0 && i%newlineEvery == 0 {
			b.WriteByte('\n')
		} else if i < words {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func joinChunks(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}

func TestSplitEmptyInput(t *testing.T) {
	assert.Empty(t, Split(""))
	assert.Empty(t, Split("   \n\t  "))
}

func TestSplitShortScriptIsOneCleanChunk(t *testing.T) {
	script := makeScript(500, 100)
	chunks := Split(script)
	require.Len(t, chunks, 1)
	assert.Equal(t, 500, chunks[0].Words)
	assert.False(t, chunks[0].Imperfect)
	assert.Equal(t, script, chunks[0].Text)
}

func TestSplitCutsAtNewlineAfterMinimum(t *testing.T) {
	// Newlines every 500 words: first reachable boundary inside the
	// 700..1000 window is at word 1000.
	script := makeScript(2500, 500)
	chunks := Split(script)
	require.Len(t, chunks, 3)
	assert.Equal(t, 1000, chunks[0].Words)
	assert.Equal(t, 1000, chunks[1].Words)
	assert.Equal(t, 500, chunks[2].Words)
	for i, c := range chunks {
		assert.False(t, c.Imperfect, "chunk %d", i)
	}
	assert.Equal(t, script, joinChunks(chunks))
}

func TestSplitNoNewlineForcesImperfectCut(t *testing.T) {
	script := makeScript(1000, 0)
	chunks := Split(script)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1000, chunks[0].Words)
	assert.True(t, chunks[0].Imperfect)
}

func TestSplitLongScriptWithoutNewlines(t *testing.T) {
	script := makeScript(2300, 0)
	chunks := Split(script)
	require.Len(t, chunks, 3)
	assert.Equal(t, 1000, chunks[0].Words)
	assert.True(t, chunks[0].Imperfect)
	assert.Equal(t, 1000, chunks[1].Words)
	assert.True(t, chunks[1].Imperfect)
	// Tail is under the minimum, so it becomes a clean final chunk.
	assert.Equal(t, 300, chunks[2].Words)
	assert.False(t, chunks[2].Imperfect)
	assert.Equal(t, script, joinChunks(chunks))
}

func TestSplitBounds(t *testing.T) {
	script := makeScript(7300, 150)
	chunks := Split(script)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.LessOrEqual(t, c.Words, MaxChunkWords, "chunk %d", i)
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, c.Words, MinChunkWords, "chunk %d", i)
		}
	}
	assert.Equal(t, script, joinChunks(chunks))
}

func TestSplitMergesTailBeyondSegmentCap(t *testing.T) {
	// 30,000 words without newlines would produce 30 forced chunks.
	script := makeScript(30000, 0)
	chunks := Split(script)
	require.Len(t, chunks, MaxSegments)
	last := chunks[MaxSegments-1]
	assert.Equal(t, 30000-(MaxSegments-1)*MaxChunkWords, last.Words)
	assert.True(t, last.Imperfect)
	assert.Equal(t, script, joinChunks(chunks))
}

func TestSplitWordTotalsPreserved(t *testing.T) {
	script := makeScript(4321, 777)
	total := 0
	for _, c := range Split(script) {
		total += c.Words
	}
	assert.Equal(t, 4321, total)
}
