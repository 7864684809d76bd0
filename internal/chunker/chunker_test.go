package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_EmptyInput(t *testing.T) {
	for _, in := range []string{"", "   \n\t ", "\x00\x01"} {
		_, err := Split(in, DefaultSize, DefaultOverlap)
		assert.ErrorIs(t, err, ErrEmptyInput, "input %q", in)
	}
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	chunks, err := Split("  short document  ", DefaultSize, DefaultOverlap)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, Chunk{Text: "short document", Start: 0, End: 14, Index: 0}, chunks[0])
}

func TestSplit_WindowsAndOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 25) // 250 characters
	chunks, err := Split(text, 100, 20)
	require.NoError(t, err)

	require.Len(t, chunks, 4)
	wantStarts := []int{0, 80, 160, 240}
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, wantStarts[i], c.Start)
		assert.Equal(t, []rune(text)[c.Start:c.End], []rune(c.Text))
	}
	assert.Equal(t, 250, chunks[len(chunks)-1].End)
	assert.Equal(t, chunks[0].Text[80:100], chunks[1].Text[:20])
}

func TestSplit_CoversWholeText(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 200)
	trimmed := strings.TrimSpace(text)
	chunks, err := Split(text, DefaultSize, DefaultOverlap)
	require.NoError(t, err)

	covered := 0
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, c.Start, covered, "gap before chunk %d", i)
		if c.End > covered {
			covered = c.End
		}
	}
	assert.Equal(t, len([]rune(trimmed)), covered)
}

func TestSplit_SkipsBlankWindowsWithoutConsumingIndex(t *testing.T) {
	text := "first" + strings.Repeat(" ", 30) + "second"
	chunks, err := Split(text, 10, 0)
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, "first     ", chunks[0].Text)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, 30, chunks[1].Start)
	assert.Equal(t, "     secon", chunks[1].Text)
	assert.Equal(t, Chunk{Text: "d", Start: 40, End: 41, Index: 2}, chunks[2])
}

func TestSplit_CountsCharactersNotBytes(t *testing.T) {
	text := strings.Repeat("ñ", 15)
	chunks, err := Split(text, 10, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 10, len([]rune(chunks[0].Text)))
	assert.Equal(t, 15, chunks[1].End)
}

func TestSplit_OverlapNotSmallerThanSizeIsHalved(t *testing.T) {
	chunks, err := Split(strings.Repeat("x", 30), 10, 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, 5, chunks[1].Start)
}

func TestSplit_StripsControlCharacters(t *testing.T) {
	chunks, err := Split("a\x00b\x1bc\td", DefaultSize, DefaultOverlap)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "abc\td", chunks[0].Text)
}
