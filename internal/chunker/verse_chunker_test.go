package chunker

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vedaquery/internal/domain"
)

func TestChunkVerseBoundaries(t *testing.T) {
	c := NewVerseChunker(1000)
	chunks := c.Chunk("gita", "2.1 First line.\n\n2.2 Second line.")

	require.Len(t, chunks, 2)
	assert.Equal(t, "2.1", chunks[0].VerseRange)
	assert.Equal(t, "2.2", chunks[1].VerseRange)
	assert.Equal(t, "2.1 First line.", chunks[0].Content)
	assert.Equal(t, "2.2 Second line.", chunks[1].Content)
	assert.Equal(t, "gita_0000", chunks[0].ChunkID)
	assert.Equal(t, "gita_0001", chunks[1].ChunkID)
	for _, ch := range chunks {
		assert.Equal(t, domain.KindVerse, ch.Attrs.Kind)
		assert.Equal(t, "gita", ch.SourceID)
	}
}

func TestChunkParagraphFallback(t *testing.T) {
	p1 := strings.Repeat("a", 50)
	p2 := strings.Repeat("b", 60)
	c := NewVerseChunker(1000)
	chunks := c.Chunk("src", p1+"\n\n"+p2)

	require.Len(t, chunks, 1)
	assert.Equal(t, p1+"\n\n"+p2, chunks[0].Content)
	assert.Equal(t, domain.KindParagraph, chunks[0].Attrs.Kind)
	assert.Empty(t, chunks[0].VerseRange)
}

func TestChunkParagraphPacking(t *testing.T) {
	p1 := strings.Repeat("a", 80)
	p2 := strings.Repeat("b", 80)
	p3 := strings.Repeat("c", 80)
	c := NewVerseChunker(170)
	chunks := c.Chunk("src", p1+"\n\n"+p2+"\n\n"+p3)

	require.Len(t, chunks, 2)
	assert.Equal(t, p1+"\n\n"+p2, chunks[0].Content)
	assert.Equal(t, p3, chunks[1].Content)
}

func TestChunkOversizedParagraphKeptWhole(t *testing.T) {
	big := strings.Repeat("x", 500)
	c := NewVerseChunker(100)
	chunks := c.Chunk("src", big)

	require.Len(t, chunks, 1)
	assert.Equal(t, big, chunks[0].Content)
}

func TestChunkVerseSizeCapSplit(t *testing.T) {
	lines := []string{"2.1 " + strings.Repeat("a", 60)}
	for i := 0; i < 5; i++ {
		lines = append(lines, strings.Repeat("b", 60))
	}
	c := NewVerseChunker(150)
	chunks := c.Chunk("src", strings.Join(lines, "\n"))

	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 150)
		assert.Equal(t, "2.1", ch.VerseRange, "cap split continues the same verse label")
	}
}

func TestChunkEmptyInput(t *testing.T) {
	c := NewVerseChunker(1000)
	assert.Empty(t, c.Chunk("src", ""))
	assert.Empty(t, c.Chunk("src", "   \n\n  \t "))
}

func TestChunkInlineNumeralsIgnored(t *testing.T) {
	text := "The battle lasted 2.5 days in all.\n\nIt ended at dawn."
	c := NewVerseChunker(1000)
	chunks := c.Chunk("src", text)

	require.Len(t, chunks, 1)
	assert.Equal(t, domain.KindParagraph, chunks[0].Attrs.Kind)
	assert.Empty(t, chunks[0].VerseRange)
}

func TestChunkChapterAndVerseHeaders(t *testing.T) {
	text := "Chapter 2\nThe field of dharma.\n\nVerse 47\nYour right is to action alone."
	c := NewVerseChunker(1000)
	chunks := c.Chunk("src", text)

	require.Len(t, chunks, 2)
	assert.Equal(t, "2", chunks[0].VerseRange)
	assert.Equal(t, "47", chunks[1].VerseRange)
}

func TestChunkCustomRules(t *testing.T) {
	rules := []BoundaryRule{{
		Pattern: regexp.MustCompile(`^Sutra (\d+)\.(\d+)`),
		Label:   func(m []string) string { return m[1] + "." + m[2] },
	}}
	c := NewVerseChunker(1000).WithRules(rules)
	chunks := c.Chunk("src", "Sutra 1.2 Yoga is the stilling of the mind.\nSutra 1.3 Then the seer abides.")

	require.Len(t, chunks, 2)
	assert.Equal(t, "1.2", chunks[0].VerseRange)
	assert.Equal(t, "1.3", chunks[1].VerseRange)
}

func TestChunkPreambleBeforeFirstBoundary(t *testing.T) {
	text := "An invocation without any verse marker.\n2.1 The first verse follows."
	c := NewVerseChunker(1000)
	chunks := c.Chunk("gita", text)

	require.Len(t, chunks, 2)
	assert.Equal(t, domain.KindParagraph, chunks[0].Attrs.Kind)
	assert.Empty(t, chunks[0].VerseRange)
	assert.Equal(t, "An invocation without any verse marker.", chunks[0].Content)
	assert.Equal(t, domain.KindVerse, chunks[1].Attrs.Kind)
	assert.Equal(t, "2.1", chunks[1].VerseRange)
}

func TestChunkBlankLineWithSpacesSeparatesParagraphs(t *testing.T) {
	text := "First paragraph.\n \nSecond paragraph."
	c := NewVerseChunker(1000)
	chunks := c.Chunk("src", text)

	require.Len(t, chunks, 1)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", chunks[0].Content)

	// small cap forces the two paragraphs apart, proving the separator held
	small := NewVerseChunker(20).Chunk("src", text)
	require.Len(t, small, 2)
	assert.Equal(t, "First paragraph.", small[0].Content)
	assert.Equal(t, "Second paragraph.", small[1].Content)
}

func TestChunkDeterminism(t *testing.T) {
	text := "2.1 One.\n\n2.2 Two.\n\nSome trailing paragraph without a marker."
	c := NewVerseChunker(1000)
	first := c.Chunk("src", text)
	second := c.Chunk("src", text)
	assert.Equal(t, first, second)
}

func TestChunkCoverage(t *testing.T) {
	texts := []string{
		"2.1 First verse text here.\nContinuation of the verse.\n\n2.2 Second verse.",
		"A paragraph.\n\nAnother paragraph with more words.\n\n\n\nA third one.",
		"Verse 1\nLine one.\nLine two.\nVerse 2\nLine three.",
	}
	strip := func(s string) string {
		return strings.Join(strings.Fields(s), "")
	}
	for _, text := range texts {
		c := NewVerseChunker(40)
		chunks := c.Chunk("src", text)
		var joined strings.Builder
		for _, ch := range chunks {
			joined.WriteString(ch.Content)
			joined.WriteString(" ")
		}
		assert.Equal(t, strip(normalize(text)), strip(joined.String()),
			"no characters dropped or duplicated for %q", text)
	}
}

func TestChunkSizeAttributes(t *testing.T) {
	c := NewVerseChunker(1000)
	chunks := c.Chunk("src", "2.1 Line one.\nLine two.")
	require.Len(t, chunks, 1)
	assert.Equal(t, len(chunks[0].Content), chunks[0].Attrs.SizeChars)
	assert.Equal(t, 2, chunks[0].Attrs.LineCount)
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	got := normalize("a   b\t\tc\n\n\n\nd")
	assert.Equal(t, "a b c\n\nd", got)
}

func TestNormalizeBlankLineWithSpaces(t *testing.T) {
	assert.Equal(t, "a\n\nb", normalize("a\n \nb"))
	assert.Equal(t, "a\n\nb", normalize("a \t\n  \n\t \nb"))
}

func TestNormalizeKeepsDiacritics(t *testing.T) {
	text := "Kṛṣṇa spoke to Arjuna about ātman."
	got := normalize(text)
	assert.Contains(t, got, "Kṛṣṇa")
	assert.Contains(t, got, "ātman")
}
