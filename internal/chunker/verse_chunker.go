package chunker

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"vedaquery/internal/domain"
)

// BoundaryRule maps a line-anchored pattern to a verse label. Rules are
// evaluated in order; the first match wins.
type BoundaryRule struct {
	Pattern *regexp.Regexp
	Label   func(match []string) string
}

// DefaultBoundaryRules recognizes numeric chapter.verse prefixes and
// "Chapter N" / "Verse N" headers. Patterns are anchored at line start so
// inline numerals in narrative text do not create false boundaries.
func DefaultBoundaryRules() []BoundaryRule {
	return []BoundaryRule{
		{
			Pattern: regexp.MustCompile(`^(\d+)\.(\d+)`),
			Label:   func(m []string) string { return m[1] + "." + m[2] },
		},
		{
			Pattern: regexp.MustCompile(`^Chapter\s+(\d+)\b`),
			Label:   func(m []string) string { return m[1] },
		},
		{
			Pattern: regexp.MustCompile(`^Verse\s+(\d+)\b`),
			Label:   func(m []string) string { return m[1] },
		},
	}
}

// VerseChunker splits scripture text on verse boundaries, falling back to
// paragraph packing when no boundary markers are present. It never fails:
// malformed input degrades to paragraph chunks.
type VerseChunker struct {
	maxChunkSize int
	rules        []BoundaryRule
	terms        *TermExtractor
}

const defaultMaxChunkSize = 1000

// NewVerseChunker creates a chunker with the given size cap in characters.
func NewVerseChunker(maxChunkSize int) *VerseChunker {
	if maxChunkSize <= 0 {
		maxChunkSize = defaultMaxChunkSize
	}
	return &VerseChunker{
		maxChunkSize: maxChunkSize,
		rules:        DefaultBoundaryRules(),
		terms:        NewTermExtractor(),
	}
}

// WithRules replaces the boundary rule table. The table is a config concern;
// chunking control flow does not depend on its contents.
func (c *VerseChunker) WithRules(rules []BoundaryRule) *VerseChunker {
	c.rules = rules
	return c
}

// Chunk turns raw text into an ordered chunk sequence for the source.
// Empty input yields no chunks.
func (c *VerseChunker) Chunk(sourceID, text string) []domain.Chunk {
	text = normalize(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	boundaries := c.findBoundaries(lines)
	if len(boundaries) == 0 {
		return c.chunkParagraphs(sourceID, text)
	}
	return c.chunkVerses(sourceID, lines, boundaries)
}

// normalize applies Unicode NFC, strips trailing horizontal whitespace from
// every line, collapses runs of blank lines to one, and collapses repeated
// horizontal whitespace. A line holding only spaces counts as blank, so
// "a\n \nb" separates paragraphs. Diacritics survive NFC untouched.
func normalize(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = hspaceRe.ReplaceAllString(text, " ")
	text = trailingRe.ReplaceAllString(text, "\n")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

var (
	hspaceRe   = regexp.MustCompile(`[ \t]{2,}`)
	trailingRe = regexp.MustCompile(`[ \t]+\n`)
	blankRunRe = regexp.MustCompile(`\n\n+`)
)

type boundary struct {
	line  int
	label string
}

func (c *VerseChunker) findBoundaries(lines []string) []boundary {
	var out []boundary
	for i, line := range lines {
		for _, rule := range c.rules {
			if m := rule.Pattern.FindStringSubmatch(line); m != nil {
				out = append(out, boundary{line: i, label: rule.Label(m)})
				break
			}
		}
	}
	return out
}

// chunkVerses accumulates lines between boundaries. A chunk closes when the
// next boundary starts or when appending a line would exceed the size cap;
// a cap split mid-verse continues under the same label, and a chunk spanning
// two labels is ranged as "start-end".
func (c *VerseChunker) chunkVerses(sourceID string, lines []string, bounds []boundary) []domain.Chunk {
	labelAt := make(map[int]string, len(bounds))
	for _, b := range bounds {
		labelAt[b.line] = b.label
	}

	var chunks []domain.Chunk
	var buf []string
	bufSize := 0
	startLabel, endLabel := "", ""
	seq := 0

	flush := func() {
		content := strings.TrimSpace(strings.Join(buf, "\n"))
		if content == "" {
			buf, bufSize = nil, 0
			return
		}
		vr := startLabel
		if endLabel != "" && endLabel != startLabel {
			vr = startLabel + "-" + endLabel
		}
		kind := domain.KindVerse
		if vr == "" {
			// preamble before the first boundary carries no verse label
			kind = domain.KindParagraph
		}
		chunks = append(chunks, c.build(sourceID, seq, content, vr, kind))
		seq++
		buf, bufSize = nil, 0
	}

	for i, line := range lines {
		if label, ok := labelAt[i]; ok && len(buf) > 0 {
			flush()
			startLabel, endLabel = label, label
		} else if ok {
			startLabel, endLabel = label, label
		}
		lineLen := len(line)
		if len(buf) > 0 {
			lineLen++ // joining newline
		}
		if len(buf) > 0 && bufSize+lineLen > c.maxChunkSize {
			carry := endLabel
			flush()
			startLabel, endLabel = carry, carry
		}
		buf = append(buf, line)
		bufSize += lineLen
		if label, ok := labelAt[i]; ok {
			endLabel = label
		}
	}
	flush()
	return chunks
}

// chunkParagraphs packs blank-line-delimited paragraphs greedily up to the
// size cap. A single paragraph over the cap is kept whole rather than split.
func (c *VerseChunker) chunkParagraphs(sourceID, text string) []domain.Chunk {
	paras := strings.Split(text, "\n\n")
	var chunks []domain.Chunk
	var buf []string
	bufSize := 0
	seq := 0

	flush := func() {
		if len(buf) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(buf, "\n\n"))
		if content != "" {
			chunks = append(chunks, c.build(sourceID, seq, content, "", domain.KindParagraph))
			seq++
		}
		buf, bufSize = nil, 0
	}

	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		add := len(p)
		if len(buf) > 0 {
			add += 2 // joining blank line
		}
		if len(buf) > 0 && bufSize+add > c.maxChunkSize {
			flush()
			add = len(p)
		}
		buf = append(buf, p)
		bufSize += add
	}
	flush()
	return chunks
}

func (c *VerseChunker) build(sourceID string, seq int, content, verseRange string, kind domain.ChunkKind) domain.Chunk {
	return domain.Chunk{
		Content:       content,
		ChunkID:       domain.ChunkID(sourceID, seq),
		SourceID:      sourceID,
		VerseRange:    verseRange,
		DetectedTerms: c.terms.Extract(content),
		Attrs: domain.Attributes{
			Kind:      kind,
			SizeChars: len(content),
			LineCount: strings.Count(content, "\n") + 1,
		},
	}
}
