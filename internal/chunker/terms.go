package chunker

import (
	"regexp"
	"sort"
	"strings"
)

// TermExtractor finds sacred vocabulary in chunk text: transliterated terms
// from a static word list plus any run of Devanagari script.
type TermExtractor struct {
	wordRe     *regexp.Regexp
	scriptRe   *regexp.Regexp
	vocabulary map[string]struct{}
}

// NewTermExtractor creates an extractor with the default Sanskrit vocabulary.
func NewTermExtractor() *TermExtractor {
	return &TermExtractor{
		wordRe:     regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		scriptRe:   regexp.MustCompile(`[\x{0900}-\x{097F}]+`),
		vocabulary: defaultVocabulary(),
	}
}

// Extract returns the deduplicated terms found in text. Matching against the
// word list is case-insensitive; extraction order is not significant.
func (t *TermExtractor) Extract(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range t.wordRe.FindAllString(text, -1) {
		lower := strings.ToLower(tok)
		if _, ok := t.vocabulary[lower]; !ok {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, lower)
	}
	for _, tok := range t.scriptRe.FindAllString(text, -1) {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

func defaultVocabulary() map[string]struct{} {
	words := []string{
		"ahimsa", "ananda", "arjuna", "asana", "atman", "avatar", "bhakti",
		"brahman", "buddhi", "chakra", "darshan", "dharma", "dhyana", "guna",
		"guru", "japa", "jnana", "karma", "krishna", "kundalini", "mantra",
		"maya", "moksha", "mukti", "nirvana", "om", "prakriti", "prana",
		"pranayama", "puja", "purusha", "samadhi", "samsara", "sannyasa",
		"satsang", "seva", "shakti", "shanti", "sutra", "swami", "tapas",
		"upanishad", "vairagya", "vedanta", "yajna", "yoga", "yogi",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
