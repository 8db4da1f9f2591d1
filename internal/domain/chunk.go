package domain

import "fmt"

// ChunkKind tells how a chunk was delimited during splitting.
type ChunkKind string

const (
	KindVerse     ChunkKind = "verse"
	KindParagraph ChunkKind = "paragraph"
)

// IsValid checks if the ChunkKind is a known value.
func (k ChunkKind) IsValid() bool {
	return k == KindVerse || k == KindParagraph
}

// Attributes is the closed per-chunk metadata record persisted alongside
// embeddings. Application-specific fields go into Extra rather than new
// top-level fields, so the persistence schema stays stable.
type Attributes struct {
	Kind      ChunkKind         `json:"kind"`
	SizeChars int               `json:"size_chars"`
	LineCount int               `json:"line_count"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Chunk is a bounded unit of source text prepared for embedding and
// retrieval. Chunks are immutable after construction.
type Chunk struct {
	Content       string
	ChunkID       string
	SourceID      string
	VerseRange    string // empty when chunking fell back to paragraph mode
	DetectedTerms []string
	Attrs         Attributes
}

// ChunkID formats the deterministic identifier for the n-th chunk of a source.
func ChunkID(sourceID string, seq int) string {
	return fmt.Sprintf("%s_%04d", sourceID, seq)
}

// QueryResult is one ranked hit from a similarity search.
type QueryResult struct {
	ChunkID    string
	Similarity float64 // cosine, in [-1, 1]
	Attrs      Attributes
	Preview    string
}

// IndexStats reports the current shape of a vector index.
type IndexStats struct {
	Count       int
	Dimension   int
	StorageSize int // bytes held by embeddings
}
