package domain

import "context"

// DocumentSource supplies raw text and metadata for a logical source id.
// Implementations may hit the filesystem or the network. Load reports an
// unknown id as ErrNotFound and undecodable bytes as ErrDecoding.
type DocumentSource interface {
	Load(ctx context.Context, sourceID string) (text string, metadata map[string]string, err error)
}

// Chunker splits raw text into ordered retrievable chunks.
type Chunker interface {
	Chunk(sourceID, text string) []Chunk
}
