package embedding

import "context"

// Embedder converts free text into a fixed-length numeric vector.
// Dimension may report 0 until the first successful Embed for remote
// implementations that discover it lazily.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}
