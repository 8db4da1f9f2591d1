package retriever

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vedaquery/internal/domain"
	"vedaquery/internal/embedding"
	"vedaquery/internal/index"
)

// Extra attribute keys carried into the index so citations survive content
// cache eviction.
const (
	attrSourceTitle   = "source_title"
	attrVerseRange    = "verse_range"
	attrSourceID      = "source_id"
	attrDetectedTerms = "detected_terms"
)

const (
	previewChars     = 160
	embedBatchSize   = 16
	embedConcurrency = 4
)

// Result is one answer to a retrieval query: full chunk content when the
// cache still holds it, the indexed preview otherwise, plus a human-readable
// citation assembled from source title and verse range.
type Result struct {
	ChunkID    string
	Content    string
	Similarity float64
	Attrs      domain.Attributes
	Citation   string
}

// Statistics reports the orchestrator's cache and index state.
type Statistics struct {
	CachedSources int
	CachedChunks  int
	Index         domain.IndexStats
}

// Service composes chunker, vector index, document source, and embedder into
// the document-to-answer workflow. All embedding happens before the index
// write section is entered, so the lock is held only for the structural
// insert.
type Service struct {
	chunker  domain.Chunker
	index    *index.Index
	source   domain.DocumentSource
	embedder embedding.Embedder
	log      *zap.Logger

	chunks *gocache.Cache // chunk id -> domain.Chunk

	mu      sync.Mutex
	sources map[string]sourceState
}

type sourceState struct {
	chunkIDs []string
}

// New creates a retrieval service. A nil logger is replaced with a no-op one.
func New(ch domain.Chunker, ix *index.Index, src domain.DocumentSource, emb embedding.Embedder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		chunker:  ch,
		index:    ix,
		source:   src,
		embedder: emb,
		log:      log,
		chunks:   gocache.New(gocache.NoExpiration, 10*time.Minute),
		sources:  make(map[string]sourceState),
	}
}

// Ingest loads, chunks, embeds, and indexes one source. A source already
// ingested is a no-op unless force is set; a forced re-ingest fully replaces
// the source's chunks and index entries. Any failure before the index swap
// leaves prior state for the source untouched.
func (s *Service) Ingest(ctx context.Context, sourceID string, force bool) (int, error) {
	s.mu.Lock()
	if st, ok := s.sources[sourceID]; ok && !force {
		s.mu.Unlock()
		return len(st.chunkIDs), nil
	}
	s.mu.Unlock()

	text, meta, err := s.source.Load(ctx, sourceID)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", domain.ErrSourceLoadFailed, sourceID, err)
	}
	title := meta["title"]
	if title == "" {
		title = sourceID
	}

	chunks := s.chunker.Chunk(sourceID, text)
	vectors, err := s.embedAll(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed source %s: %w", sourceID, err)
	}

	entries := make([]index.Entry, len(chunks))
	for i, ch := range chunks {
		attrs := ch.Attrs
		attrs.Extra = extendExtra(attrs.Extra, map[string]string{
			attrSourceID:      sourceID,
			attrSourceTitle:   title,
			attrVerseRange:    ch.VerseRange,
			attrDetectedTerms: strings.Join(ch.DetectedTerms, ", "),
		})
		entries[i] = index.Entry{
			ChunkID:   ch.ChunkID,
			Embedding: vectors[i],
			Attrs:     attrs,
			Preview:   preview(ch.Content),
		}
	}
	if _, err := s.index.ReplaceSource(sourceID, entries); err != nil {
		return 0, err
	}

	s.mu.Lock()
	if prev, ok := s.sources[sourceID]; ok {
		for _, id := range prev.chunkIDs {
			s.chunks.Delete(id)
		}
	}
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ChunkID
		s.chunks.Set(ch.ChunkID, ch, gocache.NoExpiration)
	}
	s.sources[sourceID] = sourceState{chunkIDs: ids}
	s.mu.Unlock()

	s.log.Info("source ingested",
		zap.String("source", sourceID),
		zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// embedAll computes embeddings for every chunk before any index mutation,
// batching requests and bounding fan-out. A failed batch fails the whole
// ingestion.
func (s *Service) embedAll(ctx context.Context, chunks []domain.Chunk) ([][]float64, error) {
	vectors := make([][]float64, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for start := 0; start < len(chunks); start += embedBatchSize {
		start, end := start, min(start+embedBatchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, end-start)
			for i := start; i < end; i++ {
				texts[i-start] = chunks[i].Content
			}
			vecs, err := s.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return err
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
			}
			copy(vectors[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Query embeds the text, searches the index, and joins hits back to full
// chunk content. An embedding failure is returned as an error, which keeps
// it distinguishable from a legitimately empty result.
func (s *Service) Query(ctx context.Context, text string, k int, filter index.Filter) ([]Result, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.index.Search(vec, k, filter)
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(hits))
	for i, h := range hits {
		content := h.Preview
		if v, ok := s.chunks.Get(h.ChunkID); ok {
			content = v.(domain.Chunk).Content
		}
		results[i] = Result{
			ChunkID:    h.ChunkID,
			Content:    content,
			Similarity: h.Similarity,
			Attrs:      h.Attrs,
			Citation:   citation(h.Attrs),
		}
	}
	s.log.Debug("query served",
		zap.String("query", text),
		zap.Int("hits", len(results)))
	return results, nil
}

// Statistics reports cached source and chunk counts plus index stats.
func (s *Service) Statistics() Statistics {
	s.mu.Lock()
	sources := len(s.sources)
	s.mu.Unlock()
	return Statistics{
		CachedSources: sources,
		CachedChunks:  s.chunks.ItemCount(),
		Index:         s.index.Stats(),
	}
}

// ResetCache drops all cached chunk content and source records. Index
// entries are untouched: queries keep working from previews and citations,
// only full-content lookup degrades until sources are re-ingested.
func (s *Service) ResetCache() {
	s.mu.Lock()
	s.sources = make(map[string]sourceState)
	s.mu.Unlock()
	s.chunks.Flush()
}

// citation builds "Title 2.47" from the indexed attributes, falling back to
// the title alone when no verse range was detected.
func citation(attrs domain.Attributes) string {
	title := attrs.Extra[attrSourceTitle]
	if title == "" {
		title = attrs.Extra[attrSourceID]
	}
	vr := attrs.Extra[attrVerseRange]
	switch {
	case title == "" && vr == "":
		return ""
	case vr == "":
		return title
	case title == "":
		return vr
	default:
		return title + " " + vr
	}
}

func preview(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= previewChars {
		return content
	}
	return string(runes[:previewChars]) + "…"
}

func extendExtra(extra, more map[string]string) map[string]string {
	out := make(map[string]string, len(extra)+len(more))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range more {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
