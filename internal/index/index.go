package index

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"vedaquery/internal/domain"
)

// Entry is one chunk offered to the index. The embedding is copied and
// L2-normalized on insert; Preview is a short excerpt kept for audit and as
// a fallback when the caller's content cache is gone.
type Entry struct {
	ChunkID    string
	Embedding  []float64
	Attrs      domain.Attributes
	Preview    string
	InsertedAt time.Time
}

// Filter narrows search results by chunk attributes. A nil Filter matches
// everything.
type Filter func(attrs domain.Attributes) bool

// Index is an in-memory vector index over L2-normalized embeddings.
// Similarity is the inner product, which equals cosine similarity on unit
// vectors. Search holds the read lock; every mutation holds the write lock,
// so concurrent searches proceed in parallel.
type Index struct {
	mu        sync.RWMutex
	dimension int
	entries   []Entry        // insertion order
	byID      map[string]int // chunk id -> position, maintained with every mutation
}

// New creates an empty index for embeddings of the given dimension.
func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", domain.ErrInvalidArgument, dimension)
	}
	return &Index{dimension: dimension, byID: make(map[string]int)}, nil
}

// Add inserts a batch of entries. The whole batch is validated before any
// mutation: a dimension mismatch, zero vector, or duplicate id (without
// replace) fails the batch and leaves the index unchanged. Returns the
// number of entries inserted.
func (ix *Index) Add(entries []Entry, replace bool) (int, error) {
	staged, err := ix.stage(entries)
	if err != nil {
		return 0, err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.checkDuplicates(staged, replace); err != nil {
		return 0, err
	}
	ix.applyLocked(staged, replace)
	return len(staged), nil
}

// ReplaceSource atomically removes every entry whose chunk id belongs to
// sourceID and inserts the staged batch. Validation happens before the old
// entries are touched, so a bad batch leaves the source's prior state intact.
func (ix *Index) ReplaceSource(sourceID string, entries []Entry) (int, error) {
	staged, err := ix.stage(entries)
	if err != nil {
		return 0, err
	}
	prefix := sourceID + "_"
	for _, e := range staged {
		if !strings.HasPrefix(e.ChunkID, prefix) {
			return 0, fmt.Errorf("%w: chunk %q does not belong to source %q",
				domain.ErrInvalidArgument, e.ChunkID, sourceID)
		}
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.deleteByPrefixLocked(prefix)
	ix.applyLocked(staged, false)
	return len(staged), nil
}

// DeleteBySource removes all entries of a source and returns how many.
func (ix *Index) DeleteBySource(sourceID string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.deleteByPrefixLocked(sourceID + "_")
}

// stage validates and normalizes a batch without touching index state.
func (ix *Index) stage(entries []Entry) ([]Entry, error) {
	staged := make([]Entry, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.ChunkID == "" {
			return nil, fmt.Errorf("%w: empty chunk id at position %d", domain.ErrInvalidArgument, i)
		}
		if _, dup := seen[e.ChunkID]; dup {
			return nil, fmt.Errorf("%w: %q repeated within batch", domain.ErrDuplicateKey, e.ChunkID)
		}
		seen[e.ChunkID] = struct{}{}
		if len(e.Embedding) != ix.dimension {
			return nil, fmt.Errorf("%w: chunk %q has dimension %d, index expects %d",
				domain.ErrDimensionMismatch, e.ChunkID, len(e.Embedding), ix.dimension)
		}
		vec, ok := normalized(e.Embedding)
		if !ok {
			return nil, fmt.Errorf("%w: chunk %q", domain.ErrZeroVector, e.ChunkID)
		}
		e.Embedding = vec
		if e.InsertedAt.IsZero() {
			e.InsertedAt = time.Now().UTC()
		}
		staged[i] = e
	}
	return staged, nil
}

func (ix *Index) checkDuplicates(staged []Entry, replace bool) error {
	if replace {
		return nil
	}
	for _, e := range staged {
		if _, exists := ix.byID[e.ChunkID]; exists {
			return fmt.Errorf("%w: %q", domain.ErrDuplicateKey, e.ChunkID)
		}
	}
	return nil
}

func (ix *Index) applyLocked(staged []Entry, replace bool) {
	for _, e := range staged {
		if pos, exists := ix.byID[e.ChunkID]; replace && exists {
			ix.entries[pos] = e
			continue
		}
		ix.byID[e.ChunkID] = len(ix.entries)
		ix.entries = append(ix.entries, e)
	}
}

// deleteByPrefixLocked compacts the entry slice and rebuilds positions for
// everything that moved. Caller holds the write lock.
func (ix *Index) deleteByPrefixLocked(prefix string) int {
	kept := ix.entries[:0]
	removed := 0
	for _, e := range ix.entries {
		if strings.HasPrefix(e.ChunkID, prefix) {
			delete(ix.byID, e.ChunkID)
			removed++
			continue
		}
		ix.byID[e.ChunkID] = len(kept)
		kept = append(kept, e)
	}
	for i := len(kept); i < len(ix.entries); i++ {
		ix.entries[i] = Entry{}
	}
	ix.entries = kept
	return removed
}

// Search returns up to k results ordered by similarity descending, ties
// broken by insertion order. A nil filter ranks everything; with a filter
// the full ranked list is filtered post-hoc, so fewer than k results means
// fewer than k matching entries exist. An empty index yields an empty result.
func (ix *Index) Search(query []float64, k int, filter Filter) ([]domain.QueryResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k = %d", domain.ErrInvalidArgument, k)
	}
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d",
			domain.ErrDimensionMismatch, len(query), ix.dimension)
	}
	q, ok := normalized(query)
	if !ok {
		return nil, fmt.Errorf("%w: query", domain.ErrZeroVector)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if len(ix.entries) == 0 {
		return nil, nil
	}

	type scored struct {
		pos int
		sim float64
	}
	ranked := make([]scored, len(ix.entries))
	for i := range ix.entries {
		ranked[i] = scored{pos: i, sim: dot(ix.entries[i].Embedding, q)}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].sim != ranked[b].sim {
			return ranked[a].sim > ranked[b].sim
		}
		return ranked[a].pos < ranked[b].pos
	})

	out := make([]domain.QueryResult, 0, min(k, len(ranked)))
	for _, s := range ranked {
		e := ix.entries[s.pos]
		if filter != nil && !filter(e.Attrs) {
			continue
		}
		out = append(out, domain.QueryResult{
			ChunkID:    e.ChunkID,
			Similarity: s.sim,
			Attrs:      e.Attrs,
			Preview:    e.Preview,
		})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Get returns the stored entry for a chunk id.
func (ix *Index) Get(chunkID string) (Entry, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	pos, ok := ix.byID[chunkID]
	if !ok {
		return Entry{}, fmt.Errorf("%w: chunk %q", domain.ErrNotFound, chunkID)
	}
	return ix.entries[pos], nil
}

// Clear drops every entry, keeping the dimension.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = nil
	ix.byID = make(map[string]int)
}

// Len reports the number of stored entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Stats reports entry count, dimension, and embedding storage size in bytes.
func (ix *Index) Stats() domain.IndexStats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return domain.IndexStats{
		Count:       len(ix.entries),
		Dimension:   ix.dimension,
		StorageSize: len(ix.entries) * ix.dimension * 8,
	}
}

// normalized returns an L2-normalized copy, or ok=false for a zero vector.
func normalized(vec []float64) ([]float64, bool) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return nil, false
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = v * inv
	}
	return out, true
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
