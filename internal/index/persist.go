package index

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"vedaquery/internal/domain"
)

// On-disk layout: <path>.vectors holds a fixed header followed by all
// normalized embeddings as little-endian float64s in insertion order;
// <path>.meta.json maps each position to chunk id, attributes, preview, and
// insert time. Restore requires both halves and verifies they agree.

const (
	vectorsSuffix = ".vectors"
	sidecarSuffix = ".meta.json"
	blobMagic     = uint32(0x56455156) // "VEQV"
	blobVersion   = uint32(1)
)

type sidecarFile struct {
	Version   int           `json:"version"`
	Dimension int           `json:"dimension"`
	Count     int           `json:"count"`
	Entries   []sidecarMeta `json:"entries"`
}

type sidecarMeta struct {
	ChunkID    string            `json:"chunk_id"`
	Attrs      domain.Attributes `json:"attributes"`
	Preview    string            `json:"preview,omitempty"`
	InsertedAt time.Time         `json:"inserted_at"`
}

// Persist writes the vector blob and metadata sidecar for the index under
// the given base path. Both files are written to temp names first and
// renamed into place, so a crash cannot leave a half-written pair behind.
func (ix *Index) Persist(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	side := sidecarFile{
		Version:   int(blobVersion),
		Dimension: ix.dimension,
		Count:     len(ix.entries),
		Entries:   make([]sidecarMeta, len(ix.entries)),
	}
	for i, e := range ix.entries {
		side.Entries[i] = sidecarMeta{
			ChunkID:    e.ChunkID,
			Attrs:      e.Attrs,
			Preview:    e.Preview,
			InsertedAt: e.InsertedAt,
		}
	}

	if err := writeVectors(path+vectorsSuffix, ix.dimension, ix.entries); err != nil {
		return err
	}
	data, err := json.MarshalIndent(side, "", "  ")
	if err != nil {
		return err
	}
	if err := atomicWrite(path+sidecarSuffix, data); err != nil {
		// drop the blob so a later restore fails loudly instead of pairing
		// fresh vectors with stale metadata
		_ = os.Remove(path + vectorsSuffix)
		return err
	}
	return nil
}

// Restore replaces the index contents from a persisted pair. The index
// dimension must match the persisted one. A pair where only one half exists,
// or where the halves disagree, fails with ErrPersistenceCorrupt and leaves
// the index unchanged; a path where nothing was persisted fails with
// os.ErrNotExist.
func (ix *Index) Restore(path string) error {
	_, sideErr := os.Stat(path + sidecarSuffix)
	_, vecErr := os.Stat(path + vectorsSuffix)
	if errors.Is(sideErr, os.ErrNotExist) && errors.Is(vecErr, os.ErrNotExist) {
		// nothing was ever persisted here; not a corruption
		return fmt.Errorf("%w: no persisted index at %s", os.ErrNotExist, path)
	}
	side, err := readSidecar(path + sidecarSuffix)
	if err != nil {
		return err
	}
	vectors, err := readVectors(path+vectorsSuffix, side.Dimension, side.Count)
	if err != nil {
		return err
	}
	if side.Dimension != ix.dimension {
		return fmt.Errorf("%w: persisted dimension %d, index expects %d",
			domain.ErrPersistenceCorrupt, side.Dimension, ix.dimension)
	}

	entries := make([]Entry, side.Count)
	byID := make(map[string]int, side.Count)
	for i, m := range side.Entries {
		if _, dup := byID[m.ChunkID]; dup {
			return fmt.Errorf("%w: duplicate chunk id %q in sidecar", domain.ErrPersistenceCorrupt, m.ChunkID)
		}
		entries[i] = Entry{
			ChunkID:    m.ChunkID,
			Embedding:  vectors[i],
			Attrs:      m.Attrs,
			Preview:    m.Preview,
			InsertedAt: m.InsertedAt,
		}
		byID[m.ChunkID] = i
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = entries
	ix.byID = byID
	return nil
}

func writeVectors(path string, dimension int, entries []Entry) error {
	buf := make([]byte, 16+len(entries)*dimension*8)
	binary.LittleEndian.PutUint32(buf[0:4], blobMagic)
	binary.LittleEndian.PutUint32(buf[4:8], blobVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(dimension))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(entries)))
	off := 16
	for _, e := range entries {
		for _, v := range e.Embedding {
			binary.LittleEndian.PutUint64(buf[off:off+8], math.Float64bits(v))
			off += 8
		}
	}
	return atomicWrite(path, buf)
}

func readVectors(path string, dimension, count int) ([][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: vector blob missing: %s", domain.ErrPersistenceCorrupt, path)
		}
		return nil, err
	}
	if len(data) < 16 {
		return nil, fmt.Errorf("%w: vector blob truncated", domain.ErrPersistenceCorrupt)
	}
	if binary.LittleEndian.Uint32(data[0:4]) != blobMagic {
		return nil, fmt.Errorf("%w: bad vector blob magic", domain.ErrPersistenceCorrupt)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != blobVersion {
		return nil, fmt.Errorf("%w: unsupported vector blob version %d", domain.ErrPersistenceCorrupt, v)
	}
	blobDim := int(binary.LittleEndian.Uint32(data[8:12]))
	blobCount := int(binary.LittleEndian.Uint32(data[12:16]))
	if blobDim != dimension || blobCount != count {
		return nil, fmt.Errorf("%w: blob holds %dx%d, sidecar says %dx%d",
			domain.ErrPersistenceCorrupt, blobCount, blobDim, count, dimension)
	}
	if len(data) != 16+count*dimension*8 {
		return nil, fmt.Errorf("%w: vector blob size mismatch", domain.ErrPersistenceCorrupt)
	}
	vectors := make([][]float64, count)
	off := 16
	for i := range vectors {
		vec := make([]float64, dimension)
		for j := range vec {
			vec[j] = math.Float64frombits(binary.LittleEndian.Uint64(data[off : off+8]))
			off += 8
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func readSidecar(path string) (*sidecarFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: metadata sidecar missing: %s", domain.ErrPersistenceCorrupt, path)
		}
		return nil, err
	}
	var side sidecarFile
	if err := json.Unmarshal(data, &side); err != nil {
		return nil, fmt.Errorf("%w: unreadable sidecar: %v", domain.ErrPersistenceCorrupt, err)
	}
	if side.Version != int(blobVersion) {
		return nil, fmt.Errorf("%w: unsupported sidecar version %d", domain.ErrPersistenceCorrupt, side.Version)
	}
	if side.Count != len(side.Entries) {
		return nil, fmt.Errorf("%w: sidecar count %d but %d entries",
			domain.ErrPersistenceCorrupt, side.Count, len(side.Entries))
	}
	if side.Dimension <= 0 {
		return nil, fmt.Errorf("%w: sidecar dimension %d", domain.ErrPersistenceCorrupt, side.Dimension)
	}
	return &side, nil
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
