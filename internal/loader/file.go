package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"vedaquery/internal/domain"
)

// FileSource loads documents from a directory. The source id is the file
// name without extension; `.txt` and `.md` files are recognized.
type FileSource struct {
	root string
}

var extensions = []string{".txt", ".md"}

// NewFileSource creates a source rooted at the given directory.
func NewFileSource(root string) *FileSource {
	return &FileSource{root: root}
}

// Load reads the document for sourceID. An unknown id fails with ErrNotFound
// and non-UTF-8 content with ErrDecoding.
func (s *FileSource) Load(ctx context.Context, sourceID string) (string, map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	path, err := s.resolve(sourceID)
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", domain.ErrNotFound, sourceID)
		}
		return "", nil, err
	}
	if !utf8.Valid(data) {
		return "", nil, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrDecoding, path)
	}
	meta := map[string]string{
		"title": titleFromID(sourceID),
		"path":  path,
	}
	return string(data), meta, nil
}

// List returns the source ids available under the root directory.
func (s *FileSource) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range extensions {
			if ext == want {
				ids = append(ids, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
				break
			}
		}
	}
	return ids, nil
}

func (s *FileSource) resolve(sourceID string) (string, error) {
	if sourceID == "" || strings.ContainsAny(sourceID, `/\`) {
		return "", fmt.Errorf("%w: bad source id %q", domain.ErrInvalidArgument, sourceID)
	}
	for _, ext := range extensions {
		path := filepath.Join(s.root, sourceID+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrNotFound, sourceID)
}

// titleFromID turns "bhagavad_gita" into "Bhagavad Gita".
func titleFromID(sourceID string) string {
	words := strings.FieldsFunc(sourceID, func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
