package source

import (
	"context"
	"sort"
	"sync"

	"forumsync/internal/importer"
)

// MemorySource is an in-memory implementation of importer.Source, useful for
// tests and dry runs. This implementation is safe for concurrent use.
type MemorySource struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemorySource creates an empty source.
func NewMemorySource() *MemorySource {
	return &MemorySource{files: make(map[string][]byte)}
}

// Put adds or replaces a file.
func (m *MemorySource) Put(relativePath string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[importer.NormalizePath(relativePath)] = append([]byte(nil), content...)
}

// Remove deletes a file.
func (m *MemorySource) Remove(relativePath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, importer.NormalizePath(relativePath))
}

// ListFiles returns copies of all files sorted by path.
func (m *MemorySource) ListFiles(ctx context.Context) ([]importer.SourceFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]importer.SourceFile, 0, len(m.files))
	for p, content := range m.files {
		files = append(files, importer.SourceFile{
			RelativePath: p,
			Content:      append([]byte(nil), content...),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].RelativePath < files[j].RelativePath })
	return files, nil
}

// Compile-time check that MemorySource implements importer.Source
var _ importer.Source = (*MemorySource)(nil)
