package source

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	"forumsync/internal/fs"
	"forumsync/internal/importer"
)

// TarballSource downloads a gzip-compressed tar archive, as served by code
// hosts for a repository snapshot, and lists the regular files inside it.
type TarballSource struct {
	url    string
	token  string
	client *http.Client
	ignore *fs.IgnoreMatcher

	// stripComponents leading path elements are removed from every entry.
	// Code host archives wrap the tree in a single "<repo>-<ref>/" directory.
	stripComponents int
}

// TarballOption configures a TarballSource.
type TarballOption func(*TarballSource)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) TarballOption {
	return func(s *TarballSource) { s.client = c }
}

// WithToken sends the token as a bearer Authorization header.
func WithToken(token string) TarballOption {
	return func(s *TarballSource) { s.token = token }
}

// WithStripComponents sets how many leading path elements are dropped.
// Negative values are treated as zero.
func WithStripComponents(n int) TarballOption {
	return func(s *TarballSource) { s.stripComponents = max(n, 0) }
}

// NewTarballSource creates a source for the archive at url.
func NewTarballSource(url string, ignore []string, opts ...TarballOption) *TarballSource {
	s := &TarballSource{
		url:             url,
		client:          http.DefaultClient,
		ignore:          fs.NewIgnoreMatcher(ignore),
		stripComponents: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListFiles downloads and unpacks the archive.
func (s *TarballSource) ListFiles(ctx context.Context) ([]importer.SourceFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading archive: unexpected status %s", resp.Status)
	}

	files, err := s.readArchive(ctx, resp.Body)
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].RelativePath < files[j].RelativePath })
	return files, nil
}

func (s *TarballSource) readArchive(ctx context.Context, r io.Reader) ([]importer.SourceFile, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	var files []importer.SourceFile
	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		rel, ok := stripPath(hdr.Name, s.stripComponents)
		if !ok || s.ignore.MatchTree(rel) {
			continue
		}

		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", hdr.Name, err)
		}
		files = append(files, importer.SourceFile{RelativePath: rel, Content: content})
	}
	return files, nil
}

// stripPath cleans an archive entry name against a virtual root, so ".."
// elements cannot climb out of it, and drops its first n elements.
func stripPath(name string, n int) (string, bool) {
	clean := path.Clean("/" + name)
	if clean == "/" {
		return "", false
	}
	parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	n = max(n, 0)
	if len(parts) <= n {
		return "", false
	}
	return strings.Join(parts[n:], "/"), true
}

// Compile-time check that TarballSource implements importer.Source
var _ importer.Source = (*TarballSource)(nil)
