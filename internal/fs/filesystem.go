package fs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"forumsync/internal/importer"
)

// IgnoreFileName is read from the root of a source tree for extra patterns.
const IgnoreFileName = ".fsyncignore"

// Source lists the files of a local directory tree.
type Source struct {
	root   string
	ignore *IgnoreMatcher
}

// NewSource validates root and returns a Source over it. Patterns from the
// tree's .fsyncignore file are added to the given ones.
func NewSource(root string, patterns []string) (*Source, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat source root: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlinks not supported: %s", absRoot)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root is not a directory: %s", absRoot)
	}

	fromFile, err := ParseIgnoreFile(filepath.Join(absRoot, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	all := append(append([]string(nil), patterns...), fromFile...)

	return &Source{root: absRoot, ignore: NewIgnoreMatcher(all)}, nil
}

// Root returns the absolute path of the tree.
func (s *Source) Root() string {
	return s.root
}

// Ignored reports whether a path relative to the root is excluded, either
// itself or through one of its parent directories.
func (s *Source) Ignored(relativePath string) bool {
	return s.ignore.MatchTree(relativePath)
}

// ListFiles reads every regular file under the root that is not ignored.
// Ignored directories are not descended into. Symlinks, devices and other
// special files are skipped. Paths are returned with forward slashes, sorted.
func (s *Source) ListFiles(ctx context.Context) ([]importer.SourceFile, error) {
	var files []importer.SourceFile

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == s.root {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", p, err)
		}
		if s.ignore.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		content, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}
		files = append(files, importer.SourceFile{
			RelativePath: filepath.ToSlash(rel),
			Content:      content,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelativePath < files[j].RelativePath })
	return files, nil
}

// Compile-time check that Source implements importer.Source
var _ importer.Source = (*Source)(nil)
