package source

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"forumsync/internal/importer"
)

func TestMemorySource(t *testing.T) {
	src := NewMemorySource()
	src.Put(`docs\b.md`, []byte("b"))
	src.Put("docs/a.md", []byte("a"))
	src.Put("tmp.md", []byte("tmp"))
	src.Remove("tmp.md")

	files, err := src.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	want := []importer.SourceFile{
		{RelativePath: "docs/a.md", Content: []byte("a")},
		{RelativePath: "docs/b.md", Content: []byte("b")},
	}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("ListFiles() mismatch (-want +got):\n%s", diff)
	}

	// Returned content is a copy.
	files[0].Content[0] = 'z'
	again, _ := src.ListFiles(context.Background())
	if string(again[0].Content) != "a" {
		t.Errorf("content = %q, want %q", again[0].Content, "a")
	}
}
