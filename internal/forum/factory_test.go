package forum

import (
	"testing"

	"forumsync/internal/config"
)

func TestNewForumFromConfig(t *testing.T) {
	t.Run("http", func(t *testing.T) {
		f, err := NewForumFromConfig(config.ForumConfig{Type: "http", URL: "https://forum.example.com"}, "tok")
		if err != nil {
			t.Fatalf("NewForumFromConfig() error = %v", err)
		}
		if _, ok := f.(*HTTPForum); !ok {
			t.Errorf("NewForumFromConfig() = %T, want *HTTPForum", f)
		}
	})

	t.Run("http without token", func(t *testing.T) {
		if _, err := NewForumFromConfig(config.ForumConfig{Type: "http", URL: "https://forum.example.com"}, ""); err == nil {
			t.Error("NewForumFromConfig() expected error without token")
		}
	})

	t.Run("memory", func(t *testing.T) {
		f, err := NewForumFromConfig(config.ForumConfig{Type: "memory"}, "")
		if err != nil {
			t.Fatalf("NewForumFromConfig() error = %v", err)
		}
		if _, ok := f.(*MemoryForum); !ok {
			t.Errorf("NewForumFromConfig() = %T, want *MemoryForum", f)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := NewForumFromConfig(config.ForumConfig{Type: "nntp"}, ""); err == nil {
			t.Error("NewForumFromConfig() expected error for unknown type")
		}
	})
}
