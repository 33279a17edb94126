package forum

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"forumsync/internal/importer"
)

func TestMemoryForum_Categories(t *testing.T) {
	ctx := context.Background()
	f := NewMemoryForum()

	docs, err := f.CreateCategory(ctx, "Docs", importer.RootCategoryID)
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	guides, err := f.CreateCategory(ctx, "Guides", docs)
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}

	root, err := f.ListCategories(ctx, importer.RootCategoryID)
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	want := []importer.Category{{ID: docs, Name: "Docs", ParentID: importer.RootCategoryID}}
	if diff := cmp.Diff(want, root); diff != "" {
		t.Errorf("ListCategories(root) mismatch (-want +got):\n%s", diff)
	}

	children, err := f.ListCategories(ctx, docs)
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	want = []importer.Category{{ID: guides, Name: "Guides", ParentID: docs}}
	if diff := cmp.Diff(want, children); diff != "" {
		t.Errorf("ListCategories(docs) mismatch (-want +got):\n%s", diff)
	}

	if _, err := f.CreateCategory(ctx, "Orphan", 999); err == nil {
		t.Error("CreateCategory() with unknown parent expected error")
	}
}

func TestMemoryForum_TopicLifecycle(t *testing.T) {
	ctx := context.Background()
	f := NewMemoryForum()
	cid, _ := f.CreateCategory(ctx, "Docs", importer.RootCategoryID)

	created, err := f.CreateTopic(ctx, importer.NewTopic{
		CategoryID: cid,
		Title:      "Read Me.md",
		Content:    "hello",
		Tags:       []string{"docs", "File-readme_md", "docs"},
		CustomData: map[string]any{"contentHash": "abc", "chunkCount": 1},
	})
	if err != nil {
		t.Fatalf("CreateTopic() error = %v", err)
	}
	if created.Slug != "read-me-md" {
		t.Errorf("Slug = %q, want %q", created.Slug, "read-me-md")
	}

	t.Run("find by tag in category", func(t *testing.T) {
		got, err := f.FindTopicByTag(ctx, "file-readme_md", cid)
		if err != nil {
			t.Fatalf("FindTopicByTag() error = %v", err)
		}
		if got == nil {
			t.Fatal("FindTopicByTag() = nil, want topic")
		}
		if got.ID != created.ID || got.MainPostID != created.MainPostID {
			t.Errorf("FindTopicByTag() = %+v, want id %d main post %d", got, created.ID, created.MainPostID)
		}
		if diff := cmp.Diff([]string{"docs", "file-readme_md"}, got.Tags); diff != "" {
			t.Errorf("Tags mismatch (-want +got):\n%s", diff)
		}
		// Numbers come back as float64 like a decoded JSON response.
		if got.CustomData["chunkCount"] != float64(1) {
			t.Errorf("chunkCount = %#v, want float64(1)", got.CustomData["chunkCount"])
		}
	})

	t.Run("tag lookup is scoped by category", func(t *testing.T) {
		other, _ := f.CreateCategory(ctx, "Other", importer.RootCategoryID)
		got, err := f.FindTopicByTag(ctx, "file-readme_md", other)
		if err != nil {
			t.Fatalf("FindTopicByTag() error = %v", err)
		}
		if got != nil {
			t.Errorf("FindTopicByTag() = %+v, want nil", got)
		}
	})

	t.Run("reply update and metadata", func(t *testing.T) {
		pid, err := f.CreateReply(ctx, importer.NewReply{TopicID: created.ID, Content: "part two"})
		if err != nil {
			t.Fatalf("CreateReply() error = %v", err)
		}
		if err := f.UpdatePost(ctx, pid, "part 2"); err != nil {
			t.Fatalf("UpdatePost() error = %v", err)
		}
		if err := f.UpdateTopicMetadata(ctx, created.ID, map[string]any{"contentHash": "def"}); err != nil {
			t.Fatalf("UpdateTopicMetadata() error = %v", err)
		}

		topic, ok := f.Topic(created.ID)
		if !ok {
			t.Fatal("Topic() not found")
		}
		if diff := cmp.Diff([]string{"hello", "part 2"}, topic.Posts); diff != "" {
			t.Errorf("Posts mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(map[string]any{"contentHash": "def"}, topic.CustomData); diff != "" {
			t.Errorf("CustomData mismatch (-want +got):\n%s", diff)
		}

		found, err := f.FindTopicByTag(ctx, "file-readme_md", cid)
		if err != nil {
			t.Fatal(err)
		}
		if found.PostCount != 2 {
			t.Errorf("PostCount = %d, want 2", found.PostCount)
		}
	})

	t.Run("unknown ids", func(t *testing.T) {
		if err := f.UpdatePost(ctx, 12345, "x"); err == nil {
			t.Error("UpdatePost() expected error for unknown post")
		}
		if err := f.UpdateTopicMetadata(ctx, 12345, nil); err == nil {
			t.Error("UpdateTopicMetadata() expected error for unknown topic")
		}
		if _, err := f.CreateReply(ctx, importer.NewReply{TopicID: 12345}); err == nil {
			t.Error("CreateReply() expected error for unknown topic")
		}
		if _, err := f.CreateTopic(ctx, importer.NewTopic{CategoryID: 12345, Title: "x"}); err == nil {
			t.Error("CreateTopic() expected error for unknown category")
		}
	})
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"setup.md", "setup-md"},
		{"  Spaces  ", "spaces"},
		{"a--b", "a-b"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
