package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"forumsync/internal/importer"
)

// MemoryForum is an in-memory implementation of importer.Forum.
// Custom data is stored through a JSON round trip so callers see the same
// loosely typed values a real forum returns. Safe for concurrent use.
type MemoryForum struct {
	mu         sync.RWMutex
	nextID     int
	categories map[int]importer.Category
	topics     map[int]*memoryTopic
	posts      map[int]*memoryPost
}

type memoryTopic struct {
	id         int
	categoryID int
	title      string
	slug       string
	tags       []string
	customData []byte
	postIDs    []int
}

type memoryPost struct {
	id       int
	topicID  int
	authorID int
	content  string
}

// MemoryTopic is a read-only view of a stored topic.
type MemoryTopic struct {
	ID         int
	CategoryID int
	Title      string
	Slug       string
	Tags       []string
	CustomData map[string]any
	Posts      []string
}

// NewMemoryForum creates an empty forum.
func NewMemoryForum() *MemoryForum {
	return &MemoryForum{
		categories: make(map[int]importer.Category),
		topics:     make(map[int]*memoryTopic),
		posts:      make(map[int]*memoryPost),
	}
}

func (m *MemoryForum) id() int {
	m.nextID++
	return m.nextID
}

// ListCategories returns the children of parentID ordered by id.
func (m *MemoryForum) ListCategories(_ context.Context, parentID int) ([]importer.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []importer.Category
	for _, c := range m.categories {
		if c.ParentID == parentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateCategory adds a category. Sibling names are not checked for
// uniqueness, matching a real forum.
func (m *MemoryForum) CreateCategory(_ context.Context, name string, parentID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if parentID != importer.RootCategoryID {
		if _, ok := m.categories[parentID]; !ok {
			return 0, fmt.Errorf("parent category not found: %d", parentID)
		}
	}
	id := m.id()
	m.categories[id] = importer.Category{ID: id, Name: name, ParentID: parentID}
	return id, nil
}

// FindTopicByTag returns the oldest topic in categoryID carrying tag.
func (m *MemoryForum) FindTopicByTag(_ context.Context, tag string, categoryID int) (*importer.RemoteTopic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *memoryTopic
	for _, t := range m.topics {
		if t.categoryID != categoryID || !containsTag(t.tags, tag) {
			continue
		}
		if found == nil || t.id < found.id {
			found = t
		}
	}
	if found == nil {
		return nil, nil
	}

	data, err := decodeCustomData(found.customData)
	if err != nil {
		return nil, err
	}
	return &importer.RemoteTopic{
		ID:         found.id,
		Slug:       found.slug,
		MainPostID: found.postIDs[0],
		Tags:       append([]string(nil), found.tags...),
		CustomData: data,
		PostCount:  len(found.postIDs),
	}, nil
}

// CreateTopic stores a topic and its main post.
func (m *MemoryForum) CreateTopic(_ context.Context, t importer.NewTopic) (*importer.CreatedTopic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[t.CategoryID]; !ok {
		return nil, fmt.Errorf("category not found: %d", t.CategoryID)
	}
	raw, err := json.Marshal(t.CustomData)
	if err != nil {
		return nil, fmt.Errorf("encoding custom data: %w", err)
	}

	topic := &memoryTopic{
		id:         m.id(),
		categoryID: t.CategoryID,
		title:      t.Title,
		slug:       Slugify(t.Title),
		tags:       normalizeTags(t.Tags),
		customData: raw,
	}
	post := &memoryPost{id: m.id(), topicID: topic.id, authorID: t.AuthorID, content: t.Content}
	topic.postIDs = []int{post.id}
	m.topics[topic.id] = topic
	m.posts[post.id] = post

	return &importer.CreatedTopic{ID: topic.id, Slug: topic.slug, MainPostID: post.id}, nil
}

// UpdatePost replaces a post's content.
func (m *MemoryForum) UpdatePost(_ context.Context, postID int, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[postID]
	if !ok {
		return fmt.Errorf("post not found: %d", postID)
	}
	p.content = content
	return nil
}

// UpdateTopicMetadata replaces a topic's custom data.
func (m *MemoryForum) UpdateTopicMetadata(_ context.Context, topicID int, customData map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.topics[topicID]
	if !ok {
		return fmt.Errorf("topic not found: %d", topicID)
	}
	raw, err := json.Marshal(customData)
	if err != nil {
		return fmt.Errorf("encoding custom data: %w", err)
	}
	t.customData = raw
	return nil
}

// CreateReply appends a post to a topic.
func (m *MemoryForum) CreateReply(_ context.Context, r importer.NewReply) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.topics[r.TopicID]
	if !ok {
		return 0, fmt.Errorf("topic not found: %d", r.TopicID)
	}
	p := &memoryPost{id: m.id(), topicID: t.id, authorID: r.AuthorID, content: r.Content}
	m.posts[p.id] = p
	t.postIDs = append(t.postIDs, p.id)
	return p.id, nil
}

// Topic returns a snapshot of a stored topic.
func (m *MemoryForum) Topic(id int) (*MemoryTopic, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.topics[id]
	if !ok {
		return nil, false
	}
	data, _ := decodeCustomData(t.customData)
	posts := make([]string, len(t.postIDs))
	for i, pid := range t.postIDs {
		posts[i] = m.posts[pid].content
	}
	return &MemoryTopic{
		ID:         t.id,
		CategoryID: t.categoryID,
		Title:      t.title,
		Slug:       t.slug,
		Tags:       append([]string(nil), t.tags...),
		CustomData: data,
		Posts:      posts,
	}, true
}

// Topics returns snapshots of all topics ordered by id.
func (m *MemoryForum) Topics() []*MemoryTopic {
	m.mu.RLock()
	ids := make([]int, 0, len(m.topics))
	for id := range m.topics {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Ints(ids)
	out := make([]*MemoryTopic, 0, len(ids))
	for _, id := range ids {
		if t, ok := m.Topic(id); ok {
			out = append(out, t)
		}
	}
	return out
}

// Categories returns all categories ordered by id.
func (m *MemoryForum) Categories() []importer.Category {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]importer.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func decodeCustomData(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decoding custom data: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// normalizeTags lowercases and de-duplicates tags the way the forum does.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Slugify turns a title into the URL slug the forum would assign.
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Compile-time check that MemoryForum implements importer.Forum
var _ importer.Forum = (*MemoryForum)(nil)
