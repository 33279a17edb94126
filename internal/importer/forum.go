package importer

import "context"

// RootCategoryID identifies the forum root when used as a parent category.
const RootCategoryID = 0

// Category is a remote forum category.
type Category struct {
	ID       int
	Name     string
	ParentID int
}

// RemoteTopic is a topic as returned by a tag lookup.
type RemoteTopic struct {
	ID         int
	Slug       string
	MainPostID int
	Tags       []string
	CustomData map[string]any

	// PostCount is the number of posts in the topic, main post included.
	// Zero means the forum did not report it.
	PostCount int
}

// Metadata returns the topic's custom data decoded into the fixed schema.
func (t *RemoteTopic) Metadata() TopicMetadata {
	return ParseTopicMetadata(t.CustomData)
}

// NewTopic describes a topic to create.
type NewTopic struct {
	CategoryID int
	Title      string
	Content    string
	Tags       []string
	AuthorID   int // 0 means the token's own user
	CustomData map[string]any
}

// CreatedTopic is what the forum returns after creating a topic.
type CreatedTopic struct {
	ID         int
	Slug       string
	MainPostID int
}

// NewReply describes a reply to post into an existing topic.
type NewReply struct {
	TopicID  int
	Content  string
	AuthorID int
}

// Forum is the remote content store the importer reconciles against.
// Lookups return (nil, nil) when nothing matches; any returned error is a
// transport or server failure.
type Forum interface {
	// ListCategories returns the direct children of parentID.
	// RootCategoryID lists top-level categories.
	ListCategories(ctx context.Context, parentID int) ([]Category, error)

	// CreateCategory creates a category under parentID and returns its id.
	CreateCategory(ctx context.Context, name string, parentID int) (int, error)

	// FindTopicByTag returns the topic in categoryID carrying tag.
	FindTopicByTag(ctx context.Context, tag string, categoryID int) (*RemoteTopic, error)

	// CreateTopic creates a topic whose main post holds t.Content.
	CreateTopic(ctx context.Context, t NewTopic) (*CreatedTopic, error)

	// UpdatePost replaces the content of an existing post.
	UpdatePost(ctx context.Context, postID int, content string) error

	// UpdateTopicMetadata replaces a topic's custom data. Implementations may
	// not be able to do this atomically with UpdatePost.
	UpdateTopicMetadata(ctx context.Context, topicID int, customData map[string]any) error

	// CreateReply appends a reply to a topic and returns the new post id.
	CreateReply(ctx context.Context, r NewReply) (int, error)
}
