package importer

import (
	"context"
	"fmt"
	"strings"
)

// categoryKey identifies one child segment under one parent category.
type categoryKey struct {
	parentID int
	name     string // lowercased
}

// CategoryResolver maps directory paths onto forum category ids, creating
// missing categories on the way down. Resolved (parent, segment) pairs and
// per-parent child listings are memoized for the lifetime of the resolver,
// which is one import pass. Not safe for concurrent use.
type CategoryResolver struct {
	forum    Forum
	logger   Logger
	resolved map[categoryKey]int
	children map[int][]Category
}

// NewCategoryResolver creates a resolver with an empty cache.
func NewCategoryResolver(forum Forum, logger Logger) *CategoryResolver {
	return &CategoryResolver{
		forum:    forum,
		logger:   logger,
		resolved: make(map[categoryKey]int),
		children: make(map[int][]Category),
	}
}

// Resolve walks path segment by segment from baseID (RootCategoryID for the
// forum root) and returns the id of the deepest category. An empty path
// resolves to baseID itself.
func (r *CategoryResolver) Resolve(ctx context.Context, path CategoryPath, baseID int) (int, error) {
	current := baseID
	for _, seg := range path {
		if seg == "" || seg == "." {
			continue
		}
		id, err := r.child(ctx, current, seg)
		if err != nil {
			return 0, fmt.Errorf("resolving category %q: %w", path.String(), err)
		}
		current = id
	}
	return current, nil
}

// child returns the id of the category called name under parentID,
// matching names case-insensitively and creating the category if needed.
func (r *CategoryResolver) child(ctx context.Context, parentID int, name string) (int, error) {
	key := categoryKey{parentID: parentID, name: strings.ToLower(name)}
	if id, ok := r.resolved[key]; ok {
		return id, nil
	}

	siblings, err := r.listChildren(ctx, parentID)
	if err != nil {
		return 0, err
	}
	for _, c := range siblings {
		if strings.EqualFold(c.Name, name) {
			r.resolved[key] = c.ID
			return c.ID, nil
		}
	}

	id, err := r.forum.CreateCategory(ctx, name, parentID)
	if err != nil {
		return 0, fmt.Errorf("creating category %q under %d: %w", name, parentID, err)
	}
	r.logger.Info("category created", "name", name, "parent", parentID, "id", id)

	r.children[parentID] = append(siblings, Category{ID: id, Name: name, ParentID: parentID})
	r.children[id] = []Category{}
	r.resolved[key] = id
	return id, nil
}

func (r *CategoryResolver) listChildren(ctx context.Context, parentID int) ([]Category, error) {
	if cs, ok := r.children[parentID]; ok {
		return cs, nil
	}
	cs, err := r.forum.ListCategories(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("listing categories under %d: %w", parentID, err)
	}
	r.children[parentID] = cs
	return cs, nil
}
