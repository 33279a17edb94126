package importer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// IndexFileName is the pseudo file path the index is recorded under.
const IndexFileName = "_fsync_index"

// BuildIndex renders the index document: header, then one bullet per entry
// sorted by file path, each linking to its topic.
func BuildIndex(entries []TocEntry, header string) string {
	sorted := make([]TocEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FilePath < sorted[j].FilePath
	})

	var b strings.Builder
	if h := strings.TrimSpace(header); h != "" {
		b.WriteString(h)
		b.WriteString("\n\n")
	}
	for _, e := range sorted {
		title := e.Title
		if title == "" {
			title = e.FilePath
		}
		fmt.Fprintf(&b, "- [%s](/topic/%d/%s) `%s`\n", title, e.TopicID, e.TopicSlug, e.FilePath)
	}
	return b.String()
}

// PublishIndex upserts the index topic for the entries gathered during the
// pass. It does nothing when the index is disabled or no file produced an
// entry, and leaves an existing index alone when its content is unchanged.
func (p *Pass) PublishIndex(ctx context.Context) (*FileResult, error) {
	imp := p.imp
	if !imp.opts.GenerateTOC || len(p.entries) == 0 {
		return nil, nil
	}

	catID := p.baseID
	if imp.opts.MasterCategory == "" {
		id, err := p.resolver.Resolve(ctx, CategoryPath{imp.opts.TOCCategory}, RootCategoryID)
		if err != nil {
			return nil, err
		}
		catID = id
	}

	content := BuildIndex(p.entries, imp.opts.TOCHeader)
	hash := Fingerprint(content)
	res := &FileResult{
		RelativePath: IndexFileName,
		Title:        imp.opts.TOCTitle,
		Tag:          IndexTag,
		CategoryID:   catID,
		ContentHash:  hash,
	}

	if utf8.RuneCountInString(content) > imp.opts.ChunkMaxLength {
		res.Outcome = OutcomeSkippedOversize
		res.Warning = fmt.Sprintf("index of %d entries exceeds the post size limit", len(p.entries))
		imp.logger.Warn("skipping index", "entries", len(p.entries))
		return res, nil
	}

	meta := TopicMetadata{
		Source:      SourceName,
		RepoURL:     imp.opts.RepoURL,
		FilePath:    IndexFileName,
		ContentHash: hash,
		ChunkCount:  1,
		PostHashes:  []string{Fingerprint(content)},
	}

	existing, err := imp.forum.FindTopicByTag(ctx, res.Tag, catID)
	if err != nil {
		return nil, fmt.Errorf("looking up index topic: %w", err)
	}

	if existing != nil {
		res.TopicID, res.TopicSlug = existing.ID, existing.Slug
		if existing.Metadata().ContentHash == hash {
			res.Outcome = OutcomeUnchanged
			return res, nil
		}
		if err := imp.forum.UpdatePost(ctx, existing.MainPostID, content); err != nil {
			return nil, fmt.Errorf("updating index post: %w", err)
		}
		res.Outcome = OutcomeUpdated
		res.PostsWritten = 1
		p.storeMetadata(ctx, existing.ID, meta, res)
		imp.logger.Info("index updated", "topic", existing.ID, "entries", len(p.entries))
		return res, nil
	}

	created, err := imp.forum.CreateTopic(ctx, NewTopic{
		CategoryID: catID,
		Title:      imp.opts.TOCTitle,
		Content:    content,
		Tags:       []string{res.Tag},
		AuthorID:   imp.opts.AuthorID,
		CustomData: meta.CustomData(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating index topic: %w", err)
	}
	res.TopicID, res.TopicSlug = created.ID, created.Slug
	res.Outcome = OutcomeCreated
	res.PostsWritten = 1
	imp.logger.Info("index created", "topic", created.ID, "entries", len(p.entries))
	return res, nil
}
