package importer

import (
	"strconv"
)

// SourceName is written into every topic's custom data.
const SourceName = "forumsync"

// TopicMetadata is the fixed schema of the custom data stored on imported
// topics. PostHashes holds one fingerprint per post in topic order (main post
// first) and ReplyPostIDs every reply post the importer owns, including
// retired ones. RepliesPending is set while replies are being appended: the
// recorded ids cover every reply acknowledged so far, and a reply the forum
// accepted without its id being recorded shows up as a post count mismatch.
type TopicMetadata struct {
	Source         string
	RepoURL        string
	FilePath       string
	ContentHash    string
	IsChunked      bool
	ChunkCount     int
	ReplyPostIDs   []int
	PostHashes     []string
	RepliesPending bool
}

// Keys of the custom data map.
const (
	keySource       = "source"
	keyRepoURL      = "repoUrl"
	keyFilePath     = "filePath"
	keyContentHash  = "contentHash"
	keyIsChunked    = "isChunked"
	keyChunkCount   = "chunkCount"
	keyReplyPostIDs = "replyPostIds"
	keyPostHashes   = "postHashes"
	keyPending      = "repliesPending"
)

// CustomData encodes m into the loosely typed map the forum stores.
func (m TopicMetadata) CustomData() map[string]any {
	replies := make([]any, len(m.ReplyPostIDs))
	for i, id := range m.ReplyPostIDs {
		replies[i] = id
	}
	hashes := make([]any, len(m.PostHashes))
	for i, h := range m.PostHashes {
		hashes[i] = h
	}
	return map[string]any{
		keySource:       m.Source,
		keyRepoURL:      m.RepoURL,
		keyFilePath:     m.FilePath,
		keyContentHash:  m.ContentHash,
		keyIsChunked:    m.IsChunked,
		keyChunkCount:   m.ChunkCount,
		keyReplyPostIDs: replies,
		keyPostHashes:   hashes,
		keyPending:      m.RepliesPending,
	}
}

// TracksReplies reports whether the reply post ids of a chunked topic are
// known, which is required to rewrite it in place. A topic with pending
// replies tracks the ones recorded so far.
func (m TopicMetadata) TracksReplies() bool {
	if len(m.PostHashes) != len(m.ReplyPostIDs)+1 {
		return false
	}
	return m.RepliesPending || len(m.ReplyPostIDs) >= m.ChunkCount-1
}

// ParseTopicMetadata decodes custom data written by any importer version.
// Missing or mistyped fields fall back to zero values, and ChunkCount
// defaults to 1.
func ParseTopicMetadata(data map[string]any) TopicMetadata {
	m := TopicMetadata{
		Source:      asString(data[keySource]),
		RepoURL:     asString(data[keyRepoURL]),
		FilePath:    asString(data[keyFilePath]),
		ContentHash: asString(data[keyContentHash]),
		IsChunked:   asBool(data[keyIsChunked]),
		ChunkCount:  asInt(data[keyChunkCount]),

		RepliesPending: asBool(data[keyPending]),
	}
	if m.ChunkCount < 1 {
		m.ChunkCount = 1
	}
	if m.ChunkCount > 1 {
		m.IsChunked = true
	}
	for _, v := range asSlice(data[keyReplyPostIDs]) {
		if id := asInt(v); id > 0 {
			m.ReplyPostIDs = append(m.ReplyPostIDs, id)
		}
	}
	for _, v := range asSlice(data[keyPostHashes]) {
		m.PostHashes = append(m.PostHashes, asString(v))
	}
	return m
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	case float64:
		return x != 0
	case int:
		return x != 0
	default:
		return false
	}
}

func asInt(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	case string:
		n, _ := strconv.Atoi(x)
		return n
	default:
		return 0
	}
}

func asSlice(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []int:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out
	default:
		return nil
	}
}
