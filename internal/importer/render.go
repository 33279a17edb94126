package importer

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"
)

// postOverhead is the room kept free in every post for the continuation
// marker and fence lines, on top of the fences themselves.
const postOverhead = 64

// Rendered is a file's content split and wrapped into forum posts.
type Rendered struct {
	Chunks []string
	Posts  []string
}

// RenderFile splits content for posts of at most maxLength runes and wraps
// each piece in a fenced code block. Posts after the first carry a marker
// naming the post they continue.
func RenderFile(relPath, content string, maxLength int) Rendered {
	if maxLength <= 0 {
		maxLength = DefaultChunkMaxLength
	}
	fence := fenceFor(content)
	lang := languageHint(relPath)

	budget := maxLength - 2*utf8.RuneCountInString(fence) - len(lang) - postOverhead
	if budget < 1 {
		budget = 1
	}

	chunks := Chunk(content, budget)
	posts := make([]string, len(chunks))
	for i, c := range chunks {
		body := fence + lang + "\n" + c + "\n" + fence
		if i > 0 {
			body = continuationMarker(i) + "\n\n" + body
		}
		posts[i] = body
	}
	return Rendered{Chunks: chunks, Posts: posts}
}

// continuationMarker labels reply i (1-based) as continuing post i, where the
// main post is post 1.
func continuationMarker(i int) string {
	return fmt.Sprintf("_(continued from post %d)_", i)
}

// retiredPost is written over reply posts that no longer hold a chunk.
func retiredPost(postCount int) string {
	return fmt.Sprintf("_(superseded: this file now spans %d post(s) above)_", postCount)
}

// fenceFor returns a backtick fence longer than any backtick run in content.
func fenceFor(content string) string {
	longest, run := 0, 0
	for _, r := range content {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	n := 3
	if longest >= n {
		n = longest + 1
	}
	return strings.Repeat("`", n)
}

// languageHint returns the file extension as a code block info string when
// it is plain alphanumeric.
func languageHint(relPath string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(relPath), "."))
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}
