package importer

import (
	"errors"
	"path"
	"strings"
)

// Tag namespaces. Lookup tags (file and index) never collide with the
// directory tags attached to the same topics for discovery.
const (
	filenameTagPrefix = "file-"
	dirTagPrefix      = "dir-"

	// IndexTag is the lookup tag of the generated index topic.
	IndexTag = "fsync-index"
)

// Sentinels of the legacy full-path tag encoding.
const (
	legacySeparator = "__"
	legacyDot       = "_dot_"
)

// ErrUnencodablePath is returned by EncodePath for paths whose encoding
// would not decode back to the same path.
var ErrUnencodablePath = errors.New("path cannot be encoded without ambiguity")

// sanitizeTag lowercases s and replaces every character outside [a-z0-9_]
// with '-'.
func sanitizeTag(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// FilenameTag derives the lookup tag for a file from its base name only.
// The tag is unique only together with the id of the containing category.
func FilenameTag(name string) string {
	return filenameTagPrefix + sanitizeTag(path.Base(NormalizePath(name)))
}

// PathTags returns one discovery tag per segment of a directory path. A
// segment whose tag would fall into a lookup namespace, or into the escape
// prefix itself, gets the "dir-" prefix.
func PathTags(dir string) []string {
	segs := SplitCategoryPath(dir)
	if len(segs) == 0 {
		return nil
	}
	tags := make([]string, 0, len(segs))
	for _, s := range segs {
		tags = append(tags, pathTag(s))
	}
	return tags
}

func pathTag(segment string) string {
	t := sanitizeTag(segment)
	if strings.HasPrefix(t, filenameTagPrefix) || strings.HasPrefix(t, dirTagPrefix) || t == IndexTag {
		return dirTagPrefix + t
	}
	return t
}

// CategoryPath is the chain of directory names a file lives under.
type CategoryPath []string

// String joins the segments with '/'.
func (p CategoryPath) String() string {
	return strings.Join(p, "/")
}

// SplitCategoryPath splits a slash-separated directory path into segments,
// dropping empty and "." segments.
func SplitCategoryPath(dir string) CategoryPath {
	dir = NormalizePath(dir)
	if dir == "" || dir == "." {
		return nil
	}
	var segs CategoryPath
	for _, s := range strings.Split(dir, "/") {
		if s == "" || s == "." {
			continue
		}
		segs = append(segs, s)
	}
	return segs
}

// NormalizePath converts backslashes to '/', cleans the path and strips any
// leading "./" or "/".
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "."
	}
	return p
}

// EncodePath encodes a relative path into a single tag-safe token using the
// legacy scheme: '/' becomes "__" and '.' becomes "_dot_".
// DecodePath(EncodePath(p)) == NormalizePath(p) for every accepted path.
func EncodePath(p string) (string, error) {
	norm := NormalizePath(p)
	if strings.Contains(norm, legacySeparator) || strings.Contains(norm, legacyDot) {
		return "", ErrUnencodablePath
	}
	enc := strings.ReplaceAll(norm, ".", legacyDot)
	enc = strings.ReplaceAll(enc, "/", legacySeparator)
	if DecodePath(enc) != norm {
		return "", ErrUnencodablePath
	}
	return enc, nil
}

// DecodePath reverses EncodePath.
func DecodePath(enc string) string {
	dec := strings.ReplaceAll(enc, legacyDot, ".")
	return strings.ReplaceAll(dec, legacySeparator, "/")
}

// LegacyPathTag is the lookup tag older importers wrote: the encoded full
// path, lowercased and sanitized.
func LegacyPathTag(relPath string) (string, error) {
	enc, err := EncodePath(relPath)
	if err != nil {
		return "", err
	}
	return sanitizeTag(enc), nil
}
