package importer

import (
	"strings"
	"unicode"
)

// DefaultChunkMaxLength is the forum's per-post character limit.
const DefaultChunkMaxLength = 32768

// Chunk splits text into pieces of at most maxLength runes.
//
// Text that fits is returned unchanged as the only element. Otherwise each
// piece is cut at the last newline in the window, else just after the last
// ". ", else at the last space; a boundary is used only when it lies past the
// middle of the window, so a window without one is cut hard at maxLength.
// Pieces are trimmed of surrounding whitespace. The result always has at
// least one element.
func Chunk(text string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = DefaultChunkMaxLength
	}
	runes := []rune(text)
	if len(runes) <= maxLength {
		return []string{text}
	}

	var chunks []string
	remaining := runes
	for len(remaining) > 0 {
		if len(remaining) <= maxLength {
			if piece := strings.TrimSpace(string(remaining)); piece != "" {
				chunks = append(chunks, piece)
			}
			break
		}

		cut := cutPoint(remaining[:maxLength])
		if piece := strings.TrimSpace(string(remaining[:cut])); piece != "" {
			chunks = append(chunks, piece)
		}
		// cut >= 1, so remaining shrinks every iteration.
		remaining = trimLeftSpace(remaining[cut:])
	}

	if len(chunks) == 0 {
		return []string{""}
	}
	return chunks
}

// cutPoint returns the length of the next chunk taken from window.
func cutPoint(window []rune) int {
	limit := len(window)
	half := limit / 2

	if i := lastIndex(window, []rune("\n")); i > half {
		return i
	}
	if i := lastIndex(window, []rune(". ")); i >= 0 && i+1 > half {
		return i + 1
	}
	if i := lastIndex(window, []rune(" ")); i > half {
		return i
	}
	return limit
}

func lastIndex(s, sep []rune) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		match := true
		for j := range sep {
			if s[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func trimLeftSpace(r []rune) []rune {
	for len(r) > 0 && unicode.IsSpace(r[0]) {
		r = r[1:]
	}
	return r
}
