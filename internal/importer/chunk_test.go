package importer

import (
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"
)

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func TestChunk_FitsUnchanged(t *testing.T) {
	tests := []string{"", "hello", "  padded text \n", strings.Repeat("a", 100)}
	for _, text := range tests {
		got := Chunk(text, 100)
		if len(got) != 1 || got[0] != text {
			t.Errorf("Chunk(%q, 100) = %q, want [%q]", text, got, text)
		}
	}
}

func TestChunk_Coverage(t *testing.T) {
	sentences := strings.Repeat("The quick brown fox jumps. Over the lazy dog again. ", 40)
	lines := strings.Repeat("line of text with words\n", 60)
	tests := []struct {
		name      string
		text      string
		maxLength int
	}{
		{"sentences", sentences, 97},
		{"lines", lines, 50},
		{"no whitespace", strings.Repeat("x", 1000), 7},
		{"mixed", sentences + lines + strings.Repeat("y", 300), 128},
		{"multibyte", strings.Repeat("héllo wörld ", 50), 33},
		{"max length one", "ab cd", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(tt.text, tt.maxLength)
			if len(got) == 0 {
				t.Fatal("Chunk() returned no chunks")
			}
			for i, c := range got {
				if n := utf8.RuneCountInString(c); n > tt.maxLength {
					t.Errorf("chunk %d has %d runes, want <= %d", i, n, tt.maxLength)
				}
				if c == "" {
					t.Errorf("chunk %d is empty", i)
				}
				if c != strings.TrimSpace(c) {
					t.Errorf("chunk %d is not trimmed: %q", i, c)
				}
			}
			if stripSpace(strings.Join(got, "")) != stripSpace(tt.text) {
				t.Error("concatenated chunks do not reproduce the text")
			}
		})
	}
}

func TestChunk_BoundaryPreference(t *testing.T) {
	a60 := strings.Repeat("a", 60)
	b60 := strings.Repeat("b", 60)

	tests := []struct {
		name  string
		text  string
		first string
	}{
		{"newline past midpoint", a60 + "\n" + b60, a60},
		{"sentence end keeps period", a60 + ". " + b60, a60 + "."},
		{"space past midpoint", a60 + " " + b60, a60},
		{"newline wins over later space", a60 + "\n" + strings.Repeat("bb ", 20), a60},
		{"boundary before midpoint ignored", strings.Repeat("a", 10) + "\n" + strings.Repeat("b", 200), strings.Repeat("a", 10) + "\n" + strings.Repeat("b", 89)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(tt.text, 100)
			if got[0] != tt.first {
				t.Errorf("first chunk = %q, want %q", got[0], tt.first)
			}
		})
	}
}

func TestChunk_NewlineBeatsSentence(t *testing.T) {
	text := strings.Repeat("a", 55) + "\n" + strings.Repeat("b", 20) + ". " + strings.Repeat("c", 60)
	got := Chunk(text, 100)
	if got[0] != strings.Repeat("a", 55) {
		t.Errorf("first chunk = %q, want the text before the newline", got[0])
	}
}

func TestChunk_Termination(t *testing.T) {
	text := strings.Repeat("z", 10001)
	got := Chunk(text, 100)
	if len(got) != 101 {
		t.Fatalf("len(Chunk()) = %d, want 101", len(got))
	}
	if strings.Join(got, "") != text {
		t.Error("hard-cut chunks do not reproduce the text")
	}
}

func TestChunk_WhitespaceOnly(t *testing.T) {
	got := Chunk(strings.Repeat(" \n", 300), 100)
	if len(got) != 1 || got[0] != "" {
		t.Errorf("Chunk(whitespace) = %q, want [\"\"]", got)
	}
}

func TestChunk_DefaultMaxLength(t *testing.T) {
	text := strings.Repeat("x", DefaultChunkMaxLength+1)
	got := Chunk(text, 0)
	if len(got) != 2 {
		t.Errorf("len(Chunk(text, 0)) = %d, want 2", len(got))
	}
}
