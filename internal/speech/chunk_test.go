package speech

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitSentences(t *testing.T) {
	t.Run("texto corto", func(t *testing.T) {
		got := SplitSentences("  Hello!   How are you today? ", 150)
		if len(got) != 1 || got[0] != "Hello! How are you today?" {
			t.Fatalf("unexpected chunks %q", got)
		}
	})
	t.Run("respeta el maximo", func(t *testing.T) {
		text := strings.Repeat("We used to walk along the river every Sunday afternoon. ", 8)
		got := SplitSentences(text, 150)
		if len(got) < 2 {
			t.Fatalf("expected several chunks, got %d", len(got))
		}
		for _, c := range got {
			if utf8.RuneCountInString(c) > 150 {
				t.Fatalf("chunk too long (%d): %q", utf8.RuneCountInString(c), c)
			}
			if !strings.HasSuffix(c, ".") {
				t.Fatalf("chunk should end on a sentence boundary: %q", c)
			}
		}
		if strings.Join(got, " ") != strings.Join(strings.Fields(text), " ") {
			t.Fatalf("chunks lost text")
		}
	})
	t.Run("oracion sin puntos", func(t *testing.T) {
		text := strings.Repeat("word ", 60)
		got := SplitSentences(text, 40)
		for _, c := range got {
			if utf8.RuneCountInString(c) > 40 || strings.HasPrefix(c, " ") {
				t.Fatalf("bad chunk %q", c)
			}
		}
	})
	t.Run("palabra gigante", func(t *testing.T) {
		got := SplitSentences(strings.Repeat("a", 25), 10)
		if len(got) != 3 || got[2] != "aaaaa" {
			t.Fatalf("unexpected chunks %q", got)
		}
	})
	t.Run("decimales", func(t *testing.T) {
		got := SplitSentences("It cost 3.50 back then. Imagine that!", 150)
		if len(got) != 1 {
			t.Fatalf("unexpected chunks %q", got)
		}
		if s := sentences("It cost 3.50 back then. Imagine that!"); len(s) != 2 {
			t.Fatalf("expected 2 sentences, got %q", s)
		}
	})
	if SplitSentences("   ", 150) != nil {
		t.Fatalf("expected nil for blank text")
	}
}
