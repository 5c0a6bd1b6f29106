package story

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitForSynthesis_ShortTextIsOneChunk(t *testing.T) {
	chunks := SplitForSynthesis("Hola. ¿Qué tal?", 100)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "Hola. ¿Qué tal?" {
		t.Fatalf("unexpected chunk: %q", chunks[0])
	}
}

func TestSplitForSynthesis_RespectsLimit(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 80; i++ {
		sb.WriteString("Esta es una frase de prueba con varias palabras dentro. ")
	}
	chunks := SplitForSynthesis(sb.String(), 500)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 500 {
			t.Fatalf("chunk %d has %d chars, limit is 500", i, len(c))
		}
	}
}

func TestSplitForSynthesis_PrefersSentenceBoundaries(t *testing.T) {
	text := "Primera frase corta. Segunda frase corta. Tercera frase corta."
	chunks := SplitForSynthesis(text, 25)
	for i, c := range chunks {
		if !strings.HasSuffix(c, ".") {
			t.Fatalf("chunk %d does not end at a sentence boundary: %q", i, c)
		}
	}
}

func TestSplitForSynthesis_JoinReconstructsText(t *testing.T) {
	text := "Una frase. Otra frase. La tercera frase. Y una más."
	chunks := SplitForSynthesis(text, 20)
	if got := strings.Join(chunks, " "); got != text {
		t.Fatalf("joined chunks differ from input:\n got: %q\nwant: %q", got, text)
	}
}

func TestSplitForSynthesis_HardCutsOversizedSentence(t *testing.T) {
	long := strings.Repeat("a", 120)
	chunks := SplitForSynthesis(long, 50)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 50 {
			t.Fatalf("chunk %d has %d chars", i, len(c))
		}
	}
}

func TestSplitForSynthesis_HardCutKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("ñ", 40)
	chunks := SplitForSynthesis(long, 25)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 25 {
			t.Fatalf("chunk %d has %d bytes, limit is 25", i, len(c))
		}
		if !utf8.ValidString(c) {
			t.Fatalf("chunk %d is not valid UTF-8: %q", i, c)
		}
	}
	if got := strings.Join(chunks, ""); got != long {
		t.Fatalf("joined chunks differ from input:\n got: %q\nwant: %q", got, long)
	}
}

func TestSplitForSynthesis_EmptyInput(t *testing.T) {
	if chunks := SplitForSynthesis("   ", 100); chunks != nil {
		t.Fatalf("expected nil, got %v", chunks)
	}
}
