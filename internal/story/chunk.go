package story

import (
	"strings"
	"unicode/utf8"
)

// SynthesisChunkLimit is the largest text the speech service accepts per
// request, in characters.
const SynthesisChunkLimit = 2500

// SplitForSynthesis cuts text into chunks of at most maxLen characters,
// preferring sentence boundaries so prosody survives the split. Chunk order
// matches reading order; joining the chunks with single spaces reconstructs
// the normalized text.
func SplitForSynthesis(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxLen <= 0 {
		maxLen = SynthesisChunkLimit
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	sentences := splitSentences(text)
	var chunks []string
	var cur strings.Builder
	for _, s := range sentences {
		if cur.Len() > 0 && cur.Len()+1+len(s) > maxLen {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		// A single oversized sentence is cut hard, on a rune boundary so a
		// multi-byte character never straddles two chunks.
		for len(s) > maxLen {
			if cur.Len() > 0 {
				chunks = append(chunks, cur.String())
				cur.Reset()
			}
			cut := runeBoundaryCut(s, maxLen)
			chunks = append(chunks, s[:cut])
			s = strings.TrimSpace(s[cut:])
		}
		if s == "" {
			continue
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(s)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// runeBoundaryCut returns the largest rune-boundary index no greater than max,
// or the width of the first rune when max falls inside it.
func runeBoundaryCut(s string, max int) int {
	if max >= len(s) {
		return len(s)
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	if max == 0 {
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	return max
}

func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '…' {
			// Consume trailing closers so they stay with the sentence.
			for i+1 < len(runes) && (runes[i+1] == '"' || runes[i+1] == '»' || runes[i+1] == ')') {
				i++
				cur.WriteRune(runes[i])
			}
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}
