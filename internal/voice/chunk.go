package voice

import (
	"strings"
	"unicode/utf8"
)

// MaxChunkChars is the largest text block sent in one synthesis request.
const MaxChunkChars = 5000

// SplitText breaks text into chunks of at most limit characters, preferring
// paragraph and sentence boundaries, then word boundaries.
func SplitText(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 {
		limit = MaxChunkChars
	}
	var chunks []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}
	for _, sentence := range sentences(text) {
		for _, piece := range fit(sentence, limit) {
			sep := ""
			if current.Len() > 0 {
				sep = " "
			}
			if utf8.RuneCountInString(current.String())+len(sep)+utf8.RuneCountInString(piece) > limit {
				flush()
				sep = ""
			}
			current.WriteString(sep)
			current.WriteString(piece)
		}
	}
	flush()
	return chunks
}

// sentences splits after terminal punctuation and on blank lines.
func sentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		end := false
		switch r {
		case '.', '!', '?':
			end = i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n'
		case '\n':
			end = true
		}
		if end {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// fit splits one sentence that is longer than limit on word boundaries, and
// single words longer than limit on rune boundaries.
func fit(sentence string, limit int) []string {
	if utf8.RuneCountInString(sentence) <= limit {
		return []string{sentence}
	}
	var out []string
	var current []rune
	for _, word := range strings.Fields(sentence) {
		w := []rune(word)
		for len(w) > limit {
			if len(current) > 0 {
				out = append(out, string(current))
				current = nil
			}
			out = append(out, string(w[:limit]))
			w = w[limit:]
		}
		if len(current) > 0 && len(current)+1+len(w) > limit {
			out = append(out, string(current))
			current = nil
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, w...)
	}
	if len(current) > 0 {
		out = append(out, string(current))
	}
	return out
}
