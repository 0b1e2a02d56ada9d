// Package chunking splits oversized course sections before indexing.
package chunking

import "strings"

// separators are tried strongest-first when looking for a break point:
// list items, paragraphs, lines, sentences, words.
var separators = []string{"\n- ", "\n\n", "\n", ". ", " "}

type Splitter struct {
	MaxChunkSize int
	Overlap      int
}

func NewSplitter(maxChunkSize, overlap int) *Splitter {
	if maxChunkSize <= 0 {
		maxChunkSize = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChunkSize {
		overlap = maxChunkSize / 4
	}
	return &Splitter{
		MaxChunkSize: maxChunkSize,
		Overlap:      overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	runes := []rune(trimmed)
	if len(runes) <= s.MaxChunkSize {
		return []string{trimmed}
	}

	out := make([]string, 0, len(runes)/s.MaxChunkSize+1)
	start := 0
	for start < len(runes) {
		end := start + s.MaxChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.breakPoint(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// breakPoint returns the end of the latest separator occurrence inside
// the window, so chunks end on list, paragraph, sentence or word
// boundaries instead of mid-word. Falls back to a hard cut when the
// window has no separator at all.
func (s *Splitter) breakPoint(runes []rune, start, limit int) int {
	window := string(runes[start:limit])
	for _, sep := range separators {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return start + len([]rune(window[:idx+len(sep)]))
		}
	}
	return limit
}
