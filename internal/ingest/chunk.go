package ingest

import "strings"

// sentence boundaries considered when looking for a clean break point.
const boundaryChars = ".!?\n"

// SplitText splits text into chunks of at most size runes with the given
// overlap carried between consecutive chunks. Each chunk prefers to end at
// a sentence boundary, but only when the boundary sits past the midpoint
// of the window; otherwise the chunk is cut at the size limit so that a
// long run without punctuation cannot degenerate into tiny fragments.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" || size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			if chunk := strings.TrimSpace(string(runes[start:])); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		cut := end
		if b := lastBoundary(runes[start:end]); b > size/2 {
			cut = start + b
		}
		if chunk := strings.TrimSpace(string(runes[start:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// lastBoundary returns the index just past the last sentence boundary in
// window, or 0 when the window contains none.
func lastBoundary(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if strings.ContainsRune(boundaryChars, window[i]) {
			return i + 1
		}
	}
	return 0
}
