package rag

import (
	"fmt"
	"strings"
)

// emptyContext keeps the prompt well-formed when nothing was retrieved.
const emptyContext = "No relevant content found in the book."

// FormatContext renders passages as the grounding block of the prompt.
// Deterministic and order-preserving: one attributed source block per
// passage, in input order.
func FormatContext(passages []Passage) string {
	if len(passages) == 0 {
		return emptyContext
	}

	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n")
		}
		if p.Title != "" {
			fmt.Fprintf(&b, "Source %d from '%s':\n%s\n", i+1, p.Title, p.Content)
		} else {
			fmt.Fprintf(&b, "Source %d:\n%s\n", i+1, p.Content)
		}
	}
	return b.String()
}
