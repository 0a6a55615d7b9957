package rag

// Passage is one retrieved chunk of book content with its similarity score.
// Ordering is similarity-descending as returned by the store.
type Passage struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Source attributes part of an answer to a retrieved passage.
type Source struct {
	URL   string  `json:"url"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Turn is one prior message of the conversation, supplied by the caller
// as context for follow-up questions. Read-only to the pipeline.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Answer is the terminal output of one pipeline invocation. It is
// constructed exactly once per request and never partially mutated.
type Answer struct {
	Text       string   `json:"text"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
}

// sourcesFor builds one Source per passage, preserving retrieval order.
func sourcesFor(passages []Passage) []Source {
	sources := make([]Source, 0, len(passages))
	for _, p := range passages {
		sources = append(sources, Source{URL: p.URL, Title: p.Title, Score: p.Score})
	}
	return sources
}
