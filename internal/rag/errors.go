package rag

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline error by the stage that produced it.
// The pipeline boundary matches on Kind instead of blanket-catching
// every error the same way.
type Kind int

const (
	// KindValidation marks a malformed or empty input query, rejected
	// before the pipeline starts. This is the only kind surfaced to callers.
	KindValidation Kind = iota

	// KindEmbedding marks an embedding provider failure after retries.
	KindEmbedding

	// KindRetrieval marks a vector-store failure. Zero results is not an error.
	KindRetrieval

	// KindGeneration marks an LLM failure after retries. Recovered locally
	// into an extractive fallback, never surfaced.
	KindGeneration

	// KindFatal marks an unclassified internal failure.
	KindFatal
)

// String returns the kind's name for logging.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindEmbedding:
		return "embedding"
	case KindRetrieval:
		return "retrieval"
	case KindGeneration:
		return "generation"
	default:
		return "fatal"
	}
}

// Error is a pipeline error tagged with the stage that produced it.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a stage kind. Returns nil if err is nil.
func NewError(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the stage kind from err, defaulting to KindFatal
// for errors that did not originate in a pipeline stage.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}

// ErrEmptyQuery rejects a blank question before the pipeline starts.
var ErrEmptyQuery = errors.New("query cannot be empty")

// ErrQueryTooLong rejects oversized questions before the pipeline starts.
var ErrQueryTooLong = errors.New("query exceeds maximum length")

// MaxQueryLength bounds the accepted question size in characters.
const MaxQueryLength = 1000

// ValidateQuery checks a raw question string. Whitespace-only input counts
// as empty. Returns a KindValidation error on rejection.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return NewError(KindValidation, ErrEmptyQuery)
	}
	if len([]rune(query)) > MaxQueryLength {
		return NewError(KindValidation, fmt.Errorf("%w: %d characters (max %d)", ErrQueryTooLong, len([]rune(query)), MaxQueryLength))
	}
	return nil
}
