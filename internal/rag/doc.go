// Package rag implements the question-answering pipeline: query embedding
// with a TTL cache, similarity retrieval with threshold fallback, context
// assembly, constrained answer generation with retry and extractive
// degradation, and confidence scoring.
//
// The public entry point is Pipeline.Answer, which always produces a
// well-formed Answer. Internal failures are contained at the pipeline
// boundary and converted into a fallback Answer; they never escape to
// the transport layer.
package rag
