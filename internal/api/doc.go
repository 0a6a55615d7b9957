// Package api provides the JSON REST API server for libram.
//
// # Architecture
//
// The server uses Go 1.22+ routing with a layered middleware stack:
//
//	Recovery → RequestID → Logging → CORS → RateLimit → Routes
//
// Health probes (/health, /ready) bypass the middleware stack via a
// top-level mux, ensuring they remain fast and unauthenticated.
//
// # Endpoints
//
// Health probes (no middleware):
//   - GET /health — returns {"status":"ok"}
//   - GET /ready  — pings the database pool
//
// Chat:
//   - POST /api/v1/chat — ask a question, optionally continuing a
//     conversation; selected_text attaches a highlighted passage
//   - GET  /api/v1/conversations/{id} — prior turns of a conversation
//   - GET  /api/v1/stats — corpus size
//
// The chat handler never maps an internal pipeline failure to a 500:
// the pipeline contains its own failures and always produces an answer.
// Only request validation yields a 4xx.
package api
