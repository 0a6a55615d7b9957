package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/libram-ai/libram/internal/rag"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"

	conversationCleanupInterval = 5 * time.Minute
)

// conversations is an in-memory store of recent chat history keyed by
// conversation ID. Entries expire after ttl of inactivity; each history is
// bounded to maxTurns turns so long conversations cannot grow the prompt
// without limit. Cleanup of expired entries happens inline, the same way
// the rate limiter prunes stale visitors.
type conversations struct {
	mu          sync.Mutex
	entries     map[uuid.UUID]*conversation
	maxTurns    int
	ttl         time.Duration
	lastCleanup time.Time
	now         func() time.Time
}

type conversation struct {
	turns    []rag.Turn
	lastSeen time.Time
}

func newConversations(maxTurns int, ttl time.Duration) *conversations {
	return &conversations{
		entries:     make(map[uuid.UUID]*conversation),
		maxTurns:    maxTurns,
		ttl:         ttl,
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// history returns a copy of the conversation's turns, oldest first.
// Unknown IDs yield an empty history.
func (c *conversations) history(id uuid.UUID) []rag.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil
	}
	entry.lastSeen = c.now()

	turns := make([]rag.Turn, len(entry.turns))
	copy(turns, entry.turns)
	return turns
}

// append records a completed question/answer exchange.
func (c *conversations) append(id uuid.UUID, question, answer string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.cleanupLocked(now)

	entry, ok := c.entries[id]
	if !ok {
		entry = &conversation{}
		c.entries[id] = entry
	}
	entry.lastSeen = now
	entry.turns = append(entry.turns,
		rag.Turn{Role: roleUser, Content: question},
		rag.Turn{Role: roleAssistant, Content: answer},
	)
	if len(entry.turns) > c.maxTurns {
		entry.turns = entry.turns[len(entry.turns)-c.maxTurns:]
	}
}

func (c *conversations) cleanupLocked(now time.Time) {
	if now.Sub(c.lastCleanup) <= conversationCleanupInterval {
		return
	}
	for id, entry := range c.entries {
		if now.Sub(entry.lastSeen) > c.ttl {
			delete(c.entries, id)
		}
	}
	c.lastCleanup = now
}

func (c *conversations) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
