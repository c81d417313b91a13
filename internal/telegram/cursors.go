package telegram

import (
	"strconv"
	"sync"
)

// cursorCache maps short tokens to full pagination cursors. Telegram
// callback data is capped at 64 bytes; anchored cursors do not fit, so
// keyboards carry a short token and the cursor stays here. Entries are
// evicted FIFO past the cap — an evicted token reads as an expired
// history view, which the caller recovers from via /history.
type cursorCache struct {
	mu     sync.Mutex
	seq    uint64
	byID   map[string]string
	order  []string
	maxLen int
}

func newCursorCache(maxLen int) *cursorCache {
	return &cursorCache{
		byID:   make(map[string]string),
		maxLen: maxLen,
	}
}

func (c *cursorCache) put(cursor string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	id := strconv.FormatUint(c.seq, 36)
	c.byID[id] = cursor
	c.order = append(c.order, id)
	for len(c.order) > c.maxLen {
		delete(c.byID, c.order[0])
		c.order = c.order[1:]
	}
	return id
}

func (c *cursorCache) get(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cursor, ok := c.byID[id]
	return cursor, ok
}
