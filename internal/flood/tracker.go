package flood

import (
	"strconv"
	"sync"
	"time"
)

// Tracker counts message bursts per (chat, user) over a trailing window.
// State is in-memory only and resets on restart; flood behavior is short-lived
// enough that this is acceptable.
type Tracker struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	hits   map[string][]time.Time
}

func NewTracker(limit int, window time.Duration) *Tracker {
	return &Tracker{
		window: window,
		limit:  limit,
		hits:   make(map[string][]time.Time),
	}
}

// RecordAndCheck appends a message timestamp for (chat, user), drops
// timestamps older than the window, and reports whether the burst reached the
// limit. Callers that act on a true result should Reset the pair so the user
// gets a fresh window afterwards.
func (t *Tracker) RecordAndCheck(chatID, userID int64, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key(chatID, userID)
	cutoff := now.Add(-t.window)
	hits := t.hits[k]
	idx := 0
	for _, hit := range hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	hits = append(hits[idx:], now)
	t.hits[k] = hits
	return len(hits) >= t.limit
}

func (t *Tracker) Reset(chatID, userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.hits, key(chatID, userID))
}

func key(chatID, userID int64) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(userID, 10)
}
