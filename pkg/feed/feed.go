// Package feed maintains the in-memory, ordered feed of (sequence, docID)
// changes that database listeners consume: replicator pushers and
// application observers. It is the engine's change-notification broker,
// adapted from a single-goroutine publish/subscribe loop into a bounded,
// cursor-aware history so late listeners can resume from any sequence
// still held.
package feed

import (
	"sync"
)

// Change is one entry in the feed: a record was saved at Sequence.
type Change struct {
	Sequence uint64
	DocID    string
	Deleted  bool
}

// Listener receives Changes from a Tracker subscription.
type Listener chan Change

// Tracker is an ordered, bounded feed of Changes. It retains history back
// to the oldest Sequence any live listener has not yet advanced past;
// once every listener has moved beyond an entry, the entry is evicted.
type Tracker struct {
	mu        sync.Mutex
	history   []Change
	listeners map[Listener]uint64 // listener -> cursor (last sequence delivered)
	closed    bool
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{listeners: make(map[Listener]uint64)}
}

// Saved records that a document was written at sequence seq and delivers
// it to every listener whose cursor is caught up. The database calls this
// once per committed record, inside the transaction that assigned seq.
func (t *Tracker) Saved(seq uint64, docID string, deleted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	change := Change{Sequence: seq, DocID: docID, Deleted: deleted}
	t.history = append(t.history, change)

	for l := range t.listeners {
		select {
		case l <- change:
		default:
			// Listener's buffer is full; it will catch up via Since() on
			// its next read, or fall behind and be serviced from history.
		}
	}
	t.evictLocked()
}

// Subscribe registers a new listener starting after sinceSeq (0 means
// "from the beginning of retained history") and returns a channel of
// future changes plus the backlog already in history at call time. The
// caller must call Cancel when done listening.
func (t *Tracker) Subscribe(sinceSeq uint64, bufSize int) (Listener, []Change) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l := make(Listener, bufSize)
	t.listeners[l] = sinceSeq

	var backlog []Change
	for _, c := range t.history {
		if c.Sequence > sinceSeq {
			backlog = append(backlog, c)
		}
	}
	return l, backlog
}

// Advance updates a listener's cursor after it has consumed changes up to
// and including seq, allowing those entries to be evicted once every
// other listener has also passed them.
func (t *Tracker) Advance(l Listener, seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.listeners[l]; ok && seq > cur {
		t.listeners[l] = seq
	}
	t.evictLocked()
}

// Cancel removes a listener and closes its channel.
func (t *Tracker) Cancel(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.listeners[l]; !ok {
		return
	}
	delete(t.listeners, l)
	close(l)
	t.evictLocked()
}

// Close tears down the tracker, closing all listener channels.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for l := range t.listeners {
		close(l)
	}
	t.listeners = nil
	t.history = nil
}

// evictLocked drops history entries every remaining listener has already
// advanced past. Must be called with t.mu held.
func (t *Tracker) evictLocked() {
	if len(t.listeners) == 0 {
		return
	}
	minCursor := uint64(1<<64 - 1)
	for _, cursor := range t.listeners {
		if cursor < minCursor {
			minCursor = cursor
		}
	}
	i := 0
	for i < len(t.history) && t.history[i].Sequence <= minCursor {
		i++
	}
	if i > 0 {
		t.history = t.history[i:]
	}
}

// ListenerCount returns the number of active subscriptions.
func (t *Tracker) ListenerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners)
}
