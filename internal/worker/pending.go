package worker

import (
	"sync"

	"github.com/martinemde/genwiz/internal/protocol"
)

// pendingTable maps a live correlation id to the handle its reply is
// delivered on. Ids start at 1 and are never reused within a table.
//
// Replies are dispatched from the channel read loop while prompts are issued
// from the generator goroutine, so every access goes through mu.
type pendingTable struct {
	mu      sync.Mutex
	lastID  int
	handles map[int]chan protocol.Reply
	closed  bool
}

func newPendingTable() *pendingTable {
	return &pendingTable{handles: make(map[int]chan protocol.Reply)}
}

// register allocates the next id and its handle. It fails once the table
// has been closed.
func (t *pendingTable) register() (int, <-chan protocol.Reply, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, nil, ErrChannelClosed
	}
	t.lastID++
	ch := make(chan protocol.Reply, 1)
	t.handles[t.lastID] = ch
	return t.lastID, ch, nil
}

// resolve delivers reply to the handle for id and removes it. It reports
// false when no handle is registered for id.
func (t *pendingTable) resolve(id int, reply protocol.Reply) bool {
	t.mu.Lock()
	ch, ok := t.handles[id]
	if ok {
		delete(t.handles, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	// Buffered with capacity 1 and removed above, so this never blocks.
	ch <- reply
	return true
}

// remove drops the handle for id without resolving it.
func (t *pendingTable) remove(id int) {
	t.mu.Lock()
	delete(t.handles, id)
	t.mu.Unlock()
}

// close releases every outstanding handle. Waiters observe a closed channel.
func (t *pendingTable) close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	for id, ch := range t.handles {
		close(ch)
		delete(t.handles, id)
	}
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}
