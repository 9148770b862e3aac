package logging

import (
	"sync"

	"github.com/google/uuid"
)

// historySize is the number of recent log lines kept for new subscribers.
const historySize = 500

var (
	broadcaster     *Broadcaster
	broadcasterOnce sync.Once
)

// Broadcaster captures log writes, keeps a bounded history, and fans lines
// out to subscribers. It is installed as an extra writer by Init so every
// log line the process emits is available to the websocket log stream.
type Broadcaster struct {
	mu          sync.RWMutex
	history     []string
	next        int
	full        bool
	subscribers map[string]chan string
	closed      bool
}

// GetBroadcaster returns the singleton broadcaster instance.
func GetBroadcaster() *Broadcaster {
	broadcasterOnce.Do(func() {
		broadcaster = &Broadcaster{
			history:     make([]string, historySize),
			subscribers: make(map[string]chan string),
		}
	})
	return broadcaster
}

// Write implements io.Writer. Slow subscribers skip lines rather than block
// the logger.
func (b *Broadcaster) Write(p []byte) (n int, err error) {
	msg := string(p)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return len(p), nil
	}

	b.history[b.next] = msg
	b.next = (b.next + 1) % len(b.history)
	if b.next == 0 {
		b.full = true
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}

	return len(p), nil
}

// Subscribe registers a new subscriber. It returns the subscriber ID (for
// Unsubscribe), a channel of new log lines, and a snapshot of the history.
func (b *Broadcaster) Subscribe() (string, <-chan string, []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan string, historySize)
	b.subscribers[id] = ch

	return id, ch, b.snapshotLocked()
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Shutdown closes all subscriber channels and stops accepting writes.
func (b *Broadcaster) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}

func (b *Broadcaster) snapshotLocked() []string {
	var snapshot []string
	if b.full {
		snapshot = append(snapshot, b.history[b.next:]...)
	}
	snapshot = append(snapshot, b.history[:b.next]...)

	// Drop zero-value slots from a partially filled buffer
	out := make([]string, 0, len(snapshot))
	for _, line := range snapshot {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
