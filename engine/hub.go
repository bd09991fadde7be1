package engine

import (
	"sync"
	"time"
)

// EventType names a lifecycle notification.
type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventCancel   EventType = "cancel"
	EventFail     EventType = "fail"
)

// Event is a lifecycle notification as seen by Hub subscribers.
type Event struct {
	Type    EventType
	Current int
	Total   int
	Stats   *Stats
	Kind    ErrorKind
	Err     string
	Time    time.Time
}

// Terminal reports whether the event ends a session.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventCancel || e.Type == EventFail
}

// Hub is a Delegate that fans events out to any number of subscribers. Slow
// subscribers lose events instead of blocking delivery to the others.
type Hub struct {
	mu      sync.Mutex
	subs    map[chan Event]struct{}
	dropped int
	closed  bool
	now     func() time.Time
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{}), now: time.Now}
}

// Subscribe registers a subscriber with a buffer of size buf. The returned
// func unsubscribes and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 64
	}
	ch := make(chan Event, buf)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns the number of events discarded because a subscriber was full.
func (h *Hub) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close closes every subscriber channel. Later events are discarded.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = map[chan Event]struct{}{}
}

func (h *Hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	ev.Time = h.now()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped++
		}
	}
}

func (h *Hub) OnStart(total int) {
	h.publish(Event{Type: EventStart, Total: total})
}

func (h *Hub) OnProgress(current, total int) {
	h.publish(Event{Type: EventProgress, Current: current, Total: total})
}

func (h *Hub) OnComplete(stats Stats) {
	h.publish(Event{Type: EventComplete, Current: stats.Cursor, Total: stats.Total, Stats: &stats})
}

func (h *Hub) OnCancel(stats Stats) {
	h.publish(Event{Type: EventCancel, Current: stats.Cursor, Total: stats.Total, Stats: &stats, Kind: KindCancelled})
}

func (h *Hub) OnFail(kind ErrorKind, err error, stats Stats) {
	ev := Event{Type: EventFail, Current: stats.Cursor, Total: stats.Total, Stats: &stats, Kind: kind}
	if err != nil {
		ev.Err = err.Error()
	}
	h.publish(ev)
}
