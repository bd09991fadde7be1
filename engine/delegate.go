package engine

import (
	"sync"
	"time"
)

// Stats is a snapshot of a session's counters.
type Stats struct {
	Cursor    int
	Total     int
	Successes int
	Failures  int
	Credits   int
	Drops     int
	Delay     time.Duration
	StartedAt time.Time
	Elapsed   time.Duration
}

// Delegate receives session lifecycle notifications. Calls are made in order
// from a single goroutine that is never the run loop.
type Delegate interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnComplete(stats Stats)
	OnCancel(stats Stats)
	OnFail(kind ErrorKind, err error, stats Stats)
}

// NopDelegate ignores every notification. Embed it to implement a subset.
type NopDelegate struct{}

func (NopDelegate) OnStart(int) {}
func (NopDelegate) OnProgress(int, int) {}
func (NopDelegate) OnComplete(Stats) {}
func (NopDelegate) OnCancel(Stats) {}
func (NopDelegate) OnFail(ErrorKind, error, Stats) {}

type multiDelegate []Delegate

// Delegates fans every notification out to ds in order.
func Delegates(ds ...Delegate) Delegate {
	out := make(multiDelegate, 0, len(ds))
	for _, d := range ds {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

func (m multiDelegate) OnStart(total int) {
	for _, d := range m {
		d.OnStart(total)
	}
}

func (m multiDelegate) OnProgress(current, total int) {
	for _, d := range m {
		d.OnProgress(current, total)
	}
}

func (m multiDelegate) OnComplete(stats Stats) {
	for _, d := range m {
		d.OnComplete(stats)
	}
}

func (m multiDelegate) OnCancel(stats Stats) {
	for _, d := range m {
		d.OnCancel(stats)
	}
}

func (m multiDelegate) OnFail(kind ErrorKind, err error, stats Stats) {
	for _, d := range m {
		d.OnFail(kind, err, stats)
	}
}

// notifier delivers delegate calls in order on its own goroutine. The queue is
// unbounded so the run loop never blocks on a slow delegate.
type notifier struct {
	d Delegate

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func(Delegate)
	closed bool
	done   chan struct{}
}

func newNotifier(d Delegate) *notifier {
	n := &notifier{d: d, done: make(chan struct{})}
	n.cond = sync.NewCond(&n.mu)
	go n.run()
	return n
}

func (n *notifier) push(fn func(Delegate)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.queue = append(n.queue, fn)
	n.cond.Signal()
}

func (n *notifier) run() {
	defer close(n.done)
	for {
		n.mu.Lock()
		for len(n.queue) == 0 && !n.closed {
			n.cond.Wait()
		}
		if len(n.queue) == 0 {
			n.mu.Unlock()
			return
		}
		fn := n.queue[0]
		n.queue = n.queue[1:]
		n.mu.Unlock()
		fn(n.d)
	}
}

// close delivers what is queued, then stops.
func (n *notifier) close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		<-n.done
		return
	}
	n.closed = true
	n.cond.Broadcast()
	n.mu.Unlock()
	<-n.done
}
