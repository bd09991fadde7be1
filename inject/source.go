package inject

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Alia5/ghostkey/platform"
)

var (
	// ErrResourceCreation is returned when the OS refuses to create an event source.
	ErrResourceCreation = errors.New("event source creation failed")
	// ErrSourceClosed is returned when posting through a source after Close.
	ErrSourceClosed = errors.New("event source closed")
)

// Source is the per-session event source. It stamps every event with its tag
// and is never reused once closed.
type Source struct {
	mu     sync.Mutex
	src    platform.Source
	tag    int64
	closed bool
}

// OpenSource creates the event source for one session.
func OpenSource(p platform.Platform, tag int64) (*Source, error) {
	src, err := p.NewSource(tag)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceCreation, err)
	}
	if src == nil {
		return nil, ErrResourceCreation
	}
	return &Source{src: src, tag: tag}, nil
}

// Tag returns the user data value stamped on posted events.
func (s *Source) Tag() int64 { return s.tag }

// Post hands ev to the OS with the source tag as user data.
func (s *Source) Post(ev platform.KeyEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSourceClosed
	}
	ev.UserData = s.tag
	return s.src.Post(ev)
}

// Close releases the OS source. Closing twice is a no-op.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.src.Close()
}

// Closed reports whether Close has been called.
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
