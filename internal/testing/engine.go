package testing

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/ghostkey/engine"
	"github.com/Alia5/ghostkey/platform/sim"
)

// Recorder is an engine.Delegate that records every call as a short string,
// e.g. "start 3", "progress 1/3", "complete", "fail tap_creation".
type Recorder struct {
	mu    sync.Mutex
	calls []string
	last  engine.Stats
	err   error
}

func (r *Recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *Recorder) OnStart(total int) { r.add(fmt.Sprintf("start %d", total)) }
func (r *Recorder) OnProgress(current, total int) { r.add(fmt.Sprintf("progress %d/%d", current, total)) }

func (r *Recorder) OnComplete(stats engine.Stats) {
	r.mu.Lock()
	r.last = stats
	r.mu.Unlock()
	r.add("complete")
}

func (r *Recorder) OnCancel(stats engine.Stats) {
	r.mu.Lock()
	r.last = stats
	r.mu.Unlock()
	r.add("cancel")
}

func (r *Recorder) OnFail(kind engine.ErrorKind, err error, stats engine.Stats) {
	r.mu.Lock()
	r.last = stats
	r.err = err
	r.mu.Unlock()
	r.add("fail " + string(kind))
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Last returns the stats of the last terminal notification and its error.
func (r *Recorder) Last() (engine.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.err
}

// WaitFor waits until at least n calls were recorded and returns them.
func (r *Recorder) WaitFor(t *testing.T, n int) []string {
	t.Helper()
	assert.Eventually(t, func() bool { return len(r.Calls()) >= n }, time.Second, time.Millisecond)
	return r.Calls()
}

// NewSimEngine returns an engine on a fresh simulated platform. Pacing sleeps
// are skipped. Both are closed when the test ends.
func NewSimEngine(t *testing.T, cfg engine.Config, opts ...engine.Option) (*sim.Platform, *engine.Engine) {
	t.Helper()
	p := sim.New(slog.Default())
	opts = append([]engine.Option{engine.WithSleep(func(time.Duration) {})}, opts...)
	e, err := engine.New(p, cfg, slog.Default(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = e.Close()
		_ = p.Close()
	})
	return p, e
}
