package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	"github.com/Alia5/ghostkey/platform"
)

// RawLogger records every keyboard event crossing the engine boundary:
// synthesized events handed to the OS and events intercepted by the tap.
type RawLogger interface {
	Posted(ev platform.KeyEvent)
	Intercepted(ev platform.TapEvent, v platform.Verdict)
}

// rawLogger implements RawLogger with thread-safe line output.
type rawLogger struct {
	w   io.Writer
	mu  sync.Mutex
	now func() time.Time
}

// NewRaw creates a new RawLogger. If writer is nil, returns a no-op logger.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w, now: time.Now}
}

// Posted emits a line for a synthesized event.
//
//	2026/01/02 15:04:05.000 OUT down key=0x04 flags=0x00020000 text=[0048] "H" tag=0x47484b5953594e54
func (r *rawLogger) Posted(ev platform.KeyEvent) {
	if r.w == nil {
		return
	}
	dir := "up"
	if ev.Down {
		dir = "down"
	}
	r.write(fmt.Sprintf("OUT %-4s key=0x%02X flags=0x%08X text=%s tag=0x%x",
		dir, uint16(ev.Code), uint64(ev.Flags), formatText(ev.Text), ev.UserData))
}

// Intercepted emits a line for an event seen by the tap together with the verdict.
func (r *rawLogger) Intercepted(ev platform.TapEvent, v platform.Verdict) {
	if r.w == nil {
		return
	}
	if ev.Kind.Disabled() {
		r.write(fmt.Sprintf("IN  %s verdict=%s", ev.Kind, v))
		return
	}
	r.write(fmt.Sprintf("IN  %s key=0x%02X flags=0x%08X repeat=%t tag=0x%x verdict=%s",
		ev.Kind, uint16(ev.Code), uint64(ev.Flags), ev.Autorepeat, ev.UserData, v))
}

func (r *rawLogger) write(line string) {
	stamp := r.now().Format("2006/01/02 15:04:05.000")
	r.mu.Lock()
	_, _ = fmt.Fprintf(r.w, "%s %s\n", stamp, line)
	r.mu.Unlock()
}

func formatText(text []uint16) string {
	if len(text) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, u := range text {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%04x", u)
	}
	b.WriteByte(']')
	fmt.Fprintf(&b, " %q", string(utf16.Decode(text)))
	return b.String()
}
