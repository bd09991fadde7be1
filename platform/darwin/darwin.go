//go:build darwin && cgo

package darwin

/*
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation -framework Carbon

#include <stdint.h>
#include <stdlib.h>
#include <ApplicationServices/ApplicationServices.h>
#include <Carbon/Carbon.h>

extern int goTapEvent(uintptr_t refcon, int kind, uint16_t code, uint64_t flags, int autorepeat, int64_t userdata);
extern void goRunLoopPerform(uintptr_t handle);

enum {
	GHK_KEYDOWN = 0,
	GHK_DISABLED_TIMEOUT = 1,
	GHK_DISABLED_USER = 2,
};

typedef struct {
	CFRunLoopRef loop;
	CFRunLoopSourceRef perform;
} ghk_loop;

typedef struct {
	CFMachPortRef port;
	CFRunLoopSourceRef source;
	CFRunLoopRef loop;
} ghk_tap;

static void ghk_perform(void *info) {
	goRunLoopPerform((uintptr_t)info);
}

// Attaches a version 0 source to the calling thread's run loop. Signalling it
// makes the loop call back into Go.
static ghk_loop *ghk_loop_attach(uintptr_t handle) {
	ghk_loop *l = calloc(1, sizeof(ghk_loop));
	if (l == NULL) {
		return NULL;
	}
	CFRunLoopSourceContext ctx = {0};
	ctx.info = (void *)handle;
	ctx.perform = ghk_perform;
	l->perform = CFRunLoopSourceCreate(kCFAllocatorDefault, 0, &ctx);
	if (l->perform == NULL) {
		free(l);
		return NULL;
	}
	l->loop = CFRunLoopGetCurrent();
	CFRetain(l->loop);
	CFRunLoopAddSource(l->loop, l->perform, kCFRunLoopCommonModes);
	return l;
}

static void ghk_loop_run(void) {
	CFRunLoopRun();
}

static void ghk_loop_signal(ghk_loop *l) {
	CFRunLoopSourceSignal(l->perform);
	CFRunLoopWakeUp(l->loop);
}

static void ghk_loop_stop(ghk_loop *l) {
	CFRunLoopStop(l->loop);
	CFRunLoopWakeUp(l->loop);
}

static void ghk_loop_release(ghk_loop *l) {
	CFRunLoopRemoveSource(l->loop, l->perform, kCFRunLoopCommonModes);
	CFRunLoopSourceInvalidate(l->perform);
	CFRelease(l->perform);
	CFRelease(l->loop);
	free(l);
}

static CGEventRef ghk_tap_cb(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *refcon) {
	(void)proxy;
	int kind;
	switch (type) {
	case kCGEventKeyDown:
		kind = GHK_KEYDOWN;
		break;
	case kCGEventTapDisabledByTimeout:
		kind = GHK_DISABLED_TIMEOUT;
		break;
	case kCGEventTapDisabledByUserInput:
		kind = GHK_DISABLED_USER;
		break;
	default:
		return event;
	}
	uint16_t code = 0;
	uint64_t flags = 0;
	int autorepeat = 0;
	int64_t userdata = 0;
	if (kind == GHK_KEYDOWN) {
		code = (uint16_t)CGEventGetIntegerValueField(event, kCGKeyboardEventKeycode);
		flags = (uint64_t)CGEventGetFlags(event);
		autorepeat = CGEventGetIntegerValueField(event, kCGKeyboardEventAutorepeat) != 0;
		userdata = CGEventGetIntegerValueField(event, kCGEventSourceUserData);
	}
	if (goTapEvent((uintptr_t)refcon, kind, code, flags, autorepeat, userdata)) {
		return NULL;
	}
	return event;
}

static ghk_tap *ghk_tap_create(int session, int head, int consume, int keydown_only, uintptr_t refcon) {
	CGEventMask mask = CGEventMaskBit(kCGEventKeyDown);
	if (!keydown_only) {
		mask |= CGEventMaskBit(kCGEventKeyUp) | CGEventMaskBit(kCGEventFlagsChanged);
	}
	CFMachPortRef port = CGEventTapCreate(
		session ? kCGSessionEventTap : kCGHIDEventTap,
		head ? kCGHeadInsertEventTap : kCGTailAppendEventTap,
		consume ? kCGEventTapOptionDefault : kCGEventTapOptionListenOnly,
		mask,
		ghk_tap_cb,
		(void *)refcon);
	if (port == NULL) {
		return NULL;
	}
	// Created disabled; the controller enables it once it is on the run loop.
	CGEventTapEnable(port, false);
	ghk_tap *t = calloc(1, sizeof(ghk_tap));
	if (t == NULL) {
		CFMachPortInvalidate(port);
		CFRelease(port);
		return NULL;
	}
	t->port = port;
	return t;
}

static int ghk_tap_add(ghk_tap *t, ghk_loop *l) {
	if (t->source == NULL) {
		t->source = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, t->port, 0);
		if (t->source == NULL) {
			return -1;
		}
	}
	t->loop = l->loop;
	CFRunLoopAddSource(t->loop, t->source, kCFRunLoopCommonModes);
	return 0;
}

static void ghk_tap_enable(ghk_tap *t, int on) {
	CGEventTapEnable(t->port, on ? true : false);
}

static int ghk_tap_enabled(ghk_tap *t) {
	return CGEventTapIsEnabled(t->port) ? 1 : 0;
}

static void ghk_tap_remove(ghk_tap *t) {
	if (t->source != NULL && t->loop != NULL) {
		CFRunLoopRemoveSource(t->loop, t->source, kCFRunLoopCommonModes);
	}
	t->loop = NULL;
}

static void ghk_tap_invalidate(ghk_tap *t) {
	CFMachPortInvalidate(t->port);
	if (t->source != NULL) {
		CFRelease(t->source);
	}
	CFRelease(t->port);
	free(t);
}

static CGEventSourceRef ghk_source_create(int64_t tag) {
	CGEventSourceRef src = CGEventSourceCreate(kCGEventSourceStateHIDSystemState);
	if (src != NULL) {
		CGEventSourceSetUserData(src, tag);
	}
	return src;
}

static void ghk_source_release(CGEventSourceRef src) {
	CFRelease(src);
}

static int ghk_post(CGEventSourceRef src, uint16_t code, int down, uint64_t flags, const UniChar *text, int n, int64_t userdata) {
	CGEventRef ev = CGEventCreateKeyboardEvent(src, (CGKeyCode)code, down ? true : false);
	if (ev == NULL) {
		return -1;
	}
	// Flags are always set explicitly so a key-up never inherits modifiers.
	CGEventSetFlags(ev, (CGEventFlags)flags);
	if (n > 0) {
		CGEventKeyboardSetUnicodeString(ev, (UniCharCount)n, text);
	}
	CGEventSetIntegerValueField(ev, kCGEventSourceUserData, userdata);
	CGEventPost(kCGHIDEventTap, ev);
	CFRelease(ev);
	return 0;
}

static int ghk_secure_input(void) {
	return IsSecureEventInputEnabled() ? 1 : 0;
}

static int ghk_trusted(void) {
	const void *keys[] = { kAXTrustedCheckOptionPrompt };
	const void *vals[] = { kCFBooleanFalse };
	CFDictionaryRef opts = CFDictionaryCreate(kCFAllocatorDefault, keys, vals, 1,
		&kCFCopyStringDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks);
	Boolean ok = AXIsProcessTrustedWithOptions(opts);
	if (opts != NULL) {
		CFRelease(opts);
	}
	return ok ? 1 : 0;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/cgo"
	"sync"
	"unsafe"

	"github.com/Alia5/ghostkey/platform"
)

const permissionHint = "grant Accessibility (System Settings > Privacy & Security > Accessibility) " +
	"and Input Monitoring to this binary or its terminal; macOS does not grant it automatically"

func init() {
	platform.Register(Name, platform.Registration{
		Native: true,
		Factory: func(logger *slog.Logger) (platform.Platform, error) {
			return New(logger)
		},
	})
}

// Platform is the macOS platform. Its run loop lives on a dedicated, locked OS thread.
type Platform struct {
	logger *slog.Logger
	handle cgo.Handle

	mu     sync.Mutex
	queue  []func()
	closed bool
	loop   *C.ghk_loop
	done   chan struct{}
}

// New starts the run loop thread and returns once it accepts work.
func New(logger *slog.Logger) (*Platform, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Platform{
		logger: logger.With("platform", Name),
		done:   make(chan struct{}),
	}
	p.handle = cgo.NewHandle(p)

	started := make(chan error, 1)
	go p.run(started)
	if err := <-started; err != nil {
		p.handle.Delete()
		return nil, err
	}
	return p, nil
}

func (p *Platform) run(started chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(p.done)

	l := C.ghk_loop_attach(C.uintptr_t(p.handle))
	if l == nil {
		started <- errors.New("darwin: failed to attach run loop source")
		return
	}
	p.mu.Lock()
	p.loop = l
	p.mu.Unlock()
	started <- nil

	p.logger.Debug("run loop started")
	C.ghk_loop_run()
	p.logger.Debug("run loop stopped")

	// Work queued while stopping still runs, on this thread.
	p.drain()
	C.ghk_loop_release(l)
}

func (p *Platform) drain() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		fn := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()
		fn()
	}
}

// Name implements platform.Platform.
func (p *Platform) Name() string { return Name }

// Perform implements platform.Platform. After Close, fn runs on the caller's goroutine.
func (p *Platform) Perform(fn func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		fn()
		return
	}
	p.queue = append(p.queue, fn)
	l := p.loop
	p.mu.Unlock()
	C.ghk_loop_signal(l)
}

// Close stops the run loop thread.
func (p *Platform) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	l := p.loop
	p.mu.Unlock()

	C.ghk_loop_stop(l)
	<-p.done
	p.handle.Delete()
	return nil
}

// SecureInputActive implements platform.Platform.
func (p *Platform) SecureInputActive() bool {
	return C.ghk_secure_input() != 0
}

// Trusted implements platform.Platform. It never prompts.
func (p *Platform) Trusted() (bool, string) {
	if C.ghk_trusted() != 0 {
		return true, ""
	}
	return false, permissionHint
}

// NewSource implements platform.Platform.
func (p *Platform) NewSource(tag int64) (platform.Source, error) {
	ref := C.ghk_source_create(C.int64_t(tag))
	if ref == nil {
		return nil, errors.New("CGEventSourceCreate returned NULL")
	}
	return &source{ref: ref, tag: tag}, nil
}

// CreateTap implements platform.Platform.
func (p *Platform) CreateTap(opts platform.TapOptions, cb platform.Callback) (platform.Tap, error) {
	t := &tap{p: p, cb: cb}
	t.handle = cgo.NewHandle(t)

	c := C.ghk_tap_create(
		cbool(opts.Location == platform.LocationSession),
		cbool(opts.Placement == platform.PlacementHead),
		cbool(opts.Consume),
		cbool(opts.KeyDownOnly),
		C.uintptr_t(t.handle),
	)
	if c == nil {
		t.handle.Delete()
		return nil, fmt.Errorf("CGEventTapCreate returned NULL: %s", permissionHint)
	}
	t.c = c
	return t, nil
}

func cbool(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

type source struct {
	mu     sync.Mutex
	ref    C.CGEventSourceRef
	tag    int64
	closed bool
}

func (s *source) Post(ev platform.KeyEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("darwin: event source closed")
	}
	userData := ev.UserData
	if userData == 0 {
		userData = s.tag
	}
	var text *C.UniChar
	if len(ev.Text) > 0 {
		text = (*C.UniChar)(unsafe.Pointer(&ev.Text[0]))
	}
	down := C.int(0)
	if ev.Down {
		down = 1
	}
	rc := C.ghk_post(s.ref, C.uint16_t(ev.Code), down, C.uint64_t(ev.Flags), text, C.int(len(ev.Text)), C.int64_t(userData))
	runtime.KeepAlive(ev.Text)
	if rc != 0 {
		return fmt.Errorf("CGEventCreateKeyboardEvent failed for key 0x%02X", uint16(ev.Code))
	}
	return nil
}

func (s *source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	C.ghk_source_release(s.ref)
	return nil
}

type tap struct {
	p      *Platform
	cb     platform.Callback
	handle cgo.Handle
	c      *C.ghk_tap
}

func (t *tap) AddToRunLoop() error {
	if t.c == nil {
		return errors.New("darwin: tap invalidated")
	}
	t.p.mu.Lock()
	l := t.p.loop
	t.p.mu.Unlock()
	if C.ghk_tap_add(t.c, l) != 0 {
		return errors.New("CFMachPortCreateRunLoopSource returned NULL")
	}
	return nil
}

func (t *tap) Enable(on bool) {
	if t.c != nil {
		C.ghk_tap_enable(t.c, cbool(on))
	}
}

func (t *tap) Enabled() bool {
	return t.c != nil && C.ghk_tap_enabled(t.c) != 0
}

func (t *tap) RemoveFromRunLoop() {
	if t.c != nil {
		C.ghk_tap_remove(t.c)
	}
}

func (t *tap) Invalidate() {
	if t.c == nil {
		return
	}
	C.ghk_tap_invalidate(t.c)
	t.c = nil
	t.handle.Delete()
}
