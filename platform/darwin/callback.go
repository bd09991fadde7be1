//go:build darwin && cgo

package darwin

/*
#include <stdint.h>
*/
import "C"

import (
	"runtime/cgo"

	"github.com/Alia5/ghostkey/keymap"
	"github.com/Alia5/ghostkey/platform"
)

// Event kinds as reported by the C tap callback.
const (
	cKindKeyDown         = 0
	cKindDisabledTimeout = 1
	cKindDisabledUser    = 2
)

//export goRunLoopPerform
func goRunLoopPerform(handle C.uintptr_t) {
	p, ok := cgo.Handle(handle).Value().(*Platform)
	if !ok {
		return
	}
	p.drain()
}

//export goTapEvent
func goTapEvent(refcon C.uintptr_t, kind C.int, code C.uint16_t, flags C.uint64_t, autorepeat C.int, userdata C.int64_t) C.int {
	t, ok := cgo.Handle(refcon).Value().(*tap)
	if !ok || t.cb == nil {
		return 0
	}
	ev := platform.TapEvent{
		Kind:       platform.KindKeyDown,
		Code:       keymap.KeyCode(code),
		Flags:      platform.Flags(flags),
		Autorepeat: autorepeat != 0,
		UserData:   int64(userdata),
	}
	switch int(kind) {
	case cKindDisabledTimeout:
		ev.Kind = platform.KindTapDisabledByTimeout
	case cKindDisabledUser:
		ev.Kind = platform.KindTapDisabledByUserInput
	}
	if t.cb(ev) == platform.Swallow {
		return 1
	}
	return 0
}
