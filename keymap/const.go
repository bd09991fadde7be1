package keymap

// KeyCode is a macOS virtual key code (kVK_*) for the US ANSI layout.
type KeyCode uint16

// Letter keys. The ANSI layout numbers them by physical position, not alphabetically.
const (
	KeyA KeyCode = 0x00
	KeyS KeyCode = 0x01
	KeyD KeyCode = 0x02
	KeyF KeyCode = 0x03
	KeyH KeyCode = 0x04
	KeyG KeyCode = 0x05
	KeyZ KeyCode = 0x06
	KeyX KeyCode = 0x07
	KeyC KeyCode = 0x08
	KeyV KeyCode = 0x09
	KeyB KeyCode = 0x0B
	KeyQ KeyCode = 0x0C
	KeyW KeyCode = 0x0D
	KeyE KeyCode = 0x0E
	KeyR KeyCode = 0x0F
	KeyY KeyCode = 0x10
	KeyT KeyCode = 0x11
	KeyO KeyCode = 0x1F
	KeyU KeyCode = 0x20
	KeyI KeyCode = 0x22
	KeyP KeyCode = 0x23
	KeyL KeyCode = 0x25
	KeyJ KeyCode = 0x26
	KeyK KeyCode = 0x28
	KeyN KeyCode = 0x2D
	KeyM KeyCode = 0x2E
)

// Number row
const (
	Key1 KeyCode = 0x12
	Key2 KeyCode = 0x13
	Key3 KeyCode = 0x14
	Key4 KeyCode = 0x15
	Key6 KeyCode = 0x16
	Key5 KeyCode = 0x17
	Key9 KeyCode = 0x19
	Key7 KeyCode = 0x1A
	Key8 KeyCode = 0x1C
	Key0 KeyCode = 0x1D
)

// Punctuation
const (
	KeyEqual        KeyCode = 0x18
	KeyMinus        KeyCode = 0x1B
	KeyRightBracket KeyCode = 0x1E
	KeyLeftBracket  KeyCode = 0x21
	KeyQuote        KeyCode = 0x27
	KeySemicolon    KeyCode = 0x29
	KeyBackslash    KeyCode = 0x2A
	KeyComma        KeyCode = 0x2B
	KeySlash        KeyCode = 0x2C
	KeyPeriod       KeyCode = 0x2F
	KeyGrave        KeyCode = 0x32
)

// Special keys
const (
	KeyReturn        KeyCode = 0x24
	KeyTab           KeyCode = 0x30
	KeySpace         KeyCode = 0x31
	KeyDelete        KeyCode = 0x33
	KeyEscape        KeyCode = 0x35
	KeyCommand       KeyCode = 0x37
	KeyShift         KeyCode = 0x38
	KeyCapsLock      KeyCode = 0x39
	KeyOption        KeyCode = 0x3A
	KeyControl       KeyCode = 0x3B
	KeyRightShift    KeyCode = 0x3C
	KeyRightOption   KeyCode = 0x3D
	KeyRightControl  KeyCode = 0x3E
	KeyFunction      KeyCode = 0x3F
	KeyHelp          KeyCode = 0x72
	KeyHome          KeyCode = 0x73
	KeyPageUp        KeyCode = 0x74
	KeyForwardDelete KeyCode = 0x75
	KeyEnd           KeyCode = 0x77
	KeyPageDown      KeyCode = 0x79
	KeyLeftArrow     KeyCode = 0x7B
	KeyRightArrow    KeyCode = 0x7C
	KeyDownArrow     KeyCode = 0x7D
	KeyUpArrow       KeyCode = 0x7E
)

// Function keys
const (
	KeyF1  KeyCode = 0x7A
	KeyF2  KeyCode = 0x78
	KeyF3  KeyCode = 0x63
	KeyF4  KeyCode = 0x76
	KeyF5  KeyCode = 0x60
	KeyF6  KeyCode = 0x61
	KeyF7  KeyCode = 0x62
	KeyF8  KeyCode = 0x64
	KeyF9  KeyCode = 0x65
	KeyF10 KeyCode = 0x6D
	KeyF11 KeyCode = 0x67
	KeyF12 KeyCode = 0x6F
	KeyF13 KeyCode = 0x69
	KeyF14 KeyCode = 0x6B
	KeyF15 KeyCode = 0x71
	KeyF16 KeyCode = 0x6A
	KeyF17 KeyCode = 0x40
	KeyF18 KeyCode = 0x4F
	KeyF19 KeyCode = 0x50
	KeyF20 KeyCode = 0x5A
)

// KeyName maps virtual key codes to human-readable key names.
var KeyName = map[KeyCode]string{
	// Letters
	KeyA: "A", KeyB: "B", KeyC: "C", KeyD: "D", KeyE: "E", KeyF: "F", KeyG: "G",
	KeyH: "H", KeyI: "I", KeyJ: "J", KeyK: "K", KeyL: "L", KeyM: "M", KeyN: "N",
	KeyO: "O", KeyP: "P", KeyQ: "Q", KeyR: "R", KeyS: "S", KeyT: "T", KeyU: "U",
	KeyV: "V", KeyW: "W", KeyX: "X", KeyY: "Y", KeyZ: "Z",

	// Numbers
	Key1: "1", Key2: "2", Key3: "3", Key4: "4", Key5: "5",
	Key6: "6", Key7: "7", Key8: "8", Key9: "9", Key0: "0",

	// Punctuation
	KeyEqual:        "Equal",
	KeyMinus:        "Minus",
	KeyRightBracket: "RightBracket",
	KeyLeftBracket:  "LeftBracket",
	KeyQuote:        "Quote",
	KeySemicolon:    "Semicolon",
	KeyBackslash:    "Backslash",
	KeyComma:        "Comma",
	KeySlash:        "Slash",
	KeyPeriod:       "Period",
	KeyGrave:        "Grave",

	// Special keys
	KeyReturn:        "Return",
	KeyTab:           "Tab",
	KeySpace:         "Space",
	KeyDelete:        "Delete",
	KeyEscape:        "Escape",
	KeyCommand:       "Command",
	KeyShift:         "Shift",
	KeyCapsLock:      "CapsLock",
	KeyOption:        "Option",
	KeyControl:       "Control",
	KeyRightShift:    "RightShift",
	KeyRightOption:   "RightOption",
	KeyRightControl:  "RightControl",
	KeyFunction:      "Function",
	KeyHelp:          "Help",
	KeyHome:          "Home",
	KeyPageUp:        "PageUp",
	KeyForwardDelete: "ForwardDelete",
	KeyEnd:           "End",
	KeyPageDown:      "PageDown",
	KeyLeftArrow:     "Left",
	KeyRightArrow:    "Right",
	KeyDownArrow:     "Down",
	KeyUpArrow:       "Up",

	// Function keys
	KeyF1: "F1", KeyF2: "F2", KeyF3: "F3", KeyF4: "F4", KeyF5: "F5",
	KeyF6: "F6", KeyF7: "F7", KeyF8: "F8", KeyF9: "F9", KeyF10: "F10",
	KeyF11: "F11", KeyF12: "F12", KeyF13: "F13", KeyF14: "F14", KeyF15: "F15",
	KeyF16: "F16", KeyF17: "F17", KeyF18: "F18", KeyF19: "F19", KeyF20: "F20",
}
