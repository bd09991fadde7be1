//go:build darwin && cgo

package registry

import (
	_ "github.com/Alia5/ghostkey/platform/darwin" // Register CoreGraphics platform
)
