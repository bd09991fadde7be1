// Package registry links every available platform implementation into the binary.
package registry

import (
	_ "github.com/Alia5/ghostkey/platform/sim" // Register simulated platform
)
