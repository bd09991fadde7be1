package platform

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Factory opens a platform implementation.
type Factory func(logger *slog.Logger) (Platform, error)

// Registration describes a platform implementation.
type Registration struct {
	Factory Factory
	// Native marks implementations backed by the real OS input stack. The
	// default platform is the native one when registered.
	Native bool
}

var (
	registry   = make(map[string]Registration)
	registryMu sync.RWMutex
)

// Register registers a platform implementation. This should be called from
// implementation package init() functions. Names are case-insensitive.
func Register(name string, reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = reg
}

// Names returns the registered platform names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultName returns the name of the native platform, or "" when none is registered.
func DefaultName() string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for n, reg := range registry {
		if reg.Native {
			return n
		}
	}
	return ""
}

// Open opens the named platform. An empty name opens the native platform.
func Open(name string, logger *slog.Logger) (Platform, error) {
	if name == "" {
		name = DefaultName()
		if name == "" {
			return nil, fmt.Errorf("%w (available: %s)", ErrUnsupported, strings.Join(Names(), ", "))
		}
	}
	registryMu.RLock()
	reg, ok := registry[strings.ToLower(name)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown platform %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return reg.Factory(logger)
}
