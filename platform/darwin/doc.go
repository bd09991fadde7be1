// Package darwin binds the injection engine to macOS: CGEventSource for posting,
// CGEventTap for interception and a dedicated CFRunLoop thread that delivers
// both tap callbacks and scheduled work.
//
// The implementation requires cgo. The process needs the Accessibility (or
// Input Monitoring) permission to create an active keyboard tap; macOS never
// grants it automatically.
package darwin

// Name is the registry name of the macOS platform.
const Name = "darwin"
