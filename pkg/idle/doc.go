// Package idle reports when the user has been idle for a given duration.
// The default implementation uses the Wayland [ext-idle-notify-v1] protocol.
//
// [ext-idle-notify-v1]: https://wayland.app/protocols/ext-idle-notify-v1
package idle
