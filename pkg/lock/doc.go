// Package lock locks the current user session.
//
// The default implementation, [SessionLocker], tries a prioritized, platform-specific list of
// external programs until one of them succeeds. When every program fails, the returned error
// contains the diagnostic of each attempt in order.
//
// On Linux the session can also be locked in-process through systemd-logind using its D-Bus
// interface, [org.freedesktop.login1], see [NewLogindSession].
//
// [org.freedesktop.login1]: https://www.freedesktop.org/software/systemd/man/latest/org.freedesktop.login1.html
package lock
