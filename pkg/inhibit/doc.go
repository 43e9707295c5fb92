// Package inhibit takes systemd-logind inhibitor locks using its D-Bus interface,
// [org.freedesktop.login1], and provides a SleepGuard that delays suspend until work, such as
// locking the session, has finished.
//
// [org.freedesktop.login1]: https://www.freedesktop.org/software/systemd/man/latest/org.freedesktop.login1.html
package inhibit
