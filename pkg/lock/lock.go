package lock

import "context"

// Locker locks the current user session.
//
// A nil error means the lock was requested successfully. Otherwise, the error's message is a
// final, human-readable diagnostic that can be shown to the user as is.
//
// It is safe to call Lock concurrently; every call performs its own independent attempt.
type Locker interface {
	Lock(ctx context.Context) error
}

// StateReader reports whether the session is currently locked.
type StateReader interface {
	// Locked gets the current state of the session; true=Locked, false=unlocked.
	Locked() (bool, error)
}
