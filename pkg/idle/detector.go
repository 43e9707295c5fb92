package idle

import (
	"context"
	"time"
)

// Event is a change in the user's activity.
type Event int

const (
	// Idled means the user has been idle for at least the configured duration.
	Idled Event = iota + 1
	// Resumed means the user is active again after having idled.
	Resumed
)

func (e Event) String() string {
	switch e {
	case Idled:
		return "idled"
	case Resumed:
		return "resumed"
	default:
		return "unknown"
	}
}

// Detector emits Events for a single idle timeout.
type Detector interface {
	// Events returns the channel on which events are delivered. It is closed when Run returns.
	Events() <-chan Event

	// Run processes events until ctx is done or the connection fails.
	// It releases all resources before returning.
	Run(ctx context.Context) error

	// Timeout is the duration of inactivity after which Idled is emitted.
	Timeout() time.Duration
}
