package idle

import (
	"context"
	"errors"
	"fmt"
	"github.com/MatthiasKunnen/go-wayland/wayland/client"
	idleNotify "github.com/MatthiasKunnen/go-wayland/wayland/staging/ext-idle-notify-v1"
	"math"
	"sync"
	"time"
)

// WaylandDetector is a Detector backed by the compositor's ext-idle-notify-v1 implementation.
// All Wayland interaction happens on the goroutine that calls Run.
type WaylandDetector struct {
	timeout      time.Duration
	events       chan Event
	done         chan struct{}
	closeOnce    sync.Once
	display      *client.Display
	registry     *client.Registry
	seat         *client.Seat
	notifier     *idleNotify.IdleNotifier
	notification *idleNotify.IdleNotification
}

// NewWaylandDetector connects to the Wayland compositor and registers an idle notification for
// the given timeout. Call Run to start receiving events.
func NewWaylandDetector(timeout time.Duration) (*WaylandDetector, error) {
	timeoutMs := timeout.Milliseconds()
	switch {
	case timeoutMs > math.MaxUint32:
		return nil, fmt.Errorf("timeout too large, %d > %d", timeoutMs, math.MaxUint32)
	case timeoutMs < 0:
		timeoutMs = 0
	}

	d := &WaylandDetector{
		timeout: timeout,
		events:  make(chan Event, 1),
		done:    make(chan struct{}),
	}

	var err error
	d.display, err = client.Connect("")
	if err != nil {
		return nil, fmt.Errorf("error connecting to Wayland server: %w", err)
	}

	if err := d.bindGlobals(); err != nil {
		return nil, errors.Join(err, d.release())
	}

	d.notification, err = d.notifier.GetIdleNotification(uint32(timeoutMs), d.seat)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("unable to get idle notification: %w", err), d.release())
	}

	d.notification.SetIdledHandler(func(idleNotify.IdleNotificationIdledEvent) {
		d.emit(Idled)
	})
	d.notification.SetResumedHandler(func(idleNotify.IdleNotificationResumedEvent) {
		d.emit(Resumed)
	})

	return d, nil
}

// bindGlobals binds the idle notifier and the first announced seat.
func (d *WaylandDetector) bindGlobals() error {
	registry, err := d.display.GetRegistry()
	if err != nil {
		return fmt.Errorf("error getting Wayland registry: %w", err)
	}
	d.registry = registry

	binders := map[string]func(name, version uint32) error{
		idleNotify.IdleNotifierInterfaceName: func(name, version uint32) error {
			d.notifier = idleNotify.NewIdleNotifier(d.context())
			return registry.Bind(name, idleNotify.IdleNotifierInterfaceName, version, d.notifier)
		},
		client.SeatInterfaceName: func(name, version uint32) error {
			d.seat = client.NewSeat(d.context())
			return registry.Bind(name, client.SeatInterfaceName, version, d.seat)
		},
	}

	var bindErrs []error
	registry.SetGlobalHandler(func(e client.RegistryGlobalEvent) {
		bind, ok := binders[e.Interface]
		if !ok {
			return
		}
		// Only the first global of each interface is used.
		delete(binders, e.Interface)

		if err := bind(e.Name, e.Version); err != nil {
			bindErrs = append(bindErrs, fmt.Errorf("unable to bind %s: %w", e.Interface, err))
		}
	})

	// Globals are announced during the first roundtrip, the binds complete in the second.
	for range 2 {
		if err := d.display.Roundtrip(); err != nil {
			return fmt.Errorf("wayland roundtrip failed: %w", err)
		}
		if err := errors.Join(bindErrs...); err != nil {
			return err
		}
	}

	switch {
	case d.notifier == nil:
		return errors.New("compositor does not support ext-idle-notify-v1")
	case d.seat == nil:
		return errors.New("no seat was announced by the compositor")
	}

	return nil
}

func (d *WaylandDetector) context() *client.Context {
	return d.display.Context()
}

func (d *WaylandDetector) Events() <-chan Event {
	return d.events
}

func (d *WaylandDetector) Timeout() time.Duration {
	return d.timeout
}

// Run dispatches Wayland events until ctx is done. Canceling ctx closes the connection which
// unblocks the pending dispatch.
func (d *WaylandDetector) Run(ctx context.Context) error {
	defer close(d.events)

	stop := context.AfterFunc(ctx, func() {
		_ = d.shutdown()
	})
	defer stop()

	for {
		err := d.context().GetDispatch()()
		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			return nil
		}

		return errors.Join(fmt.Errorf("failed to dispatch Wayland events: %w", err), d.release())
	}
}

// emit runs on the dispatch goroutine.
func (d *WaylandDetector) emit(e Event) {
	select {
	case d.events <- e:
	case <-d.done:
	}
}

// release destroys the Wayland objects and closes the connection.
// Must be called on the dispatch goroutine, or before Run.
func (d *WaylandDetector) release() error {
	type step struct {
		what string
		run  func() error
	}

	var steps []step
	if d.notification != nil {
		steps = append(steps, step{"destroy idle notification", d.notification.Destroy})
	}
	if d.notifier != nil {
		steps = append(steps, step{"destroy " + idleNotify.IdleNotifierInterfaceName, d.notifier.Destroy})
	}
	if d.seat != nil {
		steps = append(steps, step{"release seat", d.seat.Release})
	}
	if d.display != nil {
		steps = append(steps, step{"destroy display", d.display.Destroy})
	}

	var errs []error
	for _, s := range steps {
		if err := s.run(); err != nil {
			errs = append(errs, fmt.Errorf("failed to %s: %w", s.what, err))
		}
	}

	return errors.Join(append(errs, d.shutdown())...)
}

// shutdown closes the connection. Safe to call from any goroutine, more than once.
func (d *WaylandDetector) shutdown() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.done)
		if d.display == nil {
			return
		}
		if closeErr := d.context().Close(); closeErr != nil {
			err = fmt.Errorf("error closing wayland connection: %w", closeErr)
		}
	})

	return err
}
