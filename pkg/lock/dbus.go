package lock

import (
	"context"
	"errors"
	"fmt"
	"github.com/godbus/dbus/v5"
	"sync"
)

const (
	dbusDest             = "org.freedesktop.login1"
	dbusManagerInterface = "org.freedesktop.login1.Manager"
	dbusSessionInterface = "org.freedesktop.login1.Session"
	dbusPath             = "/org/freedesktop/login1"
)

// LogindSession is a systemd-logind session accessed over D-Bus.
// It implements Locker and StateReader, and can notify of changes to the session's LockedHint.
//
// It is safe to call LogindSession's methods concurrently.
type LogindSession struct {
	conn               *dbus.Conn
	session            dbus.BusObject
	muSignals          sync.Mutex
	closeSignalHandler chan struct{}

	lockedHintSignals       map[chan<- bool]struct{}
	propertiesChangedActive bool
}

// NewLogindSession connects to the system bus and resolves the [org.freedesktop.login1]
// session with the given ID.
//
// sessionId is the ID of the session. Usually set to the XDG_SESSION_ID env var.
//
// [org.freedesktop.login1]: https://www.freedesktop.org/software/systemd/man/latest/org.freedesktop.login1.html
func NewLogindSession(sessionId string) (*LogindSession, error) {
	if sessionId == "" {
		return nil, errors.New("sessionId is empty")
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	var sessionPath dbus.ObjectPath
	err = conn.Object(dbusDest, dbusPath).
		Call(dbusManagerInterface+".GetSession", 0, sessionId).
		Store(&sessionPath)
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to find session %q: %w", sessionId, err),
			conn.Close(),
		)
	}

	result := &LogindSession{
		conn:               conn,
		session:            conn.Object(dbusDest, sessionPath),
		lockedHintSignals:  make(map[chan<- bool]struct{}),
		closeSignalHandler: make(chan struct{}),
	}

	c := make(chan *dbus.Signal, 8)
	conn.Signal(c)
	go func() {
		for {
			select {
			case <-result.closeSignalHandler:
				conn.RemoveSignal(c)
				return
			case v := <-c:
				result.handleIncomingSignal(v)
			}
		}
	}()

	return result, nil
}

// Lock asks logind to lock the session. The screen locker registered for the session performs
// the actual locking.
func (ls *LogindSession) Lock(ctx context.Context) error {
	err := ls.session.CallWithContext(ctx, dbusSessionInterface+".Lock", 0).Err
	if err != nil {
		return fmt.Errorf("could not lock session through logind: %w", err)
	}

	return nil
}

func (ls *LogindSession) Locked() (bool, error) {
	variant, err := ls.session.GetProperty(dbusSessionInterface + ".LockedHint")
	if err != nil {
		return false, fmt.Errorf("could not get locked hint: %w", err)
	}

	lockedHint, ok := variant.Value().(bool)
	if !ok {
		return false, fmt.Errorf("LockedHint property result is not a boolean")
	}

	return lockedHint, nil
}

// AddLockedSignal registers a channel that will be notified when the session is locked (true)
// or unlocked (false).
// Writing to this channel does not block.
// Use a buffered channel if you don't want to miss anything.
func (ls *LogindSession) AddLockedSignal(c chan<- bool) error {
	if c == nil {
		return errors.New("AddLockedSignal: channel cannot be nil")
	}

	ls.muSignals.Lock()
	defer ls.muSignals.Unlock()
	ls.lockedHintSignals[c] = struct{}{}

	if !ls.propertiesChangedActive {
		if err := ls.conn.AddMatchSignal(ls.propertiesChangedMatch()...); err != nil {
			return fmt.Errorf("failed to register Dbus signal for LockedHint: %w", err)
		}

		ls.propertiesChangedActive = true
	}

	return nil
}

// RemoveLockedSignal unregisters a channel previously registered with AddLockedSignal.
// RemoveLockedSignal can be safely called with an unregistered channel.
func (ls *LogindSession) RemoveLockedSignal(c chan<- bool) error {
	if c == nil {
		return errors.New("RemoveLockedSignal: channel cannot be nil")
	}

	ls.muSignals.Lock()
	defer ls.muSignals.Unlock()

	delete(ls.lockedHintSignals, c)

	if len(ls.lockedHintSignals) == 0 {
		return ls.removePropertiesChangedSignal()
	}

	return nil
}

func (ls *LogindSession) propertiesChangedMatch() []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchObjectPath(ls.session.Path()),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchSender(dbusDest),
		dbus.WithMatchMember("PropertiesChanged"),
	}
}

// removePropertiesChangedSignal Removes the PropertiesChanged match if it was registered.
// Holding the muSignals mutex is required.
func (ls *LogindSession) removePropertiesChangedSignal() error {
	if !ls.propertiesChangedActive {
		return nil
	}

	if err := ls.conn.RemoveMatchSignal(ls.propertiesChangedMatch()...); err != nil {
		return fmt.Errorf("failed to remove Dbus PropertiesChanged signal: %w", err)
	}

	ls.propertiesChangedActive = false

	return nil
}

func (ls *LogindSession) Close() error {
	ls.muSignals.Lock()
	defer ls.muSignals.Unlock()

	clear(ls.lockedHintSignals)
	err := ls.removePropertiesChangedSignal()

	close(ls.closeSignalHandler)
	return errors.Join(err, ls.conn.Close())
}

func (ls *LogindSession) handleIncomingSignal(s *dbus.Signal) {
	if s == nil {
		// Seems to happen on close
		return
	}

	if s.Path != ls.session.Path() || s.Name != "org.freedesktop.DBus.Properties.PropertiesChanged" {
		return
	}

	isLocked, ok := lockedHintChange(s.Body)
	if !ok {
		return
	}

	ls.muSignals.Lock()
	defer ls.muSignals.Unlock()

	for c := range ls.lockedHintSignals {
		select {
		case c <- isLocked:
		default:
		}
	}
}

// lockedHintChange extracts the new LockedHint from the body of a PropertiesChanged signal.
func lockedHintChange(body []interface{}) (locked bool, ok bool) {
	if len(body) < 2 {
		return false, false
	}

	changedProperties, ok := body[1].(map[string]dbus.Variant)
	if !ok {
		return false, false
	}

	lockedHintProperty, ok := changedProperties["LockedHint"]
	if !ok {
		return false, false
	}

	locked, ok = lockedHintProperty.Value().(bool)
	return locked, ok
}
