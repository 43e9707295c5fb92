package inhibit

import (
	"errors"
	"fmt"
	"github.com/godbus/dbus/v5"
	"io"
	"os"
	"strings"
)

const (
	dbusDest             = "org.freedesktop.login1"
	dbusManagerInterface = "org.freedesktop.login1.Manager"
	dbusPath             = "/org/freedesktop/login1"
)

type What string

const (
	WhatHandleHibernateKey What = "handle-hibernate-key"
	WhatHandleLidSwitch    What = "handle-lid-switch"
	WhatHandlePowerKey     What = "handle-power-key"
	WhatHandleSuspendKey   What = "handle-suspend-key"
	WhatIdle               What = "idle"
	WhatShutdown           What = "shutdown"
	WhatSleep              What = "sleep"
)

type Mode string

const (
	ModeBlock     Mode = "block"
	ModeBlockWeak Mode = "block-weak"
	ModeDelay     Mode = "delay"
)

// Inhibitor is a connection to logind's manager object on the system bus.
type Inhibitor struct {
	conn   *dbus.Conn
	login1 dbus.BusObject
}

func New() (*Inhibitor, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	return &Inhibitor{
		conn:   conn,
		login1: conn.Object(dbusDest, dbusPath),
	}, nil
}

// Inhibit creates an inhibition lock. It takes four parameters: what, who, why,
// and mode.
//   - what is one or more of actions that should be inhibited.
//   - who should be a short human-readable string identifying the application taking the lock.
//   - why should be a short human-readable string identifying the reason why the lock is taken.
//   - mode determines whether the inhibition shall be considered mandatory ("block") or whether it
//     should just delay the operation to a certain maximum time ("delay"),
//     while "block-weak" will create an inhibitor that is automatically ignored in some
//     circumstances.
//
// The lock is released the moment when the returned object and all its duplicates are closed.
func (i *Inhibitor) Inhibit(who string, why string, mode Mode, what ...What) (io.Closer, error) {
	if len(what) == 0 {
		return nil, errors.New("Inhibit: at least one What is required")
	}

	var fd dbus.UnixFD
	err := i.login1.
		Call(dbusManagerInterface+".Inhibit", 0, joinWhat(what), who, why, string(mode)).
		Store(&fd)
	if err != nil {
		return nil, fmt.Errorf("failed to create inhibit lock: %w", err)
	}

	return os.NewFile(uintptr(fd), "inhibit"), nil
}

// Close closes the system bus connection. Inhibitor locks that are still held stay valid until
// they are closed.
func (i *Inhibitor) Close() error {
	return i.conn.Close()
}

func joinWhat(elems []What) string {
	parts := make([]string, len(elems))
	for i, elem := range elems {
		parts[i] = string(elem)
	}

	return strings.Join(parts, ":")
}
