package secrets

import (
	"context"
	"fmt"
	"github.com/godbus/dbus/v5"
	"strings"
)

const (
	dbusDest             = "org.freedesktop.secrets"
	dbusServiceInterface = "org.freedesktop.Secret.Service"
	dbusPath             = "/org/freedesktop/secrets"
)

type Secrets struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

func New() (*Secrets, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	return &Secrets{
		conn: conn,
		obj:  conn.Object(dbusDest, dbusPath),
	}, nil
}

// Lock locks the given objects. The given objects are prepended by "/org/freedesktop/secrets/".
func (s *Secrets) Lock(ctx context.Context, paths []string) error {
	objs := make([]dbus.ObjectPath, len(paths))
	for i, path := range paths {
		objs[i] = objectPath(path)
	}

	return s.lock(ctx, objs)
}

// LockAll locks every collection of the Secret Service.
func (s *Secrets) LockAll(ctx context.Context) error {
	variant, err := s.obj.GetProperty(dbusServiceInterface + ".Collections")
	if err != nil {
		return fmt.Errorf("could not list collections: %w", err)
	}

	collections, ok := variant.Value().([]dbus.ObjectPath)
	if !ok {
		return fmt.Errorf("Collections property result is not an array of object paths")
	}

	if len(collections) == 0 {
		return nil
	}

	return s.lock(ctx, collections)
}

func (s *Secrets) lock(ctx context.Context, objs []dbus.ObjectPath) error {
	// Lock returns the objects that were locked and a prompt which is "/" if none is needed.
	var locked []dbus.ObjectPath
	var prompt dbus.ObjectPath
	err := s.obj.CallWithContext(ctx, dbusServiceInterface+".Lock", 0, objs).Store(&locked, &prompt)
	if err != nil {
		return fmt.Errorf("could not lock collections: %w", err)
	}

	if prompt != "/" && prompt != "" {
		return fmt.Errorf("locking requires user interaction through prompt %s", prompt)
	}

	return nil
}

func (s *Secrets) Close() error {
	return s.conn.Close()
}

func objectPath(path string) dbus.ObjectPath {
	return dbus.ObjectPath(dbusPath + "/" + strings.TrimPrefix(path, "/"))
}
