package lock_test

import (
	"context"
	"fmt"
	"github.com/MatthiasKunnen/sessionlock/pkg/lock"
	"github.com/MatthiasKunnen/sessionlock/pkg/lock/locktest"
	"log"
	"os"
	"time"
)

func ExampleSessionLocker() {
	l := lock.NewSessionLocker(lock.WithTimeout(30 * time.Second))

	if err := l.Lock(context.Background()); err != nil {
		// The message is final and can be shown to the user as is.
		log.Printf("Failed to lock session: %v", err)
	}
}

func ExampleSessionLocker_fallback() {
	attempts := []lock.Attempt{
		{Program: "first-locker"},
		{Program: "second-locker", Args: []string{"--now"}},
	}
	invoker := locktest.NewInvoker(
		locktest.Exited(attempts[0], 1, "no display"),
		locktest.Exited(attempts[1], 2, ""),
	)

	l := lock.NewSessionLocker(
		lock.WithPlatform("plan9"),
		lock.WithResolver(func(lock.Platform) []lock.Attempt { return attempts }),
		lock.WithInvoker(invoker),
	)

	fmt.Println(l.Lock(context.Background()))
	// Output: command 'first-locker' failed: no display | command 'second-locker --now' failed: exit code: 2
}

func ExampleAttempts() {
	for _, attempt := range lock.Attempts(lock.PlatformLinux) {
		fmt.Println(attempt)
	}
	// Output:
	// loginctl lock-session
	// xdg-screensaver lock
	// gnome-screensaver-command -l
}

func ExampleLogindSession() {
	s, err := lock.NewLogindSession(os.Getenv("XDG_SESSION_ID"))
	if err != nil {
		log.Fatalf("Failed to initialize logind session: %v", err)
	}
	defer s.Close()

	lockedSignal := make(chan bool, 1)
	err = s.AddLockedSignal(lockedSignal)
	if err != nil {
		log.Fatalf("Failed to add locked signal: %v", err)
	}

	if err := s.Lock(context.Background()); err != nil {
		log.Fatalf("Failed to lock: %v", err)
	}

	select {
	case locked := <-lockedSignal:
		if locked {
			log.Println("The session is now locked")
		}
	case <-time.After(10 * time.Second):
		log.Println("No screen locker reacted to the lock request")
	}
}
