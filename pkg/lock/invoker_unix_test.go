//go:build unix

package lock_test

import (
	"context"
	"errors"
	"github.com/MatthiasKunnen/sessionlock/pkg/lock"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func shell(script string) lock.Attempt {
	return lock.Attempt{Program: "sh", Args: []string{"-c", script}}
}

func TestExecInvoker_Success(t *testing.T) {
	requireShell(t)

	res := lock.ExecInvoker{}.Invoke(context.Background(), shell("exit 0"))
	if !res.Success {
		t.Fatalf("Success = false, err = %v", res.Err)
	}
	if res.Err != nil {
		t.Errorf("Err = %v, want nil", res.Err)
	}
	if res.ExitCode == nil || *res.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", res.ExitCode)
	}
}

func TestExecInvoker_StderrIsDiagnostic(t *testing.T) {
	requireShell(t)

	res := lock.ExecInvoker{}.Invoke(context.Background(), shell("echo '  no session found  ' >&2; exit 3"))
	if res.Success {
		t.Fatal("Success = true, want false")
	}
	if res.ExitCode == nil || *res.ExitCode != 3 {
		t.Errorf("ExitCode = %v, want 3", res.ExitCode)
	}
	if res.Stderr != "no session found" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "no session found")
	}

	var exitErr *lock.ExitError
	if !errors.As(res.Err, &exitErr) {
		t.Fatalf("Err = %T, want *lock.ExitError", res.Err)
	}
	if !strings.HasSuffix(res.Err.Error(), "failed: no session found") {
		t.Errorf("Err = %q, want stderr as detail", res.Err)
	}
}

func TestExecInvoker_ExitCodeWithoutStderr(t *testing.T) {
	requireShell(t)

	res := lock.ExecInvoker{}.Invoke(context.Background(), shell("exit 1"))
	if res.Success {
		t.Fatal("Success = true, want false")
	}
	if !strings.HasSuffix(res.Err.Error(), "failed: exit code: 1") {
		t.Errorf("Err = %q, want exit code detail", res.Err)
	}
}

func TestExecInvoker_Signaled(t *testing.T) {
	requireShell(t)

	res := lock.ExecInvoker{}.Invoke(context.Background(), shell("kill -KILL $$"))
	if res.Success {
		t.Fatal("Success = true, want false")
	}
	if res.ExitCode != nil {
		t.Errorf("ExitCode = %d, want nil", *res.ExitCode)
	}
	if !strings.Contains(res.Err.Error(), "exit code: none (terminated by SIGKILL") {
		t.Errorf("Err = %q, want explicit absence of exit code", res.Err)
	}
}

func TestExecInvoker_ProgramNotFound(t *testing.T) {
	attempt := lock.Attempt{Program: "nonexistent-locker-xyz-123"}
	res := lock.ExecInvoker{}.Invoke(context.Background(), attempt)
	if res.Success {
		t.Fatal("Success = true, want false")
	}

	var spawnErr *lock.SpawnError
	if !errors.As(res.Err, &spawnErr) {
		t.Fatalf("Err = %T, want *lock.SpawnError", res.Err)
	}
	if !strings.Contains(res.Err.Error(), "nonexistent-locker-xyz-123") {
		t.Errorf("Err = %q, want to mention the program", res.Err)
	}
	if !errors.Is(res.Err, exec.ErrNotFound) {
		t.Errorf("errors.Is(Err, exec.ErrNotFound) = false")
	}
}

func TestExecInvoker_TimeoutKills(t *testing.T) {
	requireShell(t)

	l := lock.NewSessionLocker(
		lock.WithPlatform("synthetic"),
		lock.WithResolver(func(lock.Platform) []lock.Attempt {
			return []lock.Attempt{{Program: "sleep", Args: []string{"30"}}}
		}),
		lock.WithTimeout(100*time.Millisecond),
	)

	err := l.Lock(context.Background())
	if err == nil {
		t.Fatal("Lock() = nil, want error")
	}
	if !strings.Contains(err.Error(), "exit code: none") {
		t.Errorf("Lock() = %q, want killed process without exit code", err)
	}
}

func TestExecInvoker_TimeoutWithBackgroundChild(t *testing.T) {
	requireShell(t)

	// The background sleep inherits stderr and outlives the killed shell.
	l := lock.NewSessionLocker(
		lock.WithPlatform("synthetic"),
		lock.WithResolver(func(lock.Platform) []lock.Attempt {
			return []lock.Attempt{shell("sleep 4 & sleep 4")}
		}),
		lock.WithTimeout(100*time.Millisecond),
	)

	start := time.Now()
	err := l.Lock(context.Background())
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Lock() = nil, want error")
	}
	if elapsed > 2*time.Second {
		t.Errorf("Lock() took %s, want it to return shortly after the timeout", elapsed)
	}
	if !strings.Contains(err.Error(), "exit code: none") {
		t.Errorf("Lock() = %q, want killed process without exit code", err)
	}
}
