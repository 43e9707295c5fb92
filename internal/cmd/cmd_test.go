package cmd

import (
	"bytes"
	"context"
	"github.com/MatthiasKunnen/sessionlock/internal/config"
	"github.com/MatthiasKunnen/sessionlock/pkg/lock"
	"github.com/MatthiasKunnen/sessionlock/pkg/lock/locktest"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	"runtime"
	"strings"
	"testing"
)

// executeCommand runs a fresh command tree with args and returns captured output.
func executeCommand(t *testing.T, a *app, args ...string) (stdout string, stderr string, err error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if a == nil {
		a = &app{}
	}
	a.v = viper.New()

	root := newRootCommand(a)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	root := NewRootCommand()
	if root.Use != "sessionlock" {
		t.Errorf("Use = %q, want %q", root.Use, "sessionlock")
	}

	cmds := make(map[string]bool)
	for _, c := range root.Commands() {
		cmds[c.Name()] = true
	}
	for _, name := range []string{"lock", "attempts", "watch"} {
		if !cmds[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestAttemptsCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, nil, "attempts", "--platform", "darwin")
	if err != nil {
		t.Fatalf("attempts error = %v", err)
	}

	var out attemptsOutput
	if err := yaml.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, stdout)
	}

	if out.Platform != lock.PlatformDarwin || !out.Supported {
		t.Errorf("platform = %q, supported = %v", out.Platform, out.Supported)
	}
	want := lock.Attempts(lock.PlatformDarwin)
	if len(out.Attempts) != len(want) {
		t.Fatalf("got %d attempts, want %d", len(out.Attempts), len(want))
	}
	for i := range want {
		if out.Attempts[i].String() != want[i].String() {
			t.Errorf("attempt %d = %q, want %q", i, out.Attempts[i], want[i])
		}
	}
}

func TestAttemptsCommand_DefaultPlatform(t *testing.T) {
	stdout, _, err := executeCommand(t, nil, "attempts")
	if err != nil {
		t.Fatalf("attempts error = %v", err)
	}
	if !strings.Contains(stdout, "platform: "+runtime.GOOS) {
		t.Errorf("output = %q, want the running platform", stdout)
	}
}

func TestAttemptsCommand_Unsupported(t *testing.T) {
	stdout, _, err := executeCommand(t, nil, "attempts", "-p", "plan9")
	if err != nil {
		t.Fatalf("attempts error = %v", err)
	}
	if !strings.Contains(stdout, "supported: false") || !strings.Contains(stdout, "attempts: []") {
		t.Errorf("output = %q, want an empty unsupported list", stdout)
	}
}

func TestLockCommand_Success(t *testing.T) {
	invoker := locktest.NewInvoker(locktest.Succeeded())

	_, _, err := executeCommand(t, &app{invoker: invoker}, "lock")
	if !lock.CurrentPlatform().Supported() {
		if err == nil || err.Error() != lock.ErrUnsupportedPlatform.Error() {
			t.Fatalf("lock error = %v, want %v", err, lock.ErrUnsupportedPlatform)
		}
		return
	}

	if err != nil {
		t.Fatalf("lock error = %v", err)
	}
	if got := len(invoker.Calls()); got != 1 {
		t.Errorf("invoker called %d times, want 1", got)
	}
}

func TestLockCommand_AllFail(t *testing.T) {
	if !lock.CurrentPlatform().Supported() {
		t.Skip("no attempts on this platform")
	}

	invoker := locktest.NewInvoker()
	invoker.Default = lock.ProcessResult{Err: &lock.ExitError{Attempt: lock.Attempt{Program: "x"}}}

	_, _, err := executeCommand(t, &app{invoker: invoker}, "lock", "--log-level", "error")
	if err == nil {
		t.Fatal("lock error = nil, want error")
	}

	n := len(lock.Attempts(lock.CurrentPlatform()))
	if got := strings.Count(err.Error(), lock.AttemptSeparator) + 1; got != n {
		t.Errorf("diagnostic has %d segments, want %d: %q", got, n, err)
	}
}

func TestLockCommand_InvalidBackend(t *testing.T) {
	_, _, err := executeCommand(t, nil, "lock", "--backend", "telepathy")
	if err == nil || !strings.Contains(err.Error(), "lock.backend") {
		t.Fatalf("lock error = %v, want backend validation error", err)
	}
}

func TestWatchCommand_NothingToWatch(t *testing.T) {
	_, _, err := executeCommand(t, nil, "watch", "--idle-timeout", "0", "--lock-before-sleep=false")
	if err == nil || !strings.Contains(err.Error(), "nothing to watch") {
		t.Fatalf("watch error = %v, want nothing to watch", err)
	}
}

func TestWatchCommand_FlagDefaults(t *testing.T) {
	a := &app{v: viper.New()}
	watch := newWatchCommand(a)

	for name, want := range map[string]string{
		"idle-timeout":      config.DefaultIdleTimeout.String(),
		"cooldown":          config.DefaultCooldown.String(),
		"lock-before-sleep": "true",
	} {
		f := watch.Flags().Lookup(name)
		if f == nil {
			t.Errorf("missing flag --%s", name)
			continue
		}
		if f.DefValue != want {
			t.Errorf("--%s default = %q, want %q", name, f.DefValue, want)
		}
	}

	if got := config.DefaultIdleTimeout.String(); got != "5m0s" {
		t.Errorf("DefaultIdleTimeout = %s, want 5m0s", got)
	}
}

func TestClosers(t *testing.T) {
	var order []int
	c := closers{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return nil },
	}

	if err := c.close(); err != nil {
		t.Fatalf("close() = %v", err)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("close order = %v, want [2 1]", order)
	}
}
