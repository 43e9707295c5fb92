package lock

import (
	"runtime"
	"strings"
)

// Platform identifies the operating system family for which attempts are resolved.
// Values match runtime.GOOS.
type Platform string

const (
	PlatformDarwin  Platform = "darwin"
	PlatformLinux   Platform = "linux"
	PlatformWindows Platform = "windows"
)

// CurrentPlatform returns the platform the program is running on.
func CurrentPlatform() Platform {
	return Platform(runtime.GOOS)
}

// Supported reports whether at least one attempt exists for the platform.
func (p Platform) Supported() bool {
	return len(Attempts(p)) > 0
}

// Attempt is one candidate program, with its arguments, that might lock the session.
type Attempt struct {
	Program string   `yaml:"program"`
	Args    []string `yaml:"args,omitempty"`
}

func (a Attempt) String() string {
	if len(a.Args) == 0 {
		return a.Program
	}

	return a.Program + " " + strings.Join(a.Args, " ")
}

const (
	cgSessionPath     = "/System/Library/CoreServices/Menu Extras/User.menu/Contents/Resources/CGSession"
	lockKeystrokeExpr = `tell application "System Events" to keystroke "q" using {control down, command down}`
)

// Attempts returns the ordered list of programs to try in order to lock a session on the given
// platform. The first entry has the highest priority.
// A new slice is returned on every call. Unsupported platforms yield an empty list.
func Attempts(p Platform) []Attempt {
	switch p {
	case PlatformWindows:
		return []Attempt{
			{Program: "rundll32.exe", Args: []string{"user32.dll,LockWorkStation"}},
		}
	case PlatformDarwin:
		return []Attempt{
			{Program: cgSessionPath, Args: []string{"-suspend"}},
			{Program: "/usr/bin/osascript", Args: []string{"-e", lockKeystrokeExpr}},
			{Program: "/usr/bin/open", Args: []string{"-a", "ScreenSaverEngine"}},
			{Program: "/usr/bin/pmset", Args: []string{"displaysleepnow"}},
		}
	case PlatformLinux:
		return []Attempt{
			{Program: "loginctl", Args: []string{"lock-session"}},
			{Program: "xdg-screensaver", Args: []string{"lock"}},
			{Program: "gnome-screensaver-command", Args: []string{"-l"}},
		}
	default:
		return nil
	}
}
