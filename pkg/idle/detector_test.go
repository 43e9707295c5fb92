package idle

import "testing"

func TestEventString(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{Idled, "idled"},
		{Resumed, "resumed"},
		{Event(0), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.event.String(); got != tt.want {
			t.Errorf("Event(%d).String() = %q, want %q", tt.event, got, tt.want)
		}
	}
}

func TestNewWaylandDetector_TimeoutTooLarge(t *testing.T) {
	// Rejected before any connection attempt.
	_, err := NewWaylandDetector(1 << 62)
	if err == nil {
		t.Fatal("NewWaylandDetector() error = nil, want error")
	}
}
