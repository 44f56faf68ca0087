package durations_test

import (
	"testing"

	"movienight/utils/durations"
)

func TestMinutes(t *testing.T) {
	tests := []struct {
		input   string
		minutes int
		ok      bool
	}{
		{"1h 43m", 103, true},
		{"2h", 120, true},
		{"95m", 95, true},
		{"2H 11M", 131, true},
		{"  1h 0m  ", 60, true},
		{"", 0, false},
		{"   ", 0, false},
		{"soon", 0, false},
		{"1h 43", 0, false},
		{"-1h", 0, false},
		{"xh", 0, false},
	}

	for _, tt := range tests {
		minutes, ok := durations.Minutes(tt.input)
		if minutes != tt.minutes || ok != tt.ok {
			t.Errorf("Minutes(%q) = %d, %v; want %d, %v", tt.input, minutes, ok, tt.minutes, tt.ok)
		}
	}
}
