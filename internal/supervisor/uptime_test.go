package supervisor

import (
	"testing"
	"time"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0h 0m 0s"},
		{-5 * time.Second, "0h 0m 0s"},
		{999 * time.Millisecond, "0h 0m 0s"},
		{59*time.Second + 999*time.Millisecond, "0h 0m 59s"},
		{time.Minute, "0h 1m 0s"},
		{time.Hour, "1h 0m 0s"},
		{25*time.Hour + time.Minute + time.Second, "25h 1m 1s"},
		{3*time.Hour + 59*time.Minute + 59*time.Second + 500*time.Millisecond, "3h 59m 59s"},
	}
	for _, tt := range tests {
		if got := FormatUptime(tt.in); got != tt.want {
			t.Errorf("FormatUptime(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
