package supervisor

import (
	"fmt"
	"time"
)

// FormatUptime renders d as "<H>h <M>m <S>s". Seconds are truncated, not rounded.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	sec := (d % time.Minute) / time.Second
	return fmt.Sprintf("%dh %dm %ds", int64(h), int64(m), int64(sec))
}
