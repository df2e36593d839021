// Package timesync derives locally displayed countdowns from server-issued
// absolute expiry instants. Remaining time is always recomputed from the
// absolute timestamp, never by decrementing a counter, so a stalled ticker
// can not drift the display away from server truth.
package timesync

import (
	"time"
)

// Remaining returns the whole seconds left until expiry, rounded up, never
// negative. The expiry instant comes from the server; now comes from the
// local clock. Client clock offset cancels out as long as both question
// start and expiry were derived from the same server reference.
func Remaining(expiry, now time.Time) int {
	if expiry.IsZero() {
		return 0
	}
	d := expiry.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

// Expired reports whether the expiry instant has passed.
func Expired(expiry, now time.Time) bool {
	return !expiry.IsZero() && !now.Before(expiry)
}
