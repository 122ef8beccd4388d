package voting

import "time"

// Clock returns the current time in unix seconds. It must be monotonically
// non-decreasing.
type Clock interface {
	Now() uint64
}

// SystemClock is a Clock backed by the system time
type SystemClock struct{}

// Now implements the Clock interface
func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}
