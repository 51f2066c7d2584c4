package drive

import "time"

// Clock abstracts wall time and bounded sleeps so the watchdog and the
// kick/brake holds are deterministic under test.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock returns the real clock.
func SystemClock() Clock { return systemClock{} }
