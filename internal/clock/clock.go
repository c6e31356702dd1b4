// Package clock provides the tracer's time and thread-id source: monotonic
// nanoseconds relative to trace start, and a stable 16-bit identifier for
// the calling OS thread.
package clock

import (
	"time"
)

// Clock produces monotonic nanosecond timestamps relative to the moment it
// was started. It has no shared mutable state beyond the start instant, so
// reads from any goroutine are safe without synchronization.
type Clock struct {
	start time.Time
}

// New returns a Clock anchored at the current instant.
func New() *Clock {
	return &Clock{start: time.Now()}
}

// NowNs returns nanoseconds elapsed since the clock was created.
func (c *Clock) NowNs() uint64 {
	return uint64(time.Since(c.start).Nanoseconds())
}

// ThreadID returns a stable 16-bit identifier for the calling OS thread: the
// low 16 bits of the platform's native thread id (e.g. Linux gettid), or
// the low 16 bits of a hash of the calling goroutine's id on platforms where
// no such syscall is wired up, per §7's platform fallback policy. Truncation means distinct
// OS threads may collide in the low 16 bits; timestamp_ns remains the
// primary cross-thread ordering signal, thread_id only a tie-breaker.
func ThreadID() uint16 {
	return uint16(nativeThreadID())
}
