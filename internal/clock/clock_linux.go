//go:build linux

package clock

import "golang.org/x/sys/unix"

// nativeThreadID returns the Linux kernel thread id (gettid), stable for
// the lifetime of the calling OS thread.
func nativeThreadID() int64 {
	return int64(unix.Gettid())
}
