//go:build !linux

package clock

import (
	"bytes"
	"runtime"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// nativeThreadID falls back to a hash of the calling goroutine's id on
// platforms with no gettid-equivalent wired up here, per §7's platform
// fallback policy. It is stable for the goroutine's lifetime, which is the
// best available proxy for "native thread handle" without cgo.
func nativeThreadID() int64 {
	return int64(xxhash.Sum64([]byte(strconv.FormatUint(goroutineID(), 10))))
}

// goroutineID extracts the numeric id Go's runtime prints at the head of
// a stack trace (e.g. "goroutine 7 ["). Not a public API; acceptable here
// only as a last-resort fallback, never on the hot path of a supported
// platform.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
