// Package lifecycle implements the buffer-lifecycle logger: one JSON line
// per allocation/deallocation event, flushed after every write so a crash
// does not lose lifecycle context (§4.5).
package lifecycle

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	pkgerrors "tensortrace/pkg/errors"
)

// Writer appends buffer lifecycle events to a UTF-8, newline-delimited
// JSON stream. Safe for concurrent use: writes are serialized by mu,
// mirroring the platform file descriptor's own lock that the spec treats
// as sufficient (§4.3 "Thread safety").
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	buf *bufio.Writer
}

// Open creates (or truncates) path for the buffer-event stream.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, pkgerrors.ConfigError("open", "failed to open buffer-event stream").Wrap(err)
	}
	return &Writer{f: f, buf: bufio.NewWriter(f)}, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// LogAlloc appends one alloc event line.
func (w *Writer) LogAlloc(timestampNs uint64, bufferID, bufferPtr, size uint64, name, backend string, usage uint8, layer uint16) error {
	line := fmt.Sprintf(
		`{"timestamp_ms":%f,"event":"alloc","buffer_id":%d,"buffer_ptr":%d,"size":%d,"name":%q,"backend":%q,"usage":%d,"layer":%d}`+"\n",
		float64(timestampNs)/1e6, bufferID, bufferPtr, size, orDefault(name, "unnamed"), orDefault(backend, "unknown"), usage, layer,
	)
	return w.writeLine(line)
}

// LogDealloc appends one dealloc event line.
func (w *Writer) LogDealloc(timestampNs uint64, bufferID uint64) error {
	line := fmt.Sprintf(
		`{"timestamp_ms":%f,"event":"dealloc","buffer_id":%d}`+"\n",
		float64(timestampNs)/1e6, bufferID,
	)
	return w.writeLine(line)
}

func (w *Writer) writeLine(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.buf.WriteString(line); err != nil {
		return err
	}
	return w.buf.Flush()
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf != nil {
		_ = w.buf.Flush()
	}
	return w.f.Close()
}
