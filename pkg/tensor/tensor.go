// Package tensor defines the view types the host tensor-runtime uses to
// describe a destination tensor and its sources when invoking the tracer.
// These are plain value types rather than interfaces: the operation logger
// sits on the hot path and must not allocate, so the runtime is expected to
// construct a View on the stack and pass it by value (or pointer) rather
// than box it behind an interface.
package tensor

// BufferUsage tags what kind of backend memory a buffer represents.
type BufferUsage uint8

const (
	// BufferUsageWeights marks memory-mapped model parameters.
	BufferUsageWeights BufferUsage = iota
	// BufferUsageCompute marks KV-cache, scratch, and activation memory.
	BufferUsageCompute
	// BufferUsageAny marks buffers with no specific classification.
	BufferUsageAny
)

// Buffer describes the backend buffer a tensor's data lives in.
type Buffer struct {
	// Present is false when the tensor carries no backend buffer
	// reference at all; the classifier treats this as BUFFER (§4.2).
	Present bool
	Usage   BufferUsage
	// Addr is the buffer's base address, used as its stable id.
	Addr uintptr
}

// ID returns the buffer's stable identifier: the integer value of its
// address, used verbatim as disk_offset_or_buffer_id for BUFFER-sourced
// tensors (§4.2).
func (b Buffer) ID() uint64 {
	return uint64(b.Addr)
}

// Source describes one source tensor referenced by an operation.
type Source struct {
	// Present is false for a fan-out slot the dispatcher left unused;
	// the logger stops filling Sources at the first absent slot.
	Present bool
	Name    string
	// DataAddr is zero when the source has no resolvable data address;
	// such a source is skipped entirely and does not count toward
	// num_sources (§4.4 step 5).
	DataAddr  uintptr
	ByteSize  uint32
	Buffer    Buffer
}

// MaxSources bounds the number of Source slots a View carries, matching
// internal/record.MaxSources (K=4, per §3).
const MaxSources = 4

// View describes the destination tensor of one elementary op: its name,
// data address, op-kind tag, and up to four source tensors.
type View struct {
	Name     string
	DataAddr uintptr
	OpKind   uint8
	Sources  [MaxSources]Source
	// NumSources is the number of valid entries at the front of Sources;
	// entries beyond it are ignored even if Present is set.
	NumSources int
}
