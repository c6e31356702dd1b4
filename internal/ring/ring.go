// Package ring implements the per-thread batcher: a fixed-length array of
// encoded operation records that a single goroutine fills and, once full,
// hands to the shared log sink as one reserved, memcpy'd commit (§4.3).
//
// A Ring is NOT safe for concurrent use — each OS thread (in Go terms, each
// long-lived worker goroutine pinned to its own call path) owns exactly one,
// matching the spec's "thread-local ring, not a shared lock-protected
// queue" design note (§9).
package ring

import (
	"time"

	"tensortrace/internal/metrics"
	"tensortrace/internal/record"
)

// Capacity is the number of 256-byte records held per ring (~128 KiB),
// chosen per §4.3 ("≥512, chosen so the buffer is ≈128 KiB").
const Capacity = 512

// Committer receives a filled batch of raw, encoded records and reserves
// space for them in the shared log. Implemented by *logsink.Sink.
type Committer interface {
	Commit(batch []byte) (ok bool)
}

// Ring is a thread-local batch of encoded operation records.
type Ring struct {
	buf   [Capacity * record.OperationSize]byte
	count int
	sink  Committer
}

// New creates a Ring that commits full batches to sink.
func New(sink Committer) *Ring {
	return &Ring{sink: sink}
}

// Emit copies rec into the next free slot. If the ring is now full, it
// triggers Commit. Never allocates.
func (r *Ring) Emit(rec record.OperationRecord) {
	off := r.count * record.OperationSize
	rec.Encode(r.buf[off : off+record.OperationSize])
	r.count++
	if r.count == Capacity {
		r.Commit()
	}
}

// Commit hands the current in-use prefix of the ring to the sink and
// resets the count to zero, regardless of whether the reservation
// succeeded (a refused reservation drops the batch per §4.3 — there is no
// retry path, and the ring must still be freed for reuse).
func (r *Ring) Commit() {
	if r.count == 0 {
		return
	}
	n := r.count * record.OperationSize
	start := time.Now()
	ok := r.sink.Commit(r.buf[:n])
	metrics.RecordCommit(ok, r.count, time.Since(start))
	r.count = 0
}

// Pending reports how many records are currently buffered, unflushed.
func (r *Ring) Pending() int {
	return r.count
}
