// Package provenance classifies a source tensor's backend buffer as
// DISK (memory-mapped model weights) or BUFFER (runtime compute memory),
// per §4.2.
package provenance

import (
	"tensortrace/internal/record"
	"tensortrace/pkg/tensor"
)

// OffsetLookup resolves a tensor name to its on-disk offset, or 0 if not
// recorded. Implemented by *registry.DiskOffsetMap.
type OffsetLookup interface {
	Lookup(name string) uint64
}

// Classify returns the memory source for src and the value its
// disk_offset_or_buffer_id field should carry.
//
//   - no backend buffer at all → BUFFER (default, safe)
//   - WEIGHTS usage            → DISK, offset from offsets.Lookup(name) (0 if absent)
//   - COMPUTE or ANY usage     → BUFFER, offset is the buffer's address as a stable id
func Classify(name string, buf tensor.Buffer, offsets OffsetLookup) (record.MemorySource, uint64) {
	if !buf.Present {
		return record.MemorySourceBuffer, 0
	}
	if buf.Usage == tensor.BufferUsageWeights {
		return record.MemorySourceDisk, offsets.Lookup(name)
	}
	return record.MemorySourceBuffer, buf.ID()
}
