package provenance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tensortrace/internal/record"
	"tensortrace/pkg/tensor"
)

type fakeOffsets map[string]uint64

func (f fakeOffsets) Lookup(name string) uint64 { return f[name] }

func TestClassifyNoBufferIsBuffer(t *testing.T) {
	src, id := Classify("x", tensor.Buffer{Present: false}, fakeOffsets{})
	require.Equal(t, record.MemorySourceBuffer, src)
	require.Equal(t, uint64(0), id)
}

func TestClassifyWeightsIsDisk(t *testing.T) {
	offsets := fakeOffsets{"blk.5.attn_q.weight": 4096}
	buf := tensor.Buffer{Present: true, Usage: tensor.BufferUsageWeights, Addr: 0x1000}
	src, id := Classify("blk.5.attn_q.weight", buf, offsets)
	require.Equal(t, record.MemorySourceDisk, src)
	require.Equal(t, uint64(4096), id)
}

func TestClassifyWeightsUnregisteredOffsetIsZero(t *testing.T) {
	buf := tensor.Buffer{Present: true, Usage: tensor.BufferUsageWeights, Addr: 0x1000}
	src, id := Classify("unregistered", buf, fakeOffsets{})
	require.Equal(t, record.MemorySourceDisk, src)
	require.Equal(t, uint64(0), id)
}

func TestClassifyComputeIsBufferWithStableID(t *testing.T) {
	buf := tensor.Buffer{Present: true, Usage: tensor.BufferUsageCompute, Addr: 0xcafe}
	src, id := Classify("kv_cache", buf, fakeOffsets{})
	require.Equal(t, record.MemorySourceBuffer, src)
	require.Equal(t, uint64(0xcafe), id)
}

func TestClassifyAnyIsBuffer(t *testing.T) {
	buf := tensor.Buffer{Present: true, Usage: tensor.BufferUsageAny, Addr: 0xbeef}
	src, id := Classify("scratch", buf, fakeOffsets{})
	require.Equal(t, record.MemorySourceBuffer, src)
	require.Equal(t, uint64(0xbeef), id)
}

func TestClassifyStableAcrossCalls(t *testing.T) {
	buf := tensor.Buffer{Present: true, Usage: tensor.BufferUsageCompute, Addr: 0x42}
	_, id1 := Classify("a", buf, fakeOffsets{})
	_, id2 := Classify("a", buf, fakeOffsets{})
	require.Equal(t, id1, id2)
}
