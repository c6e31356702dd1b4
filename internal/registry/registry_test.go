package registry

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"tensortrace/internal/record"
)

func TestExtractLayerID(t *testing.T) {
	cases := map[string]uint16{
		"blk.0.attn_q.weight":     0,
		"blk.5.attn_q.weight":     5,
		"blk.65535.ffn_up.weight": record.NoLayer, // >= 65535
		"blk.65535":               record.NoLayer,
		"token_embd.weight":       record.NoLayer,
		"blk.":                    record.NoLayer,
		"blk.x.weight":            record.NoLayer,
		"":                        record.NoLayer,
	}
	for name, want := range cases {
		require.Equal(t, want, ExtractLayerID(name), "name=%q", name)
	}
}

func TestExtractLayerIDFullRange(t *testing.T) {
	require.Equal(t, uint16(0), ExtractLayerID("blk.0.x"))
	require.Equal(t, uint16(65534), ExtractLayerID("blk.65534.x"))
}

func TestRegisterAndLookupRoundTrip(t *testing.T) {
	reg := New(1024, nil)
	reg.RegisterTensor("blk.5.attn_q.weight", 0x1000, 4096, 2048)
	reg.RegisterTensor("blk.6.attn_q.weight", 0x2000, 8192, 2048)

	require.Equal(t, uint32(0), reg.LookupIdx(0x1000))
	require.Equal(t, uint32(1), reg.LookupIdx(0x2000))
	require.Equal(t, record.NoTensorIdx, reg.LookupIdx(0x3000))
}

func TestRegisterTensorCapacityDrop(t *testing.T) {
	reg := New(1, nil)
	reg.RegisterTensor("a", 0x1, 0, 0)
	reg.RegisterTensor("b", 0x2, 0, 0) // dropped, registry full

	require.Equal(t, uint32(0), reg.LookupIdx(0x1))
	require.Equal(t, record.NoTensorIdx, reg.LookupIdx(0x2))
}

func TestDumpCSVRoundTrip(t *testing.T) {
	reg := New(16, nil)
	reg.RegisterTensor("blk.5.attn_q.weight", 0x1000, 4096, 2048)

	path := t.TempDir() + "/registry.csv"
	require.NoError(t, reg.DumpCSV(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "tensor_idx,tensor_name,data_ptr,file_offset,size_bytes,layer_id\n")
	require.Contains(t, string(data), "0,blk.5.attn_q.weight,4096,4096,2048,5\n")
}

func TestDiskOffsetMapZeroMeansNotRecorded(t *testing.T) {
	m := NewDiskOffsetMap(16, nil)
	require.Equal(t, uint64(0), m.Lookup("blk.5.attn_q.weight"))

	m.RegisterDiskOffset("blk.5.attn_q.weight", 4096)
	require.Equal(t, uint64(4096), m.Lookup("blk.5.attn_q.weight"))
}

func TestDiskOffsetMapCapacityDrop(t *testing.T) {
	m := NewDiskOffsetMap(1, nil)
	m.RegisterDiskOffset("a", 100)
	m.RegisterDiskOffset("b", 200)

	require.Equal(t, uint64(100), m.Lookup("a"))
	require.Equal(t, uint64(0), m.Lookup("b"))
}

func TestLongNameTruncatedInRegistry(t *testing.T) {
	reg := New(16, nil)
	name := "blk.1." + repeat("x", 100)
	reg.RegisterTensor(name, 0x1, 0, 0)
	entries := reg.All()
	require.Len(t, entries, 1)
	require.LessOrEqual(t, len(entries[0].Name), 63)
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
