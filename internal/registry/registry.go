// Package registry implements the tracer's two load-time side tables: the
// tensor registry (data address → dense index, plus metadata) and the
// disk-offset map (tensor name → byte offset in the source GGUF file).
//
// Both are append-only, sharded hash tables keyed with xxhash, modeled on
// the sharded-locking design used for high-concurrency binary stores
// elsewhere in the retrieval pack: registration happens once at model load
// (single-threaded, per §4.1), but lookups happen on every op, from every
// worker thread, for the life of the trace — a single global RWMutex would
// serialize all of them behind one cache line.
package registry

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"

	"tensortrace/internal/metrics"
	"tensortrace/internal/record"
)

const numShards = 16

// Entry is one registered tensor's metadata.
type Entry struct {
	DataAddr   uintptr
	Name       string
	FileOffset uint64
	SizeBytes  uint32
	LayerID    uint16
	TensorIdx  uint32
}

type shard struct {
	mu      sync.RWMutex
	byAddr  map[uintptr]uint32 // index into entries
	entries []Entry
}

// Registry is the tensor registry: addr→index resolution plus per-index
// metadata, with a fixed capacity per §4.1 ("capacity exhausted... logs a
// warning... and returns without storing; it never aborts").
type Registry struct {
	capacity int
	shards   [numShards]*shard
	count    int64 // approximate, guarded by countMu
	countMu  sync.Mutex
	logger   *logrus.Logger
	warnedFull bool
}

// New creates a Registry with the given total capacity across all shards.
func New(capacity int, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = defaultLogger()
	}
	r := &Registry{capacity: capacity, logger: logger}
	for i := range r.shards {
		r.shards[i] = &shard{byAddr: make(map[uintptr]uint32)}
	}
	return r
}

func defaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	return l
}

func addrShardIndex(addr uintptr) int {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(addr))
	return int(xxhash.Sum64(b[:]) % uint64(numShards))
}

// RegisterTensor appends a new registry entry. If the registry is at
// capacity, it logs a warning and returns without storing (§4.1).
func (r *Registry) RegisterTensor(name string, dataAddr uintptr, fileOffset uint64, sizeBytes uint32) {
	r.countMu.Lock()
	if int(r.count) >= r.capacity {
		r.countMu.Unlock()
		if !r.warnedFull {
			r.warnedFull = true
			r.logger.WithFields(logrus.Fields{
				"component": "registry",
				"capacity":  r.capacity,
			}).Warn("tensor registry full, dropping registration")
		}
		return
	}
	idx := uint32(r.count)
	r.count++
	r.countMu.Unlock()

	s := r.shards[addrShardIndex(dataAddr)]
	entry := Entry{
		DataAddr:   dataAddr,
		Name:       truncateToRegistryName(name),
		FileOffset: fileOffset,
		SizeBytes:  sizeBytes,
		LayerID:    ExtractLayerID(name),
		TensorIdx:  idx,
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.byAddr[dataAddr] = uint32(len(s.entries) - 1)
	s.mu.Unlock()

	metrics.RegistrySize.Set(float64(idx + 1))
}

// LookupIdx returns the tensor_idx registered for dataAddr, or
// record.NoTensorIdx if no such address is registered.
func (r *Registry) LookupIdx(dataAddr uintptr) uint32 {
	s := r.shards[addrShardIndex(dataAddr)]
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byAddr[dataAddr]
	if !ok {
		return record.NoTensorIdx
	}
	return s.entries[i].TensorIdx
}

// All returns a snapshot of every registered entry, ordered by tensor_idx.
func (r *Registry) All() []Entry {
	out := make([]Entry, 0, r.count)
	for _, s := range r.shards {
		s.mu.RLock()
		out = append(out, s.entries...)
		s.mu.RUnlock()
	}
	// Stable ordering by assignment order.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].TensorIdx < out[j-1].TensorIdx; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// DumpCSV writes the registry dump CSV described in §4.1/§6:
// tensor_idx,tensor_name,data_ptr,file_offset,size_bytes,layer_id
func (r *Registry) DumpCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString("tensor_idx,tensor_name,data_ptr,file_offset,size_bytes,layer_id\n"); err != nil {
		return err
	}
	for _, e := range r.All() {
		line := fmt.Sprintf("%d,%s,%d,%d,%d,%d\n",
			e.TensorIdx, e.Name, e.DataAddr, e.FileOffset, e.SizeBytes, e.LayerID)
		if _, err := f.WriteString(line); err != nil {
			return err
		}
	}
	return nil
}

// DiskOffsetMap is the tracer's name→file-offset side table, populated at
// model load before (or independent of) data addresses existing (§4.1).
type DiskOffsetMap struct {
	capacity   int
	shards     [numShards]*offsetShard
	count      int64
	countMu    sync.Mutex
	logger     *logrus.Logger
	warnedFull bool
}

type offsetShard struct {
	mu      sync.RWMutex
	offsets map[string]uint64
}

// NewDiskOffsetMap creates a DiskOffsetMap with the given total capacity.
func NewDiskOffsetMap(capacity int, logger *logrus.Logger) *DiskOffsetMap {
	if logger == nil {
		logger = defaultLogger()
	}
	m := &DiskOffsetMap{capacity: capacity, logger: logger}
	for i := range m.shards {
		m.shards[i] = &offsetShard{offsets: make(map[string]uint64)}
	}
	return m
}

func nameShardIndex(name string) int {
	return int(xxhash.Sum64String(name) % uint64(numShards))
}

// RegisterDiskOffset appends name→offset. Same capacity policy as
// RegisterTensor: full map logs a warning and drops the write.
func (m *DiskOffsetMap) RegisterDiskOffset(name string, fileOffset uint64) {
	m.countMu.Lock()
	if int(m.count) >= m.capacity {
		m.countMu.Unlock()
		if !m.warnedFull {
			m.warnedFull = true
			m.logger.WithFields(logrus.Fields{
				"component": "disk_offset_map",
				"capacity":  m.capacity,
			}).Warn("disk-offset map full, dropping registration")
		}
		return
	}
	m.count++
	m.countMu.Unlock()

	s := m.shards[nameShardIndex(name)]
	s.mu.Lock()
	s.offsets[name] = fileOffset
	s.mu.Unlock()
}

// Lookup returns the registered offset for name, or 0 if not recorded
// (§4.1: "zero means not recorded").
func (m *DiskOffsetMap) Lookup(name string) uint64 {
	s := m.shards[nameShardIndex(name)]
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offsets[name]
}

const maxRegistryName = 63

func truncateToRegistryName(name string) string {
	if len(name) <= maxRegistryName {
		return name
	}
	return name[:maxRegistryName]
}

// ExtractLayerID parses the "blk.<N>.…" prefix convention (§4.1). Any
// parse failure, missing prefix, or out-of-range value returns
// record.NoLayer.
func ExtractLayerID(name string) uint16 {
	const prefix = "blk."
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return record.NoLayer
	}
	rest := name[len(prefix):]
	var n int
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		n = n*10 + int(rest[i]-'0')
		if n >= 65535 {
			return record.NoLayer
		}
		i++
	}
	if i == 0 {
		return record.NoLayer
	}
	return uint16(n)
}
