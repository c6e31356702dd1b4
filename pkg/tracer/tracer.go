// Package tracer is the host-facing façade: trace_init/trace_shutdown and
// the per-op/per-buffer-event entry points the runtime's op dispatcher and
// model loader call into. It wires internal/clock, internal/registry,
// internal/provenance, internal/ring, internal/logsink, and
// internal/lifecycle into the single object described by §9: process-global
// mutable state is unavoidable given the tracer's insertion point inside a
// library it does not control, so it is modeled as a singleton constructed
// by Init and stored behind an atomic handle, with every other operation
// short-circuiting to a silent no-op when the handle is absent.
package tracer

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"tensortrace/internal/clock"
	"tensortrace/internal/lifecycle"
	"tensortrace/internal/logsink"
	"tensortrace/internal/provenance"
	"tensortrace/internal/record"
	"tensortrace/internal/registry"
	"tensortrace/internal/ring"
	"tensortrace/pkg/errors"
	"tensortrace/pkg/tensor"
)

// Options configures Init. BufferEventsPath is the buffer-lifecycle JSON
// stream path; the reference implementation hard-codes this to
// /tmp/buffer_stats.jsonl, which the Open Question in §9 flags as
// unparameterized — here it is a caller-supplied option instead.
type Options struct {
	LogPath            string
	LogCapacityBytes   int64
	BufferEventsPath   string
	TensorCapacity     int
	DiskOffsetCapacity int
	Logger             *logrus.Logger
}

// handle is the process-wide singleton, present only between a successful
// Init and the matching Shutdown.
var handle atomic.Pointer[tracerState]

type tracerState struct {
	clock          *clock.Clock
	registry       *registry.Registry
	offsets        *registry.DiskOffsetMap
	sink           *logsink.Sink
	lifecycle      *lifecycle.Writer
	logger         *logrus.Logger
	currentPhase   atomic.Uint32
	currentTokenID atomic.Uint32
	rings          sync.Map // uint16 -> *ring.Ring
	ringsMu        sync.Mutex
}

// Init creates/truncates the trace log, mmaps it, opens the buffer-event
// stream, and records the trace start instant. It is a no-op error
// ("configuration: double init") if a trace is already active.
func Init(opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	if handle.Load() != nil {
		err := errors.New(errors.CodeConfigDoubleInit, "tracer", "init", "trace already initialized")
		logger.WithError(err).Error("tracer init failed")
		return err
	}

	sink, err := logsink.Open(opts.LogPath, opts.LogCapacityBytes, logger)
	if err != nil {
		logger.WithError(err).Error("tracer init failed")
		return err
	}
	lw, err := lifecycle.Open(opts.BufferEventsPath)
	if err != nil {
		sink.Close()
		logger.WithError(err).Error("tracer init failed")
		return err
	}

	st := &tracerState{
		clock:     clock.New(),
		registry:  registry.New(opts.TensorCapacity, logger),
		offsets:   registry.NewDiskOffsetMap(opts.DiskOffsetCapacity, logger),
		sink:      sink,
		lifecycle: lw,
		logger:    logger,
	}
	st.currentPhase.Store(uint32(record.PhasePrompt))
	handle.Store(st)
	return nil
}

// Shutdown flushes the calling thread's ring (if any), syncs the mapping,
// and closes both files. Idempotent: a second call is a silent no-op, per
// §4.3/§5.
func Shutdown() {
	st := handle.Swap(nil)
	if st == nil {
		return
	}
	if r, ok := st.rings.Load(clock.ThreadID()); ok {
		r.(*ring.Ring).Commit()
	}
	st.sink.Close()
	st.lifecycle.Close()
}

// RegisterTensor records a tensor's address, on-disk offset, and size in
// the tensor registry. No-op if the tracer is uninitialized.
func RegisterTensor(name string, dataAddr uintptr, fileOffset uint64, sizeBytes uint32) {
	st := handle.Load()
	if st == nil {
		return
	}
	st.registry.RegisterTensor(name, dataAddr, fileOffset, sizeBytes)
}

// RegisterDiskOffset records a tensor name's byte offset within the source
// GGUF file. No-op if the tracer is uninitialized.
func RegisterDiskOffset(name string, fileOffset uint64) {
	st := handle.Load()
	if st == nil {
		return
	}
	st.offsets.RegisterDiskOffset(name, fileOffset)
}

// SetPhase updates the process-wide phase read by LogOperation. Anytime,
// per §6; no-op if uninitialized.
func SetPhase(p record.Phase) {
	if st := handle.Load(); st != nil {
		st.currentPhase.Store(uint32(p))
	}
}

// SetTokenID updates the process-wide current token id read by
// LogOperation. Anytime, per §6; no-op if uninitialized.
func SetTokenID(tokenID uint32) {
	if st := handle.Load(); st != nil {
		st.currentTokenID.Store(tokenID)
	}
}

// DumpRegistry writes the tensor registry CSV dump to path. No-op if
// uninitialized.
func DumpRegistry(path string) error {
	st := handle.Load()
	if st == nil {
		return nil
	}
	return st.registry.DumpCSV(path)
}

// LogOperation is the single entry point invoked by the op dispatcher for
// every elementary op. It early-exits (§4.4 step 1) if tracing is disabled,
// dst is absent, or workerIndex != 0 — only the dispatch lead logs, so a
// parallel fan-out produces exactly one record. Must not allocate.
func LogOperation(dst tensor.View, workerIndex int) {
	st := handle.Load()
	if st == nil || workerIndex != 0 || dst.DataAddr == 0 {
		return
	}

	var rec record.OperationRecord
	rec.TimestampNs = st.clock.NowNs()
	rec.ThreadID = clock.ThreadID()
	rec.OperationType = dst.OpKind
	rec.Phase = record.Phase(st.currentPhase.Load())
	rec.TokenID = st.currentTokenID.Load()
	rec.DstName = dst.Name
	rec.LayerID = registry.ExtractLayerID(dst.Name)

	n := dst.NumSources
	if n > tensor.MaxSources {
		n = tensor.MaxSources
	}

	filled := 0
	for i := 0; i < n; i++ {
		src := dst.Sources[i]
		if !src.Present {
			break
		}
		if src.DataAddr == 0 {
			continue
		}

		memSource, diskOrBufID := provenance.Classify(src.Name, src.Buffer, st.offsets)
		info := record.SourceInfo{
			Name:                 src.Name,
			TensorPtr:            uint64(src.DataAddr),
			SizeBytes:            src.ByteSize,
			LayerID:              registry.ExtractLayerID(src.Name),
			MemorySource:         memSource,
			DiskOffsetOrBufferID: diskOrBufID,
			TensorIdx:            st.registry.LookupIdx(src.DataAddr),
		}
		rec.Sources[filled] = info
		filled++

		if rec.LayerID == record.NoLayer && info.LayerID != record.NoLayer {
			rec.LayerID = info.LayerID
		}
	}
	rec.NumSources = uint8(filled)

	st.emit(rec)
}

func (st *tracerState) ringFor(tid uint16) *ring.Ring {
	if r, ok := st.rings.Load(tid); ok {
		return r.(*ring.Ring)
	}
	st.ringsMu.Lock()
	defer st.ringsMu.Unlock()
	if r, ok := st.rings.Load(tid); ok {
		return r.(*ring.Ring)
	}
	r := ring.New(st.sink)
	st.rings.Store(tid, r)
	return r
}

func (st *tracerState) emit(rec record.OperationRecord) {
	st.ringFor(rec.ThreadID).Emit(rec)
}

// LogBufferAlloc appends a buffer-allocation lifecycle event. No-op if
// uninitialized.
func LogBufferAlloc(bufferID, ptr, size uint64, name, backend string, usage uint8, layerID uint16) {
	st := handle.Load()
	if st == nil {
		return
	}
	st.lifecycle.LogAlloc(st.clock.NowNs(), bufferID, ptr, size, name, backend, usage, layerID)
}

// LogBufferDealloc appends a buffer-deallocation lifecycle event. No-op if
// uninitialized.
func LogBufferDealloc(bufferID uint64) {
	st := handle.Load()
	if st == nil {
		return
	}
	st.lifecycle.LogDealloc(st.clock.NowNs(), bufferID)
}
