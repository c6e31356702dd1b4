// Package record defines the fixed-width binary layouts emitted by the
// tracer: operation records, embedded source-info slots, and buffer
// lifecycle events. Widths are part of the on-disk contract and are
// compile-time asserted below; they never change within a build.
package record

import (
	"encoding/binary"
	"unsafe"
)

// Sentinel values replacing option/nullable types in the wire format.
const (
	NoLayer     uint16 = 0xFFFF
	NoTensorIdx uint32 = 0xFFFFFFFF
)

// MaxSources bounds the number of source-info slots embedded in an
// operation record.
const MaxSources = 4

// Field widths, in bytes.
const (
	SourceNameSize  = 20
	DstNameSize     = 24
	SourceInfoSize  = 52
	OperationSize   = 256
	BufferNameSize  = 64
	BackendNameSize = 16
	BufferEventSize = 128
)

// MemorySource classifies where a source tensor's bytes physically live.
type MemorySource uint8

const (
	MemorySourceDisk   MemorySource = 0
	MemorySourceBuffer MemorySource = 1
)

// Phase distinguishes bulk prompt processing from autoregressive generation.
type Phase uint8

const (
	PhasePrompt   Phase = 0
	PhaseGenerate Phase = 1
)

// BufferEventType distinguishes allocation from deallocation lifecycle events.
type BufferEventType uint8

const (
	BufferEventAlloc   BufferEventType = 0
	BufferEventDealloc BufferEventType = 1
)

// SourceInfo describes one of an operation's (up to four) source tensors.
// Zero value is the all-zero, unfilled slot.
type SourceInfo struct {
	Name                 string
	TensorPtr            uint64
	SizeBytes            uint32
	LayerID              uint16
	MemorySource         MemorySource
	DiskOffsetOrBufferID uint64
	TensorIdx            uint32
}

// OperationRecord is one elementary tensor-runtime op: a destination tensor
// produced from up to four sources.
type OperationRecord struct {
	TimestampNs   uint64
	TokenID       uint32
	LayerID       uint16
	ThreadID      uint16
	OperationType uint8
	Phase         Phase
	NumSources    uint8
	DstName       string
	Sources       [MaxSources]SourceInfo
}

// BufferEvent describes a backend buffer allocation or deallocation.
type BufferEvent struct {
	TimestampNs  uint64
	EventType    BufferEventType
	BufferUsage  uint8
	LayerID      uint16
	BufferID     uint64
	BufferPtr    uint64
	SizeBytes    uint64
	BufferName   string
	BackendType  string
}

// wireSourceInfo and wireOperationRecord exist solely so unsafe.Sizeof can
// compile-time assert the wire widths above; they mirror the C struct
// layout field-for-field, including explicit padding, and are never
// instantiated.
//
// All fields below are byte arrays rather than typed integers: this wire
// format is packed (no natural-alignment gaps between fields, e.g. an
// 8-byte tensor_ptr sits at a 20-byte, non-8-aligned offset), and a Go
// struct of typed integers would have the compiler insert alignment
// padding the spec does not call for. Byte arrays have alignment 1, so
// the struct's size is exactly the sum of its fields, matching the spec
// table byte-for-byte.
type wireSourceInfo struct {
	name                 [SourceNameSize]byte
	tensorPtr            [8]byte
	sizeBytes            [4]byte
	layerID              [2]byte
	memorySource         [1]byte
	_                    [1]byte
	diskOffsetOrBufferID [8]byte
	tensorIdx            [4]byte
	_                    [4]byte
}

type wireOperationRecord struct {
	timestampNs   [8]byte
	tokenID       [4]byte
	layerID       [2]byte
	threadID      [2]byte
	operationType [1]byte
	phase         [1]byte
	numSources    [1]byte
	_             [5]byte
	dstName       [DstNameSize]byte
	sources       [MaxSources]wireSourceInfo
}

type wireBufferEvent struct {
	timestampNs [8]byte
	eventType   [1]byte
	usage       [1]byte
	_           [2]byte
	layerID     [2]byte
	_           [2]byte
	bufferID    [8]byte
	bufferPtr   [8]byte
	sizeBytes   [8]byte
	name        [BufferNameSize]byte
	backend     [BackendNameSize]byte
	_           [128 - 8 - 1 - 1 - 2 - 2 - 2 - 8 - 8 - 8 - BufferNameSize - BackendNameSize]byte
}

const (
	sizeofWireSourceInfo      = unsafe.Sizeof(wireSourceInfo{})
	sizeofWireOperationRecord = unsafe.Sizeof(wireOperationRecord{})
	sizeofWireBufferEvent     = unsafe.Sizeof(wireBufferEvent{})
)

// Compile-time size assertions: a mismatch in either direction produces a
// negative array length, which fails to compile.
var (
	_ [SourceInfoSize - int(sizeofWireSourceInfo)]byte
	_ [int(sizeofWireSourceInfo) - SourceInfoSize]byte

	_ [OperationSize - int(sizeofWireOperationRecord)]byte
	_ [int(sizeofWireOperationRecord) - OperationSize]byte

	_ [BufferEventSize - int(sizeofWireBufferEvent)]byte
	_ [int(sizeofWireBufferEvent) - BufferEventSize]byte
)

// truncateName copies src into dst, truncating if src is longer than dst.
// A terminating NUL is written only when src is shorter than dst; a src
// that exactly fills or overflows dst leaves no NUL in the field.
func truncateName(dst []byte, src string) {
	n := copy(dst, src)
	if n < len(dst) {
		dst[n] = 0
	}
}

// EncodeSource writes a 52-byte source-info slot into dst.
func EncodeSource(dst []byte, s SourceInfo) {
	_ = dst[:SourceInfoSize]
	truncateName(dst[0:SourceNameSize], s.Name)
	binary.LittleEndian.PutUint64(dst[20:28], s.TensorPtr)
	binary.LittleEndian.PutUint32(dst[28:32], s.SizeBytes)
	binary.LittleEndian.PutUint16(dst[32:34], s.LayerID)
	dst[34] = byte(s.MemorySource)
	dst[35] = 0
	binary.LittleEndian.PutUint64(dst[36:44], s.DiskOffsetOrBufferID)
	binary.LittleEndian.PutUint32(dst[44:48], s.TensorIdx)
	dst[48], dst[49], dst[50], dst[51] = 0, 0, 0, 0
}

// DecodeSource reads a 52-byte source-info slot from src.
func DecodeSource(src []byte) SourceInfo {
	_ = src[:SourceInfoSize]
	return SourceInfo{
		Name:                 cString(src[0:SourceNameSize]),
		TensorPtr:            binary.LittleEndian.Uint64(src[20:28]),
		SizeBytes:            binary.LittleEndian.Uint32(src[28:32]),
		LayerID:              binary.LittleEndian.Uint16(src[32:34]),
		MemorySource:         MemorySource(src[34]),
		DiskOffsetOrBufferID: binary.LittleEndian.Uint64(src[36:44]),
		TensorIdx:            binary.LittleEndian.Uint32(src[44:48]),
	}
}

// Encode writes the 256-byte operation record into dst.
func (r OperationRecord) Encode(dst []byte) {
	_ = dst[:OperationSize]
	binary.LittleEndian.PutUint64(dst[0:8], r.TimestampNs)
	binary.LittleEndian.PutUint32(dst[8:12], r.TokenID)
	binary.LittleEndian.PutUint16(dst[12:14], r.LayerID)
	binary.LittleEndian.PutUint16(dst[14:16], r.ThreadID)
	dst[16] = r.OperationType
	dst[17] = byte(r.Phase)
	dst[18] = r.NumSources
	for i := 19; i < 24; i++ {
		dst[i] = 0
	}
	truncateName(dst[24:48], r.DstName)
	for i := 0; i < MaxSources; i++ {
		off := 48 + i*SourceInfoSize
		EncodeSource(dst[off:off+SourceInfoSize], r.Sources[i])
	}
}

// Decode reads a 256-byte operation record from src.
func Decode(src []byte) OperationRecord {
	_ = src[:OperationSize]
	r := OperationRecord{
		TimestampNs:   binary.LittleEndian.Uint64(src[0:8]),
		TokenID:       binary.LittleEndian.Uint32(src[8:12]),
		LayerID:       binary.LittleEndian.Uint16(src[12:14]),
		ThreadID:      binary.LittleEndian.Uint16(src[14:16]),
		OperationType: src[16],
		Phase:         Phase(src[17]),
		NumSources:    src[18],
		DstName:       cString(src[24:48]),
	}
	for i := 0; i < MaxSources; i++ {
		off := 48 + i*SourceInfoSize
		r.Sources[i] = DecodeSource(src[off : off+SourceInfoSize])
	}
	return r
}

// EncodeBufferEvent writes the 128-byte buffer event into dst.
func EncodeBufferEvent(dst []byte, e BufferEvent) {
	_ = dst[:BufferEventSize]
	binary.LittleEndian.PutUint64(dst[0:8], e.TimestampNs)
	dst[8] = byte(e.EventType)
	dst[9] = e.BufferUsage
	dst[10], dst[11] = 0, 0
	binary.LittleEndian.PutUint16(dst[12:14], e.LayerID)
	dst[14], dst[15] = 0, 0
	binary.LittleEndian.PutUint64(dst[16:24], e.BufferID)
	binary.LittleEndian.PutUint64(dst[24:32], e.BufferPtr)
	binary.LittleEndian.PutUint64(dst[32:40], e.SizeBytes)
	truncateName(dst[40:104], e.BufferName)
	truncateName(dst[104:120], e.BackendType)
	for i := 120; i < BufferEventSize; i++ {
		dst[i] = 0
	}
}

// cString returns the string up to the first NUL byte (or the whole slice
// if unterminated).
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
