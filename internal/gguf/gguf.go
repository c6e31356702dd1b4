// Package gguf parses just enough of the GGUF container format to recover
// per-tensor file offsets, sizes, and layer/component classification —
// everything the tracer's disk-offset map and the gguf-dump CLI need,
// without pulling in a full GGUF/tensor-loading library (§4.6).
package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	pkgerrors "tensortrace/pkg/errors"
)

// Magic is the GGUF container magic number, "GGUF" read little-endian.
const Magic uint32 = 0x46554747

// ExpectedVersion is the GGUF version this parser targets. Parse accepts
// any version — per §4.6, an unexpected one is a warning, not an error —
// mirroring the reference dumper's "Warning: GGUF version %u (expected %u)".
const ExpectedVersion uint32 = 3

// GGUF metadata value types, per the GGUF spec.
const (
	valUint8 = iota
	valInt8
	valUint16
	valInt16
	valUint32
	valInt32
	valFloat32
	valBool
	valString
	valArray
	valUint64
	valInt64
	valFloat64
)

// ElementSize maps a GGUF tensor type id to its per-element byte size. This
// mirrors the reference dumper's simplified table (type 1 = F16 = 2 bytes,
// everything else 4 bytes) rather than the full ggml type table, per the
// spec's Open Question resolution: exactness of quantized-type sizing is out
// of scope for a tracing tool. Exposed as a var so a caller with the full
// ggml type table available can swap in exact sizing.
var ElementSize = func(tensorType uint32) uint64 {
	if tensorType == 1 {
		return 2
	}
	return 4
}

// Tensor is one parsed tensor-info entry.
type Tensor struct {
	Name          string
	FileOffset    uint64
	SizeBytes     uint64
	LayerID       int32 // -1 if the name carries no "blk.N." layer prefix
	ComponentType string
	NumDims       uint32
	Dims          [4]uint64
}

// File is the result of parsing a GGUF file's header and tensor directory.
type File struct {
	Version  uint32
	NumKV    uint64
	Tensors  []Tensor
}

// Parse reads a GGUF header, skips the key-value metadata block, and
// decodes the tensor-info directory that follows it. r must be positioned
// at the start of the file.
func Parse(r io.Reader) (*File, error) {
	var magic, version uint32
	var nTensors, nKV uint64

	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, pkgerrors.MalformedFileError("header", "failed to read GGUF magic").Wrap(err)
	}
	if magic != Magic {
		return nil, pkgerrors.MalformedFileError("header", fmt.Sprintf("bad GGUF magic: 0x%08x", magic))
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, pkgerrors.MalformedFileError("header", "failed to read GGUF version").Wrap(err)
	}
	if version != ExpectedVersion {
		logrus.WithFields(logrus.Fields{
			"component": "gguf",
			"version":   version,
			"expected":  ExpectedVersion,
		}).Warnf("GGUF version %d (expected %d)", version, ExpectedVersion)
	}
	if err := binary.Read(r, binary.LittleEndian, &nTensors); err != nil {
		return nil, pkgerrors.MalformedFileError("header", "failed to read tensor count").Wrap(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &nKV); err != nil {
		return nil, pkgerrors.MalformedFileError("header", "failed to read KV count").Wrap(err)
	}

	for i := uint64(0); i < nKV; i++ {
		if _, err := readString(r); err != nil {
			return nil, pkgerrors.MalformedFileError("kv", fmt.Sprintf("failed to read KV key %d", i)).Wrap(err)
		}
		var valueType uint32
		if err := binary.Read(r, binary.LittleEndian, &valueType); err != nil {
			return nil, pkgerrors.MalformedFileError("kv", "failed to read KV value type").Wrap(err)
		}
		if err := skipValue(r, valueType); err != nil {
			return nil, pkgerrors.MalformedFileError("kv", fmt.Sprintf("failed to skip KV value %d", i)).Wrap(err)
		}
	}

	tensors := make([]Tensor, 0, nTensors)
	for i := uint64(0); i < nTensors; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, pkgerrors.MalformedFileError("tensor", fmt.Sprintf("failed to read tensor name %d", i)).Wrap(err)
		}

		var nDims uint32
		if err := binary.Read(r, binary.LittleEndian, &nDims); err != nil {
			return nil, pkgerrors.MalformedFileError("tensor", "failed to read n_dims").Wrap(err)
		}
		if nDims > 4 {
			return nil, pkgerrors.MalformedFileError("tensor", fmt.Sprintf("invalid n_dims %d", nDims))
		}

		var dims [4]uint64
		for d := uint32(0); d < nDims; d++ {
			if err := binary.Read(r, binary.LittleEndian, &dims[d]); err != nil {
				return nil, pkgerrors.MalformedFileError("tensor", fmt.Sprintf("failed to read dimension %d", d)).Wrap(err)
			}
		}

		var tensorType uint32
		if err := binary.Read(r, binary.LittleEndian, &tensorType); err != nil {
			return nil, pkgerrors.MalformedFileError("tensor", "failed to read tensor type").Wrap(err)
		}

		var offset uint64
		if err := binary.Read(r, binary.LittleEndian, &offset); err != nil {
			return nil, pkgerrors.MalformedFileError("tensor", "failed to read tensor offset").Wrap(err)
		}

		size := ElementSize(tensorType)
		for d := uint32(0); d < nDims; d++ {
			size *= dims[d]
		}

		tensors = append(tensors, Tensor{
			Name:          name,
			FileOffset:    offset,
			SizeBytes:     size,
			LayerID:       extractLayerID(name),
			ComponentType: ComponentType(name),
			NumDims:       nDims,
			Dims:          dims,
		})
	}

	return &File{Version: version, NumKV: nKV, Tensors: tensors}, nil
}

func readString(r io.Reader) (string, error) {
	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	const maxStringLen = 1 << 20
	if length > maxStringLen {
		return "", fmt.Errorf("string too long (%d bytes)", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// skipValue discards a single KV value of the given type, recursing into
// ARRAY elements — an array's own element type may again be ARRAY-typed is
// not produced by any known writer, but the recursion handles it anyway.
func skipValue(r io.Reader, valueType uint32) error {
	switch valueType {
	case valUint8, valInt8, valBool:
		return discard(r, 1)
	case valUint16, valInt16:
		return discard(r, 2)
	case valUint32, valInt32, valFloat32:
		return discard(r, 4)
	case valUint64, valInt64, valFloat64:
		return discard(r, 8)
	case valString:
		_, err := readString(r)
		return err
	case valArray:
		var elemType uint32
		var length uint64
		if err := binary.Read(r, binary.LittleEndian, &elemType); err != nil {
			return err
		}
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return err
		}
		for i := uint64(0); i < length; i++ {
			if err := skipValue(r, elemType); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown GGUF value type %d", valueType)
	}
}

func discard(r io.Reader, n int64) error {
	_, err := io.CopyN(io.Discard, r, n)
	return err
}

// extractLayerID parses the "blk.<N>.*" prefix convention, returning -1 (no
// layer) for anything that doesn't match, mirroring the reference dumper's
// sentinel. This is the CLI-facing counterpart of
// registry.ExtractLayerID, which instead returns record.NoLayer for the
// same absent case.
func extractLayerID(name string) int32 {
	const prefix = "blk."
	if !strings.HasPrefix(name, prefix) {
		return -1
	}
	rest := name[len(prefix):]
	end := strings.IndexByte(rest, '.')
	if end < 0 {
		end = len(rest)
	}
	n, err := strconv.ParseInt(rest[:end], 10, 32)
	if err != nil {
		return -1
	}
	return int32(n)
}

// ComponentType classifies a tensor name into a human-readable component
// label, in the same cascade order as the reference dumper so that
// ambiguous names (e.g. containing both "attn_norm" and "ffn_norm"-like
// substrings) resolve identically.
func ComponentType(name string) string {
	switch {
	case strings.Contains(name, "token_embd"):
		return "Token Embeddings"
	case strings.Contains(name, "output"):
		return "Output Projection"
	case strings.Contains(name, "attn_q"):
		return "Attention Q"
	case strings.Contains(name, "attn_k"):
		return "Attention K"
	case strings.Contains(name, "attn_v"):
		return "Attention V"
	case strings.Contains(name, "attn_output"):
		// unreachable: "attn_output" contains "output", caught by the case
		// above first, exactly as in the reference dumper.
		return "Attention Output"
	case strings.Contains(name, "attn_norm"):
		return "Attention Norm"
	case strings.Contains(name, "ffn_up"):
		return ffnComponent(name, "Up")
	case strings.Contains(name, "ffn_down"):
		return ffnComponent(name, "Down")
	case strings.Contains(name, "ffn_gate"):
		return ffnComponent(name, "Gate")
	case strings.Contains(name, "ffn_norm"):
		return "FFN Norm"
	case strings.Contains(name, "expert"):
		return expertComponent(name)
	default:
		return "Other"
	}
}

// ffnComponent reports the plain FFN component label ("FFN " + kind). The
// FFN substrings are checked before "expert" in ComponentType's cascade, so
// expert tensors whose names carry an FFN substring also land here.
func ffnComponent(name, kind string) string {
	return "FFN " + kind
}

// expertComponent handles the MoE "...expert_<N>..." naming convention,
// matching determine_component_type's nested dispatch: an expert tensor
// that also matches one of the FFN substrings gets "MoE Expert N <Kind>";
// otherwise it falls back to the bare "MoE Expert".
func expertComponent(name string) string {
	const marker = "expert_"
	pos := strings.Index(name, marker)
	if pos < 0 {
		return "MoE Expert"
	}
	rest := name[pos+len(marker):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return "MoE Expert"
	}
	id, err := strconv.Atoi(rest[:end])
	if err != nil {
		return "MoE Expert"
	}
	label := fmt.Sprintf("MoE Expert %d", id)
	switch {
	case strings.Contains(name, "ffn_up"):
		return label + " Up"
	case strings.Contains(name, "ffn_down"):
		return label + " Down"
	case strings.Contains(name, "ffn_gate"):
		return label + " Gate"
	default:
		// Matches the reference dumper: an expert tensor whose name
		// doesn't also carry one of the FFN substrings falls back to
		// the bare label, dropping the parsed id.
		return "MoE Expert"
	}
}
