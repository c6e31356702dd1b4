package ring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tensortrace/internal/record"
)

// fakeCommitter records every batch handed to Commit and can be told to
// refuse the next N commits, mirroring logsink.Sink's capacity-refusal
// behavior without requiring a real mmap'd file.
type fakeCommitter struct {
	batches [][]byte
	refuse  int
}

func (f *fakeCommitter) Commit(batch []byte) bool {
	if f.refuse > 0 {
		f.refuse--
		return false
	}
	cp := make([]byte, len(batch))
	copy(cp, batch)
	f.batches = append(f.batches, cp)
	return true
}

func sampleRecord(tokenID uint32) record.OperationRecord {
	return record.OperationRecord{
		TokenID:       tokenID,
		OperationType: 1,
		DstName:       "blk.0.attn_q.weight",
	}
}

func TestEmitBelowCapacityDoesNotCommit(t *testing.T) {
	fc := &fakeCommitter{}
	r := New(fc)

	for i := 0; i < Capacity-1; i++ {
		r.Emit(sampleRecord(uint32(i)))
	}
	require.Equal(t, Capacity-1, r.Pending())
	require.Empty(t, fc.batches)
}

func TestEmitAtCapacityTriggersCommit(t *testing.T) {
	fc := &fakeCommitter{}
	r := New(fc)

	for i := 0; i < Capacity; i++ {
		r.Emit(sampleRecord(uint32(i)))
	}
	require.Equal(t, 0, r.Pending())
	require.Len(t, fc.batches, 1)
	require.Len(t, fc.batches[0], Capacity*record.OperationSize)

	first := record.Decode(fc.batches[0][:record.OperationSize])
	require.Equal(t, uint32(0), first.TokenID)
}

func TestCommitOnEmptyRingIsNoop(t *testing.T) {
	fc := &fakeCommitter{}
	r := New(fc)
	r.Commit()
	require.Empty(t, fc.batches)
}

func TestCommitResetsCountRegardlessOfSinkResult(t *testing.T) {
	fc := &fakeCommitter{refuse: 1}
	r := New(fc)

	r.Emit(sampleRecord(1))
	r.Emit(sampleRecord(2))
	r.Commit()

	require.Equal(t, 0, r.Pending())
	require.Empty(t, fc.batches) // the single commit was refused

	// The ring is reusable after a refused commit.
	r.Emit(sampleRecord(3))
	r.Commit()
	require.Len(t, fc.batches, 1)
}

func TestEmitPreservesRecordOrderWithinABatch(t *testing.T) {
	fc := &fakeCommitter{}
	r := New(fc)

	for i := 0; i < 5; i++ {
		r.Emit(sampleRecord(uint32(i)))
	}
	r.Commit()

	require.Len(t, fc.batches, 1)
	for i := 0; i < 5; i++ {
		off := i * record.OperationSize
		rec := record.Decode(fc.batches[0][off : off+record.OperationSize])
		require.Equal(t, uint32(i), rec.TokenID)
	}
}
