package logsink

import (
	"os"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"tensortrace/internal/metrics"
)

func TestOpenCommitClose(t *testing.T) {
	path := t.TempDir() + "/trace.bin"
	s, err := Open(path, 256*10, nil)
	require.NoError(t, err)

	batch := make([]byte, 256*3)
	for i := range batch {
		batch[i] = byte(i)
	}
	require.True(t, s.Commit(batch))
	require.Equal(t, int64(256*3), s.CommitOffset())
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 256*10)
	require.Equal(t, batch, data[:len(batch)])
}

func TestCommitRefusedBeyondCapacity(t *testing.T) {
	path := t.TempDir() + "/trace.bin"
	s, err := Open(path, 256*4, nil)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 4; i++ {
		require.True(t, s.Commit(make([]byte, 256)))
	}
	// Fifth commit exceeds capacity and is refused.
	require.False(t, s.Commit(make([]byte, 256)))
	require.Equal(t, int64(256*4), s.CommitOffset())
}

func TestPreviouslyCommittedRecordsUnaffectedByOverflow(t *testing.T) {
	path := t.TempDir() + "/trace.bin"
	s, err := Open(path, 256*4, nil)
	require.NoError(t, err)

	first := make([]byte, 256)
	for i := range first {
		first[i] = 0xAB
	}
	require.True(t, s.Commit(first))

	for i := 0; i < 10; i++ {
		s.Commit(make([]byte, 256*2)) // some will overflow and be refused
	}

	require.NoError(t, s.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, first, data[:256])
}

func TestSmallerBatchStillFitsAfterOversizedRefusal(t *testing.T) {
	path := t.TempDir() + "/trace.bin"
	s, err := Open(path, 256*4, nil)
	require.NoError(t, err)
	defer s.Close()

	require.True(t, s.Commit(make([]byte, 256*3)))
	require.Equal(t, int64(256*3), s.CommitOffset())

	// This batch would overshoot capacity; it must be refused without
	// advancing commitOffset, so the 256-byte gap remains usable.
	require.False(t, s.Commit(make([]byte, 256*2)))
	require.Equal(t, int64(256*3), s.CommitOffset())

	// A smaller batch that fits in the remaining space still succeeds.
	require.True(t, s.Commit(make([]byte, 256)))
	require.Equal(t, int64(256*4), s.CommitOffset())
}

func TestConcurrentCommitsDoNotOverlap(t *testing.T) {
	path := t.TempDir() + "/trace.bin"
	const n = 100
	s, err := Open(path, 256*n, nil)
	require.NoError(t, err)
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := make([]byte, 256)
			b[0] = byte(i)
			s.Commit(b)
		}(i)
	}
	wg.Wait()
	require.Equal(t, int64(256*n), s.CommitOffset())
}

func TestCommitUpdatesLogUtilization(t *testing.T) {
	path := t.TempDir() + "/trace.bin"
	s, err := Open(path, 256*4, nil)
	require.NoError(t, err)
	defer s.Close()

	require.True(t, s.Commit(make([]byte, 256)))
	require.Equal(t, 0.25, testutil.ToFloat64(metrics.LogUtilization))

	require.True(t, s.Commit(make([]byte, 256)))
	require.Equal(t, 0.5, testutil.ToFloat64(metrics.LogUtilization))
}

func TestCloseIdempotent(t *testing.T) {
	path := t.TempDir() + "/trace.bin"
	s, err := Open(path, 256, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
