// Package logsink implements the shared, memory-mapped binary trace log:
// a file of caller-chosen capacity, truncated and mmap'd at init, into
// which thread-local batches are committed via an atomically reserved
// offset (§4.3).
package logsink

import (
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"tensortrace/internal/metrics"
	pkgerrors "tensortrace/pkg/errors"
)

// Sink is the single shared log file backing a trace. All writes to it are
// serialized through commitOffset's CAS-retried conditional increment;
// within a reserved region only the reserving goroutine writes, so no
// lock is needed around the memcpy itself.
type Sink struct {
	file         *os.File
	mapping      []byte
	capacity     int64
	commitOffset int64 // atomic
	logger       *logrus.Logger
	warnedFull   int32 // atomic bool
}

// Open creates/truncates path to capacityBytes and mmaps it for writing.
// Returns a *pkgerrors.AppError on any configuration failure (open,
// ftruncate, mmap), per §7.
func Open(path string, capacityBytes int64, logger *logrus.Logger) (*Sink, error) {
	if logger == nil {
		logger = logrus.New()
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, pkgerrors.ConfigError("open", "failed to open trace log file").Wrap(err)
	}
	if err := f.Truncate(capacityBytes); err != nil {
		f.Close()
		return nil, pkgerrors.ConfigError("truncate", "failed to size trace log file").Wrap(err)
	}

	mapping, err := unix.Mmap(int(f.Fd()), 0, int(capacityBytes), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, pkgerrors.ConfigError("mmap", "failed to map trace log file").Wrap(err)
	}

	return &Sink{
		file:     f,
		mapping:  mapping,
		capacity: capacityBytes,
		logger:   logger,
	}, nil
}

// Commit reserves len(batch) bytes with a CAS-retried conditional
// increment and memcpy's batch into the reservation. If the reservation
// would exceed capacity, it is refused: a one-shot warning is logged and
// the batch is dropped (§4.3). commitOffset is left unchanged on refusal,
// so a later, smaller batch that still fits in the remaining space is not
// wrongly refused. There is no wraparound and no overwrite.
func (s *Sink) Commit(batch []byte) bool {
	n := int64(len(batch))
	if n == 0 {
		return true
	}
	for {
		reserved := atomic.LoadInt64(&s.commitOffset)
		if reserved+n > s.capacity {
			if atomic.CompareAndSwapInt32(&s.warnedFull, 0, 1) {
				s.logger.WithFields(logrus.Fields{
					"component": "logsink",
					"capacity":  s.capacity,
				}).Warn("trace log capacity exhausted, dropping batch")
			}
			return false
		}
		if atomic.CompareAndSwapInt64(&s.commitOffset, reserved, reserved+n) {
			copy(s.mapping[reserved:reserved+n], batch)
			metrics.LogUtilization.Set(float64(reserved+n) / float64(s.capacity))
			return true
		}
	}
}

// CommitOffset returns the current committed byte offset (for tests/metrics).
func (s *Sink) CommitOffset() int64 {
	return atomic.LoadInt64(&s.commitOffset)
}

// Close syncs the mapping to durable storage, unmaps, and closes the
// underlying file. Idempotent: a second call is a no-op.
func (s *Sink) Close() error {
	if s.mapping == nil {
		return nil
	}
	err := unix.Msync(s.mapping, unix.MS_SYNC)
	_ = unix.Munmap(s.mapping)
	s.mapping = nil
	closeErr := s.file.Close()
	if err != nil {
		return err
	}
	return closeErr
}
