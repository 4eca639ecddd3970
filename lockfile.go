package coredb

import (
	"encoding/binary"
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// sharedRingCapacity bounds the ring buffer of per-version reader counts
// (spec.md §5's "bounded ring buffer of ReadCount{version, count}").
const sharedRingCapacity = 1024

// sharedInfo layout (all little-endian uint64, fixed offsets):
//
//	0  currentTop
//	8  currentFileSize
//	16 currentVersion
//	24 ringHead   (index of the oldest live entry)
//	32 ringCount  (number of live entries)
//	40 ring[sharedRingCapacity]{version uint64, count uint64}  (16 bytes/entry)
const (
	shOffTop         = 0
	shOffFileSize    = 8
	shOffVersion     = 16
	shOffRingHead    = 24
	shOffRingCount   = 32
	shOffRingEntries = 40
	shEntrySize      = 16
	shTotalSize      = shOffRingEntries + sharedRingCapacity*shEntrySize

	writeLockOffset = shTotalSize
	readLockOffset  = shTotalSize + 1
)

// sharedInfo is the lock file's mmap'd shared-info struct (spec.md §5):
// read/write mutex state realized via byte-range flock rather than an
// in-struct mutex, since Go's sync.Mutex is not process-shared — the
// natural extension of the teacher's already-unix-dependent mmap layer
// (SPEC_FULL.md §5).
type sharedInfo struct {
	file *os.File
	mmap MMap
}

func openSharedInfo(path string) (*sharedInfo, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size() < shTotalSize+2 {
		if err := file.Truncate(shTotalSize + 2); err != nil {
			file.Close()
			return nil, err
		}
	}
	mapped, err := mapFile(file, shTotalSize+2)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &sharedInfo{file: file, mmap: mapped}, nil
}

func (s *sharedInfo) close() error {
	if err := s.mmap.Unmap(); err != nil {
		return err
	}
	return s.file.Close()
}

func (s *sharedInfo) byteRangeLock(offset int64, lockType int16) error {
	lock := unix.Flock_t{Type: lockType, Whence: 0, Start: offset, Len: 1}
	return unix.FcntlFlock(s.file.Fd(), unix.F_SETLKW, &lock)
}

func (s *sharedInfo) lockWrite() error   { return s.byteRangeLock(writeLockOffset, unix.F_WRLCK) }
func (s *sharedInfo) unlockWrite() error { return s.byteRangeLock(writeLockOffset, unix.F_UNLCK) }
func (s *sharedInfo) lockRead() error    { return s.byteRangeLock(readLockOffset, unix.F_WRLCK) }
func (s *sharedInfo) unlockRead() error  { return s.byteRangeLock(readLockOffset, unix.F_UNLCK) }

func (s *sharedInfo) u64(off int) uint64        { return binary.LittleEndian.Uint64(s.mmap[off:]) }
func (s *sharedInfo) setU64(off int, v uint64)   { binary.LittleEndian.PutUint64(s.mmap[off:], v) }

func (s *sharedInfo) currentTop() uint64      { return s.u64(shOffTop) }
func (s *sharedInfo) currentFileSize() uint64 { return s.u64(shOffFileSize) }
func (s *sharedInfo) currentVersion() uint64  { return s.u64(shOffVersion) }

func (s *sharedInfo) ringHead() int  { return int(s.u64(shOffRingHead)) }
func (s *sharedInfo) ringCount() int { return int(s.u64(shOffRingCount)) }

func (s *sharedInfo) ringEntry(i int) (version, count uint64) {
	idx := (s.ringHead() + i) % sharedRingCapacity
	off := shOffRingEntries + idx*shEntrySize
	return s.u64(off), s.u64(off + 8)
}

func (s *sharedInfo) setRingEntry(i int, version, count uint64) {
	idx := (s.ringHead() + i) % sharedRingCapacity
	off := shOffRingEntries + idx*shEntrySize
	s.setU64(off, version)
	s.setU64(off+8, count)
}

// publish writes the new commit's top/size/version, holding readmutex as
// the writer protocol's step 6 specifies (the same mutex readers use to
// read this struct, not writemutex).
func (s *sharedInfo) publish(top, size, version uint64) error {
	if err := s.lockRead(); err != nil {
		return err
	}
	defer s.unlockRead()

	s.setU64(shOffTop, top)
	s.setU64(shOffFileSize, size)
	s.setU64(shOffVersion, version)
	return nil
}

// readlockVersion is the version of the ring buffer's head entry, or
// current_version+1 if the ring is empty (spec.md §5 writer-protocol
// step 4).
func (s *sharedInfo) readlockVersion() uint64 {
	if err := s.lockRead(); err != nil {
		return s.currentVersion() + 1
	}
	defer s.unlockRead()

	if s.ringCount() == 0 {
		return s.currentVersion() + 1
	}
	v, _ := s.ringEntry(0)
	return v
}

// registerReader implements the reader protocol's step 1: bump the tail
// entry's count if its version matches current_version, else push a new
// entry.
func (s *sharedInfo) registerReader() (version, size, top uint64, err error) {
	if err = s.lockRead(); err != nil {
		return 0, 0, 0, err
	}
	defer s.unlockRead()

	version = s.currentVersion()
	size = s.currentFileSize()
	top = s.currentTop()

	count := s.ringCount()
	if count > 0 {
		tailVersion, tailCount := s.ringEntry(count - 1)
		if tailVersion == version {
			s.setRingEntry(count-1, tailVersion, tailCount+1)
			return version, size, top, nil
		}
	}
	if count >= sharedRingCapacity {
		return 0, 0, 0, errRingBufferFull
	}
	s.setRingEntry(count, version, 1)
	s.setU64(shOffRingCount, uint64(count+1))
	return version, size, top, nil
}

// deregisterReader implements step 4: decrement the named version's
// entry, and if it's the (now zero-count) head, advance the head past
// every consecutive zero-count entry.
func (s *sharedInfo) deregisterReader(version uint64) error {
	if err := s.lockRead(); err != nil {
		return err
	}
	defer s.unlockRead()

	count := s.ringCount()
	for i := 0; i < count; i++ {
		v, c := s.ringEntry(i)
		if v != version || c == 0 {
			continue
		}
		s.setRingEntry(i, v, c-1)
		break
	}

	head := s.ringHead()
	drop := 0
	remaining := s.ringCount()
	for drop < remaining {
		_, c := s.ringEntry(drop)
		if c != 0 {
			break
		}
		drop++
	}
	if drop > 0 {
		s.setU64(shOffRingHead, uint64((head+drop)%sharedRingCapacity))
		s.setU64(shOffRingCount, uint64(remaining-drop))
	}
	return nil
}

var errRingBufferFull = errors.New("coredb: shared-info reader ring buffer is full")
