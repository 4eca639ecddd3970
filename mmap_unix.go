//go:build !windows

package coredb

import (
	"os"

	"golang.org/x/sys/unix"
)

// MMap is the byte-slice view of a memory mapped region, either the
// read-only data file image or the lock file's shared-info struct.
type MMap []byte

// mapFile maps size bytes of file starting at offset 0 for read-write
// access, matching the teacher's Map(file, RDWR, 0) call sites.
func mapFile(file *os.File, size int) (MMap, error) {
	if size == 0 {
		return MMap{}, nil
	}

	data, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	return MMap(data), nil
}

// mapFileReadOnly maps size bytes of file for read-only access, used when
// a Group is opened in read-only mode.
func mapFileReadOnly(file *os.File, size int) (MMap, error) {
	if size == 0 {
		return MMap{}, nil
	}

	data, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	return MMap(data), nil
}

// Unmap releases the mapping.
func (m MMap) Unmap() error {
	if len(m) == 0 {
		return nil
	}
	return unix.Munmap([]byte(m))
}

// Flush synchronously flushes the mapping's dirty pages to disk.
func (m MMap) Flush() error {
	if len(m) == 0 {
		return nil
	}
	return unix.Msync([]byte(m), unix.MS_SYNC)
}
