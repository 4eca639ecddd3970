package coredb

import (
	"encoding/binary"
	"os"
)

// materializeFreeLists extends a size-2 top array (a freshly created or
// read-only "serialized" group, spec.md §4.5's "Read-only (serialized)
// files") to carry free-position/free-length/(free-version) arrays, on
// first use as a writable group.
func (g *Group) materializeFreeLists() error {
	if g.top.Size() != 2 {
		return nil
	}

	freePos, err := NewIntColumn(g.alloc)
	if err != nil {
		return err
	}
	freeLen, err := NewIntColumn(g.alloc)
	if err != nil {
		return err
	}
	if err := g.top.Add(int64(freePos.Root())); err != nil {
		return err
	}
	if err := g.top.Add(int64(freeLen.Root())); err != nil {
		return err
	}
	if g.shared {
		freeVer, err := NewIntColumn(g.alloc)
		if err != nil {
			return err
		}
		if err := g.top.Add(int64(freeVer.Root())); err != nil {
			return err
		}
	}
	return nil
}

func (g *Group) freeListColumns() (pos, length, ver *IntColumn, hasVer bool) {
	pos = OpenIntColumn(g.alloc, g.top.GetChildRef(2))
	length = OpenIntColumn(g.alloc, g.top.GetChildRef(3))
	if g.top.Size() == 5 {
		ver = OpenIntColumn(g.alloc, g.top.GetChildRef(4))
		hasVer = true
	}
	return
}

// readlockVersion learns the oldest version still pinned by a live
// reader (spec.md §4.5's state-versions, §5 writer-protocol step 4). A
// non-shared group has no external readers, so it reports
// currentVersion+1. Commit computes this value but does not use it to
// reuse mapped-image holes: every commit appends at the end of the file.
func (g *Group) readlockVersion() uint64 {
	if !g.shared || g.sharedInfo == nil {
		return g.currentVersion + 1
	}
	return g.sharedInfo.readlockVersion()
}

// Commit runs the group-commit sequence (spec.md §4.5): flush dirty
// scratch data to end-of-file free space, record the flushed slabs as
// newly reusable holes, publish the new top-ref, and rebase the
// allocator onto a fresh mapping of the grown file/buffer.
func (g *Group) Commit() error {
	if !g.valid {
		return errInvalidGroup
	}
	if g.mode == ModeReadOnly {
		return errAlreadyOpenRO
	}

	if err := g.materializeFreeLists(); err != nil {
		return err
	}

	readlock := g.readlockVersion()
	newVersion := g.currentVersion + 1

	// Step 1+2: every dirty array already lives in scratch, contiguous in
	// ref space starting at the current baseline; flushing is therefore a
	// single contiguous append rather than a per-node walk.
	flushed := g.alloc.SlabBytes()
	writeFreeBefore := g.alloc.WriteFreeSpans()
	oldReadFree := g.alloc.ReadFreeSpans()
	baseline := g.alloc.Baseline()
	newSize := baseline + uint64(len(flushed))

	// Step 3: record the flushed slabs' leftover holes as newly reusable
	// mapped-image free space, tagged with the version being committed.
	pos, length, ver, hasVer := g.freeListColumns()
	for _, span := range writeFreeBefore {
		if err := pos.AddInt(int64(span.ref)); err != nil {
			return err
		}
		if err := length.AddInt(int64(span.size)); err != nil {
			return err
		}
		if hasVer {
			if err := ver.AddInt(int64(newVersion)); err != nil {
				return err
			}
		}
	}
	if err := g.top.SetChildRef(2, pos.Root()); err != nil {
		return err
	}
	if err := g.top.SetChildRef(3, length.Root()); err != nil {
		return err
	}
	if hasVer {
		if err := g.top.SetChildRef(4, ver.Root()); err != nil {
			return err
		}
	}

	// Build the new image: unchanged mapped prefix + freshly flushed
	// scratch bytes.
	oldImage := g.alloc.mappedImage()
	newImage := make(MMap, newSize)
	copy(newImage, oldImage[:baseline])
	copy(newImage[baseline:], flushed)
	binary.LittleEndian.PutUint64(newImage[0:8], uint64(g.top.Ref()))

	// Step 4-6: fsync, publish top-ref, fsync again.
	if g.file != nil {
		if err := g.file.Truncate(int64(newSize)); err != nil {
			return err
		}
		if _, err := g.file.WriteAt(newImage[baseline:], int64(baseline)); err != nil {
			return err
		}
		if err := g.file.Sync(); err != nil {
			return err
		}
		if _, err := g.file.WriteAt(newImage[0:8], 0); err != nil {
			return err
		}
		if err := g.file.Sync(); err != nil {
			return err
		}
		mapped, err := mapFile(g.file, int(newSize))
		if err != nil {
			return err
		}
		if err := oldImage.Unmap(); err != nil {
			return err
		}
		newImage = mapped
	}

	// Step 7: rebase the allocator, discarding scratch slabs.
	g.alloc.Rebase(newImage, newSize)

	readFree := readFreeAfterCommit(oldReadFree, writeFreeBefore, newVersion, readlock)
	g.alloc.SeedReadFree(readFree)

	// Step 8: refresh the group's own cached top handle onto the new
	// mapping (every other wrapper in this module is opened fresh per
	// operation and needs no such refresh).
	top, err := OpenArray(g.alloc, g.top.Ref())
	if err != nil {
		return err
	}
	g.top = top
	g.currentVersion = newVersion

	if g.shared && g.sharedInfo != nil {
		return g.sharedInfo.publish(uint64(g.top.Ref()), newSize, newVersion)
	}
	return nil
}

// readFreeAfterCommit carries the previous read-only free list forward
// unchanged and appends the just-flushed write-side holes, tagged with
// the version that made them visible as mapped-image space.
func readFreeAfterCommit(oldReadFree, flushedWriteFree []freeSpan, newVersion, _ uint64) []freeSpan {
	out := append([]freeSpan(nil), oldReadFree...)
	for _, s := range flushedWriteFree {
		out = append(out, freeSpan{ref: s.ref, size: s.size, version: newVersion})
	}
	return out
}

// WriteTo serializes a fresh, compact copy of the group (no free lists,
// top.size == 2) to a new file — spec.md §4.5's "read-only (serialized)
// files", surfaced per SPEC_FULL.md §2.3 as Group::write(path).
func (g *Group) WriteTo(path string) error {
	buf, err := g.WriteToBuffer()
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}

// WriteToBuffer is WriteTo without touching the filesystem.
func (g *Group) WriteToBuffer() ([]byte, error) {
	if !g.valid {
		return nil, errInvalidGroup
	}

	fresh, err := NewGroup()
	if err != nil {
		return nil, err
	}

	names, err := g.TableNames()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		src, err := g.GetTable(name)
		if err != nil {
			return nil, err
		}
		dst, err := fresh.AddTable(name)
		if err != nil {
			return nil, err
		}
		if err := copyTableContents(src, dst); err != nil {
			return nil, err
		}
	}

	return fresh.serializeCompact()
}

// serializeCompact packs the group's currently live, scratch-backed
// subtree (there is no mapped baseline yet for a fresh in-memory group)
// into a single flat buffer with an 8-byte top-ref prefix and top.size ==
// 2 — no free lists, matching a never-shared, freshly written file.
func (g *Group) serializeCompact() ([]byte, error) {
	flushed := g.alloc.SlabBytes()
	baseline := g.alloc.Baseline()
	size := baseline + uint64(len(flushed))

	out := make([]byte, size)
	copy(out[baseline:], flushed)
	binary.LittleEndian.PutUint64(out[0:8], uint64(g.top.Ref()))
	return out, nil
}

// copyTableContents reinserts every row and column of src into the
// (empty) table dst, used by WriteTo/WriteToBuffer to build a compact
// copy rather than simply aliasing the source allocator's refs.
func copyTableContents(src, dst *Table) error {
	n, err := src.schema.ColumnCount()
	if err != nil {
		return err
	}
	for col := 0; col < n; col++ {
		name, err := src.schema.ColumnName(col)
		if err != nil {
			return err
		}
		typ, err := src.schema.ColumnType(col)
		if err != nil {
			return err
		}
		if _, err := dst.AddColumn(name, typ.ReportedType()); err != nil {
			return err
		}
	}

	rows, err := src.RowCount()
	if err != nil {
		return err
	}
	for row := 0; row < rows; row++ {
		if _, err := dst.AddRow(); err != nil {
			return err
		}
		for col := 0; col < n; col++ {
			typ, err := src.schema.ColumnType(col)
			if err != nil {
				return err
			}
			if err := copyCell(src, dst, col, row, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyCell(src, dst *Table, col, row int, typ ColumnType) error {
	switch typ.ReportedType() {
	case TypeInt, TypeBool, TypeDate:
		v, err := src.GetInt(col, row)
		if err != nil {
			return err
		}
		return dst.SetInt(col, row, v)
	case TypeString:
		v, err := src.GetString(col, row)
		if err != nil {
			return err
		}
		return dst.SetString(col, row, v)
	case TypeBinary:
		v, err := src.GetBinary(col, row)
		if err != nil {
			return err
		}
		return dst.SetBinary(col, row, v)
	case TypeMixed:
		v, err := src.GetMixed(col, row)
		if err != nil {
			return err
		}
		return dst.SetMixed(col, row, v)
	case TypeSubtable:
		srcSub, err := src.GetSubtable(col, row)
		if err != nil {
			return err
		}
		dstSub, err := dst.GetSubtable(col, row)
		if err != nil {
			return err
		}
		return copyTableContents(srcSub, dstSub)
	default:
		return errWrongColumnType
	}
}
