package coredb

import (
	"encoding/binary"
	"errors"
	"os"
)

// GroupMode selects how Open interprets and guards the backing file
// (spec.md §6: "Group::open(path, mode ∈ {default, read_only, shared,
// append, async})").
type GroupMode int

const (
	ModeDefault GroupMode = iota
	ModeReadOnly
	ModeShared
	ModeAppend
	ModeAsync
)

// GroupOpts configures Open, mirroring the teacher's MariOpts plain-
// struct configuration style (SPEC_FULL.md §2.1).
type GroupOpts struct {
	Path string
	Mode GroupMode
}

var (
	errInvalidGroup   = errors.New("coredb: group is not valid")
	errCorruptFile    = errors.New("coredb: corrupt group file")
	errAlreadyOpenRO  = errors.New("coredb: group opened read-only")
)

// Group is the file/buffer-level root object (spec.md §3.1, §4.5): a
// top-of-file Array holding the table-name index, table refs, and
// (once materialized) the free-space tracking arrays.
type Group struct {
	alloc *SlabAlloc
	top   *Array // hasRefs: [namesRef, tablesRef, freePosRef?, freeLenRef?, freeVerRef?]

	file   *os.File
	path   string
	mode   GroupMode
	shared bool
	valid  bool

	currentVersion uint64
	sharedInfo     *sharedInfo
}

// NewGroup creates a brand-new, unbacked (pure in-memory) group —
// equivalent to opening a buffer of length 0.
func NewGroup() (*Group, error) { return newGroupFromImage(nil, 0, false, nil, "", ModeDefault) }

// OpenGroupBuffer wraps an existing serialized image (spec.md §6's file
// format: 8-byte top-ref followed by a heap of Arrays) for reading and
// writing. The group works on a private copy of data.
func OpenGroupBuffer(data []byte) (*Group, error) {
	img := append(MMap(nil), data...)
	return newGroupFromImage(img, uint64(len(img)), false, nil, "", ModeDefault)
}

// OpenGroup opens (creating if absent) the file at opts.Path.
func OpenGroup(opts GroupOpts) (*Group, error) {
	flags := os.O_RDWR | os.O_CREATE
	if opts.Mode == ModeReadOnly {
		flags = os.O_RDONLY
	}
	file, err := os.OpenFile(opts.Path, flags, 0644)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	size := info.Size()

	var img MMap
	if size > 0 {
		if opts.Mode == ModeReadOnly {
			img, err = mapFileReadOnly(file, int(size))
		} else {
			img, err = mapFile(file, int(size))
		}
		if err != nil {
			file.Close()
			return nil, err
		}
	}

	return newGroupFromImage(img, uint64(size), false, file, opts.Path, opts.Mode)
}

func newGroupFromImage(img MMap, size uint64, ownedBuffer bool, file *os.File, path string, mode GroupMode) (*Group, error) {
	g := &Group{file: file, path: path, mode: mode, shared: mode == ModeShared}

	if size == 0 {
		g.alloc = NewSlabAlloc(nil, 8, ownedBuffer)
		top, err := NewArray(g.alloc, false, true, widthTypeBits)
		if err != nil {
			return nil, err
		}
		names, err := NewStringColumn(g.alloc)
		if err != nil {
			return nil, err
		}
		tables, err := newEmptyColumn(g.alloc, intLeafFactory{hasRefs: true})
		if err != nil {
			return nil, err
		}
		if err := top.Add(int64(names.Root())); err != nil {
			return nil, err
		}
		if err := top.Add(int64(tables.Root())); err != nil {
			return nil, err
		}
		g.top = top
		g.valid = true
		g.currentVersion = 0
		return g, nil
	}

	if size%8 != 0 {
		return nil, errCorruptFile
	}
	topOff := binary.LittleEndian.Uint64(img[0:8])
	if topOff == 0 || topOff >= size || topOff%8 != 0 {
		return nil, errCorruptFile
	}

	g.alloc = NewSlabAlloc(img, size, ownedBuffer)
	top, err := OpenArray(g.alloc, Ref(topOff))
	if err != nil {
		return nil, err
	}
	if top.Size() != 2 && top.Size() != 4 && top.Size() != 5 {
		return nil, errCorruptFile
	}
	g.top = top
	g.valid = true
	g.shared = top.Size() == 5
	return g, nil
}

// IsValid reports whether the group is usable. A failed open returns an
// error and no Group, so every Group the constructors return reports true.
func (g *Group) IsValid() bool { return g.valid }

func (g *Group) namesColumn() *StringColumn {
	return OpenStringColumn(g.alloc, g.top.GetChildRef(0))
}

func (g *Group) tablesColumn() *SubtableColumn {
	return OpenSubtableColumn(g.alloc, g.top.GetChildRef(1))
}

func (g *Group) syncTop(names *StringColumn, tables *SubtableColumn) error {
	if err := g.top.SetChildRef(0, names.Root()); err != nil {
		return err
	}
	return g.top.SetChildRef(1, tables.Root())
}

// HasTable reports whether name is present.
func (g *Group) HasTable(name string) (bool, error) {
	if !g.valid {
		return false, errInvalidGroup
	}
	idx, err := g.findTable(name)
	if err != nil {
		return false, err
	}
	return idx >= 0, nil
}

func (g *Group) findTable(name string) (int, error) {
	names := g.namesColumn()
	n, err := names.Size()
	if err != nil {
		return -1, err
	}
	for i := 0; i < n; i++ {
		v, err := names.GetString(i)
		if err != nil {
			return -1, err
		}
		if v == name {
			return i, nil
		}
	}
	return -1, nil
}

// GetTable opens an existing table by name, or an error if absent.
func (g *Group) GetTable(name string) (*Table, error) {
	if !g.valid {
		return nil, errInvalidGroup
	}
	idx, err := g.findTable(name)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, errors.New("coredb: no such table: " + name)
	}
	ref, err := g.tablesColumn().GetRef(idx)
	if err != nil {
		return nil, err
	}
	table, err := OpenTable(g.alloc, ref)
	if err != nil {
		return nil, err
	}
	table.top.SetParent(&groupTableParent{g: g, idx: idx}, 0)
	return table, nil
}

// groupTableParent re-links a Table opened via Group.GetTable/AddTable back
// to its slot in the group's tables column, for the same reason
// subtableParent exists for nested subtables (table.go): without it, a
// copy-on-write relocation of the table's top array (triggered by the
// first mutation of a table reopened from a read-only mapped file) is
// never written back into the group, and Commit silently publishes the
// table's old, unmodified ref.
type groupTableParent struct {
	g   *Group
	idx int
}

func (p *groupTableParent) UpdateChildRef(_ int, ref Ref) error {
	tables := p.g.tablesColumn()
	if err := tables.SetRef(p.idx, ref); err != nil {
		return err
	}
	return p.g.top.SetChildRef(1, tables.Root())
}

// AddTable creates and registers a new empty table (spec.md §6: "tables
// created on demand").
func (g *Group) AddTable(name string) (*Table, error) {
	if !g.valid {
		return nil, errInvalidGroup
	}
	if g.mode == ModeReadOnly {
		return nil, errAlreadyOpenRO
	}
	if idx, err := g.findTable(name); err != nil {
		return nil, err
	} else if idx >= 0 {
		return nil, errors.New("coredb: table already exists: " + name)
	}

	table, err := NewTable(g.alloc)
	if err != nil {
		return nil, err
	}

	names := g.namesColumn()
	tables := g.tablesColumn()
	idx, err := tables.Size()
	if err != nil {
		return nil, err
	}
	if err := names.AddString(name); err != nil {
		return nil, err
	}
	if err := tables.AddRef(table.Ref()); err != nil {
		return nil, err
	}
	if err := g.syncTop(names, tables); err != nil {
		return nil, err
	}
	table.top.SetParent(&groupTableParent{g: g, idx: idx}, 0)
	return table, nil
}

// TableNames lists every registered table, in registration order.
func (g *Group) TableNames() ([]string, error) {
	names := g.namesColumn()
	n, err := names.Size()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		out[i], err = names.GetString(i)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Close releases the group's file/mapping resources without committing.
func (g *Group) Close() error {
	if g.file == nil {
		return nil
	}
	if err := g.alloc.mappedImage().Unmap(); err != nil {
		return err
	}
	return g.file.Close()
}
