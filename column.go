package coredb

import (
	"errors"
	"sort"
)

// ColumnFanOut bounds how large a leaf grows before the column promotes
// its root to an inner node and splits (spec.md §3.1, glossary "Fan-out").
// Kept at the reference implementation's value so the split/collapse
// scenarios in spec.md §8 land on the same boundaries.
const ColumnFanOut = 1000

// columnLeaf is the per-element-type leaf contract the generic B-tree
// engine in this file drives. Each column flavor (int, short/long string,
// enum, subtable, mixed) supplies its own implementation; the engine
// itself never interprets element values, only counts and refs.
type columnLeaf interface {
	Ref() Ref
	Size() int
	Get(i int) any
	Set(i int, v any) error
	Insert(i int, v any) error
	Delete(i int) error
	// Split moves the upper half of this leaf's elements into a freshly
	// allocated leaf of the same kind, shrinking the receiver in place.
	Split() (columnLeaf, error)
	Destroy() error
}

// leafFactory opens or creates leaves of one column flavor.
type leafFactory interface {
	OpenLeaf(alloc *SlabAlloc, ref Ref) (columnLeaf, error)
	NewLeaf(alloc *SlabAlloc) (columnLeaf, error)
}

// Column is a handle to a B-tree whose leaves hold one column's element
// stream (spec.md §3.1, §4.3).
type Column struct {
	alloc   *SlabAlloc
	root    Ref
	factory leafFactory
}

func newColumn(alloc *SlabAlloc, factory leafFactory, root Ref) *Column {
	return &Column{alloc: alloc, root: root, factory: factory}
}

// newEmptyColumn allocates a fresh, empty single-leaf column.
func newEmptyColumn(alloc *SlabAlloc, factory leafFactory) (*Column, error) {
	leaf, err := factory.NewLeaf(alloc)
	if err != nil {
		return nil, err
	}
	return newColumn(alloc, factory, leaf.Ref()), nil
}

func (c *Column) Root() Ref { return c.root }

// IsNode reports whether the column's root is currently a B-tree inner
// node rather than a single leaf (spec.md §8's is_node() testable
// property).
func (c *Column) IsNode() bool {
	if c.root.IsNull() {
		return false
	}
	a, err := OpenArray(c.alloc, c.root)
	if err != nil {
		return false
	}
	return a.IsInner()
}

// Size returns the column's logical row count.
func (c *Column) Size() (int, error) { return columnSize(c.alloc, c.factory, c.root) }

// Get returns the logical element at row i.
func (c *Column) Get(i int) (any, error) { return columnGet(c.alloc, c.factory, c.root, i) }

// Set overwrites the logical element at row i.
func (c *Column) Set(i int, v any) error {
	ref, err := columnSet(c.alloc, c.factory, c.root, i, v)
	if err != nil {
		return err
	}
	c.root = ref
	return nil
}

// Insert splices v at row i, splitting/promoting the root as needed.
func (c *Column) Insert(i int, v any) error {
	if c.root.IsNull() {
		leaf, err := c.factory.NewLeaf(c.alloc)
		if err != nil {
			return err
		}
		if err := leaf.Insert(0, v); err != nil {
			return err
		}
		c.root = leaf.Ref()
		return nil
	}

	out, err := columnInsertRec(c.alloc, c.factory, c.root, i, v)
	if err != nil {
		return err
	}
	if out.split == nil {
		c.root = out.ref
		return nil
	}

	node, err := NewArray(c.alloc, true, true, widthTypeBits)
	if err != nil {
		return err
	}
	offsets, err := NewArray(c.alloc, false, false, widthTypeBits)
	if err != nil {
		return err
	}
	refs, err := NewArray(c.alloc, false, true, widthTypeBits)
	if err != nil {
		return err
	}

	leftSize, err := columnSize(c.alloc, c.factory, out.split.left)
	if err != nil {
		return err
	}
	rightSize, err := columnSize(c.alloc, c.factory, out.split.right)
	if err != nil {
		return err
	}

	if err := offsets.Add(int64(leftSize)); err != nil {
		return err
	}
	if err := offsets.Add(int64(leftSize + rightSize)); err != nil {
		return err
	}
	if err := refs.Add(int64(uint64(out.split.left))); err != nil {
		return err
	}
	if err := refs.Add(int64(uint64(out.split.right))); err != nil {
		return err
	}
	if err := node.Add(int64(offsets.Ref())); err != nil {
		return err
	}
	if err := node.Add(int64(refs.Ref())); err != nil {
		return err
	}
	offsets.SetParent(node, 0)
	refs.SetParent(node, 1)

	c.root = node.Ref()
	return nil
}

// Add appends v as a new last row.
func (c *Column) Add(v any) error {
	size, err := c.Size()
	if err != nil {
		return err
	}
	return c.Insert(size, v)
}

// Delete removes row i, collapsing a single-child root per spec.md §4.3.
func (c *Column) Delete(i int) error {
	ref, err := columnDeleteRec(c.alloc, c.factory, c.root, i)
	if err != nil {
		return err
	}
	c.root = ref
	return c.collapseIfNeeded()
}

// collapseIfNeeded promotes an inner node's sole child to be the new root
// when deletes have left it with exactly one child (spec.md §4.3's "only
// balancing performed").
func (c *Column) collapseIfNeeded() error {
	if c.root.IsNull() {
		return nil
	}
	node, err := OpenArray(c.alloc, c.root)
	if err != nil {
		return err
	}
	if !node.IsInner() {
		return nil
	}

	refs, err := OpenArray(c.alloc, node.GetChildRef(1))
	if err != nil {
		return err
	}
	if refs.Size() != 1 {
		return nil
	}

	offsets, err := OpenArray(c.alloc, node.GetChildRef(0))
	if err != nil {
		return err
	}
	child := refs.GetChildRef(0)

	if err := offsets.FreeSelf(); err != nil {
		return err
	}
	if err := refs.FreeSelf(); err != nil {
		return err
	}
	if err := node.FreeSelf(); err != nil {
		return err
	}

	c.root = child
	return c.collapseIfNeeded()
}

// Destroy frees every node and leaf reachable from the column's root.
func (c *Column) Destroy() error { return columnDestroy(c.alloc, c.factory, c.root) }

// --- generic recursive engine -------------------------------------------------

func openNode(alloc *SlabAlloc, ref Ref) (node, offsets, refs *Array, err error) {
	node, err = OpenArray(alloc, ref)
	if err != nil {
		return nil, nil, nil, err
	}
	offsets, err = OpenArray(alloc, node.GetChildRef(0))
	if err != nil {
		return nil, nil, nil, err
	}
	refs, err = OpenArray(alloc, node.GetChildRef(1))
	if err != nil {
		return nil, nil, nil, err
	}
	return node, offsets, refs, nil
}

// locateChild returns the index of the child covering logical position i,
// and the cumulative offset preceding that child.
func locateChild(offsets *Array, i int) (idx int, prevOffset int64) {
	n := offsets.Size()
	idx = sort.Search(n, func(k int) bool { return offsets.Get(k) > int64(i) })
	if idx == n {
		idx = n - 1
	}
	if idx > 0 {
		prevOffset = offsets.Get(idx - 1)
	}
	return idx, prevOffset
}

func columnSize(alloc *SlabAlloc, factory leafFactory, root Ref) (int, error) {
	if root.IsNull() {
		return 0, nil
	}
	a, err := OpenArray(alloc, root)
	if err != nil {
		return 0, err
	}
	if a.IsInner() {
		offsets, err := OpenArray(alloc, a.GetChildRef(0))
		if err != nil {
			return 0, err
		}
		if offsets.Size() == 0 {
			return 0, nil
		}
		return int(offsets.Get(offsets.Size() - 1)), nil
	}

	leaf, err := factory.OpenLeaf(alloc, root)
	if err != nil {
		return 0, err
	}
	return leaf.Size(), nil
}

func columnGet(alloc *SlabAlloc, factory leafFactory, root Ref, i int) (any, error) {
	a, err := OpenArray(alloc, root)
	if err != nil {
		return nil, err
	}
	if !a.IsInner() {
		leaf, err := factory.OpenLeaf(alloc, root)
		if err != nil {
			return nil, err
		}
		return leaf.Get(i), nil
	}

	_, offsets, refs, err := openNode(alloc, root)
	if err != nil {
		return nil, err
	}
	idx, prevOffset := locateChild(offsets, i)
	return columnGet(alloc, factory, refs.GetChildRef(idx), i-int(prevOffset))
}

func columnSet(alloc *SlabAlloc, factory leafFactory, root Ref, i int, v any) (Ref, error) {
	a, err := OpenArray(alloc, root)
	if err != nil {
		return root, err
	}
	if !a.IsInner() {
		leaf, err := factory.OpenLeaf(alloc, root)
		if err != nil {
			return root, err
		}
		if err := leaf.Set(i, v); err != nil {
			return root, err
		}
		return leaf.Ref(), nil
	}

	node, offsets, refs, err := openNode(alloc, root)
	if err != nil {
		return root, err
	}
	idx, prevOffset := locateChild(offsets, i)
	childRef := refs.GetChildRef(idx)
	newChildRef, err := columnSet(alloc, factory, childRef, i-int(prevOffset), v)
	if err != nil {
		return root, err
	}
	if err := refs.SetChildRef(idx, newChildRef); err != nil {
		return root, err
	}
	if err := node.SetChildRef(0, offsets.Ref()); err != nil {
		return root, err
	}
	if err := node.SetChildRef(1, refs.Ref()); err != nil {
		return root, err
	}
	return node.Ref(), nil
}

// splitResult reports that a subtree split into two during an insert.
type splitResult struct {
	left, right Ref
}

type insertOutcome struct {
	ref   Ref
	split *splitResult
}

func columnInsertRec(alloc *SlabAlloc, factory leafFactory, ref Ref, i int, v any) (insertOutcome, error) {
	a, err := OpenArray(alloc, ref)
	if err != nil {
		return insertOutcome{}, err
	}

	if !a.IsInner() {
		leaf, err := factory.OpenLeaf(alloc, ref)
		if err != nil {
			return insertOutcome{}, err
		}

		if leaf.Size() < ColumnFanOut {
			if err := leaf.Insert(i, v); err != nil {
				return insertOutcome{}, err
			}
			return insertOutcome{ref: leaf.Ref()}, nil
		}

		right, err := leaf.Split()
		if err != nil {
			return insertOutcome{}, err
		}
		leftSize := leaf.Size()
		if i <= leftSize {
			if err := leaf.Insert(i, v); err != nil {
				return insertOutcome{}, err
			}
		} else if err := right.Insert(i-leftSize, v); err != nil {
			return insertOutcome{}, err
		}
		return insertOutcome{ref: leaf.Ref(), split: &splitResult{left: leaf.Ref(), right: right.Ref()}}, nil
	}

	node, offsets, refs, err := openNode(alloc, ref)
	if err != nil {
		return insertOutcome{}, err
	}

	idx, prevOffset := locateChild(offsets, i)
	childRef := refs.GetChildRef(idx)

	out, err := columnInsertRec(alloc, factory, childRef, i-int(prevOffset), v)
	if err != nil {
		return insertOutcome{}, err
	}

	if err := refs.SetChildRef(idx, out.ref); err != nil {
		return insertOutcome{}, err
	}
	for k := idx; k < offsets.Size(); k++ {
		if err := offsets.Set(k, offsets.Get(k)+1); err != nil {
			return insertOutcome{}, err
		}
	}

	if out.split != nil {
		oldOffsetAtIdx := offsets.Get(idx)
		leftSize, err := columnSize(alloc, factory, out.split.left)
		if err != nil {
			return insertOutcome{}, err
		}
		if err := offsets.Set(idx, prevOffset+int64(leftSize)); err != nil {
			return insertOutcome{}, err
		}
		if err := offsets.Insert(idx+1, oldOffsetAtIdx); err != nil {
			return insertOutcome{}, err
		}
		if err := refs.Insert(idx+1, int64(uint64(out.split.right))); err != nil {
			return insertOutcome{}, err
		}
	}

	if err := node.SetChildRef(0, offsets.Ref()); err != nil {
		return insertOutcome{}, err
	}
	if err := node.SetChildRef(1, refs.Ref()); err != nil {
		return insertOutcome{}, err
	}

	if refs.Size() > ColumnFanOut {
		leftRef, rightRef, err := splitInnerNode(alloc, node, offsets, refs)
		if err != nil {
			return insertOutcome{}, err
		}
		return insertOutcome{ref: leftRef, split: &splitResult{left: leftRef, right: rightRef}}, nil
	}

	return insertOutcome{ref: node.Ref()}, nil
}

// splitInnerNode rebuilds an over-full inner node as two fresh ones,
// re-basing the right half's offsets to start at 0. The original node,
// offsets and refs arrays are freed (not destroyed — their children now
// belong to the new arrays).
func splitInnerNode(alloc *SlabAlloc, node, offsets, refs *Array) (leftRef, rightRef Ref, err error) {
	n := refs.Size()
	mid := n / 2
	var base int64
	if mid > 0 {
		base = offsets.Get(mid - 1)
	}

	leftOffsets, err := NewArray(alloc, false, false, widthTypeBits)
	if err != nil {
		return 0, 0, err
	}
	leftRefs, err := NewArray(alloc, false, true, widthTypeBits)
	if err != nil {
		return 0, 0, err
	}
	rightOffsets, err := NewArray(alloc, false, false, widthTypeBits)
	if err != nil {
		return 0, 0, err
	}
	rightRefs, err := NewArray(alloc, false, true, widthTypeBits)
	if err != nil {
		return 0, 0, err
	}

	for k := 0; k < mid; k++ {
		if err := leftOffsets.Add(offsets.Get(k)); err != nil {
			return 0, 0, err
		}
		if err := leftRefs.Add(int64(uint64(refs.GetChildRef(k)))); err != nil {
			return 0, 0, err
		}
	}
	for k := mid; k < n; k++ {
		if err := rightOffsets.Add(offsets.Get(k) - base); err != nil {
			return 0, 0, err
		}
		if err := rightRefs.Add(int64(uint64(refs.GetChildRef(k)))); err != nil {
			return 0, 0, err
		}
	}

	leftNode, err := NewArray(alloc, true, true, widthTypeBits)
	if err != nil {
		return 0, 0, err
	}
	if err := leftNode.Add(int64(leftOffsets.Ref())); err != nil {
		return 0, 0, err
	}
	if err := leftNode.Add(int64(leftRefs.Ref())); err != nil {
		return 0, 0, err
	}
	leftOffsets.SetParent(leftNode, 0)
	leftRefs.SetParent(leftNode, 1)

	rightNode, err := NewArray(alloc, true, true, widthTypeBits)
	if err != nil {
		return 0, 0, err
	}
	if err := rightNode.Add(int64(rightOffsets.Ref())); err != nil {
		return 0, 0, err
	}
	if err := rightNode.Add(int64(rightRefs.Ref())); err != nil {
		return 0, 0, err
	}
	rightOffsets.SetParent(rightNode, 0)
	rightRefs.SetParent(rightNode, 1)

	if err := offsets.FreeSelf(); err != nil {
		return 0, 0, err
	}
	if err := refs.FreeSelf(); err != nil {
		return 0, 0, err
	}
	if err := node.FreeSelf(); err != nil {
		return 0, 0, err
	}

	return leftNode.Ref(), rightNode.Ref(), nil
}

func columnDeleteRec(alloc *SlabAlloc, factory leafFactory, ref Ref, i int) (Ref, error) {
	a, err := OpenArray(alloc, ref)
	if err != nil {
		return ref, err
	}

	if !a.IsInner() {
		leaf, err := factory.OpenLeaf(alloc, ref)
		if err != nil {
			return ref, err
		}
		if err := leaf.Delete(i); err != nil {
			return ref, err
		}
		return leaf.Ref(), nil
	}

	node, offsets, refs, err := openNode(alloc, ref)
	if err != nil {
		return ref, err
	}

	idx, prevOffset := locateChild(offsets, i)
	childRef := refs.GetChildRef(idx)

	newChildRef, err := columnDeleteRec(alloc, factory, childRef, i-int(prevOffset))
	if err != nil {
		return ref, err
	}
	if err := refs.SetChildRef(idx, newChildRef); err != nil {
		return ref, err
	}
	for k := idx; k < offsets.Size(); k++ {
		if err := offsets.Set(k, offsets.Get(k)-1); err != nil {
			return ref, err
		}
	}
	if err := node.SetChildRef(0, offsets.Ref()); err != nil {
		return ref, err
	}
	if err := node.SetChildRef(1, refs.Ref()); err != nil {
		return ref, err
	}
	return node.Ref(), nil
}

func columnDestroy(alloc *SlabAlloc, factory leafFactory, ref Ref) error {
	if ref.IsNull() {
		return nil
	}
	a, err := OpenArray(alloc, ref)
	if err != nil {
		return err
	}
	if !a.IsInner() {
		leaf, err := factory.OpenLeaf(alloc, ref)
		if err != nil {
			return err
		}
		return leaf.Destroy()
	}

	node, offsets, refs, err := openNode(alloc, ref)
	if err != nil {
		return err
	}
	for k := 0; k < refs.Size(); k++ {
		if err := columnDestroy(alloc, factory, refs.GetChildRef(k)); err != nil {
			return err
		}
	}
	if err := offsets.FreeSelf(); err != nil {
		return err
	}
	if err := refs.FreeSelf(); err != nil {
		return err
	}
	return node.FreeSelf()
}

var errLeafTypeMismatch = errors.New("coredb: leaf value type mismatch")
