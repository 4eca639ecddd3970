package coredb

import "errors"

// Blob operations (widthType ignore): the payload is an opaque byte run
// and the header's element count field holds a byte count rather than an
// element count, used for the long-string and binary leaf layouts
// (spec.md §4.3).

func (a *Array) checkBlob() {
	if a.widthType != widthTypeIgnore {
		panic("coredb: blob operation called on a non-ignore array")
	}
}

// Blob returns a read-only view of the stored bytes.
func (a *Array) Blob() []byte {
	a.checkBlob()
	return a.payload()[:a.size]
}

// AppendBlob grows the node and appends v to the end of the byte run.
func (a *Array) AppendBlob(v []byte) error {
	a.checkBlob()
	if err := a.copyOnWrite(); err != nil {
		return err
	}

	newLen := a.size + len(v)
	if err := a.ensureCapacity(headerSize + newLen); err != nil {
		return err
	}

	p := a.payload()
	copy(p[a.size:newLen], v)
	a.size = newLen
	a.commitHeader()
	return nil
}

// InsertBlobBytes splices v into the byte run at offset, shifting
// everything at or after offset to the right.
func (a *Array) InsertBlobBytes(offset int, v []byte) error {
	a.checkBlob()
	if offset < 0 || offset > a.size {
		return errors.New("coredb: blob offset out of bounds")
	}
	if err := a.copyOnWrite(); err != nil {
		return err
	}

	newLen := a.size + len(v)
	if err := a.ensureCapacity(headerSize + newLen); err != nil {
		return err
	}

	p := a.payload()
	copy(p[offset+len(v):newLen], p[offset:a.size])
	copy(p[offset:offset+len(v)], v)
	a.size = newLen
	a.commitHeader()
	return nil
}

// DeleteBlobBytes removes [offset, offset+n) from the byte run, shifting
// the tail left.
func (a *Array) DeleteBlobBytes(offset, n int) error {
	a.checkBlob()
	if offset < 0 || n < 0 || offset+n > a.size {
		return errors.New("coredb: blob range out of bounds")
	}
	if err := a.copyOnWrite(); err != nil {
		return err
	}

	p := a.payload()
	copy(p[offset:a.size-n], p[offset+n:a.size])
	a.size -= n
	a.commitHeader()
	return nil
}

// SetBlobRange overwrites [offset, offset+len(v)) in place, growing the
// node if the write extends past the current length.
func (a *Array) SetBlobRange(offset int, v []byte) error {
	a.checkBlob()
	if offset < 0 || offset > a.size {
		return errors.New("coredb: blob range out of bounds")
	}
	if err := a.copyOnWrite(); err != nil {
		return err
	}

	end := offset + len(v)
	if end > a.size {
		if err := a.ensureCapacity(headerSize + end); err != nil {
			return err
		}
		a.size = end
		a.commitHeader()
	}

	p := a.payload()
	copy(p[offset:end], v)
	return nil
}

// TruncateBlob shrinks the logical length without releasing capacity.
func (a *Array) TruncateBlob(newLen int) error {
	a.checkBlob()
	if newLen < 0 || newLen > a.size {
		return errors.New("coredb: blob truncate length out of bounds")
	}
	if err := a.copyOnWrite(); err != nil {
		return err
	}
	a.size = newLen
	a.commitHeader()
	return nil
}
