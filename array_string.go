package coredb

import "errors"

// Fixed-width-slot operations (widthType multiply): each element occupies
// exactly a.width bytes, zero-padded, used for the short-string leaf
// layout (spec.md §4.3's "short string" column).

// multiplyWidths are the only slot sizes a multiply-width array may use,
// mirroring the bits width ladder's discrete steps but counted in bytes.
var multiplyWidths = []int{0, 4, 8, 16, 32, 64}

func requiredMultiplyWidth(n int) (int, error) {
	for _, w := range multiplyWidths {
		if n <= w {
			return w, nil
		}
	}
	return 0, errors.New("coredb: value too large for a short-string slot; promote to long string")
}

func (a *Array) checkMultiply() {
	if a.widthType != widthTypeMultiply {
		panic("coredb: fixed-width operation called on a non-multiply array")
	}
}

// GetFixedBytes returns element i's a.width-byte slot with its trailing
// zero pad trimmed; no accessor returns the untrimmed slot.
func (a *Array) GetFixedBytes(i int) []byte {
	a.checkMultiply()
	p := a.payload()
	raw := p[i*a.width : (i+1)*a.width]
	n := len(raw)
	for n > 0 && raw[n-1] == 0 {
		n--
	}
	out := make([]byte, n)
	copy(out, raw[:n])
	return out
}

// SetFixedBytes overwrites element i, widening the node's slot width
// first if necessary.
func (a *Array) SetFixedBytes(i int, v []byte) error {
	a.checkMultiply()
	if err := a.copyOnWrite(); err != nil {
		return err
	}

	rw, err := requiredMultiplyWidth(len(v))
	if err != nil {
		return err
	}

	if rw > a.width {
		if err := a.widenMultiply(rw); err != nil {
			return err
		}
	}

	p := a.payload()
	slot := p[i*a.width : (i+1)*a.width]
	for j := range slot {
		slot[j] = 0
	}
	copy(slot, v)
	return nil
}

// InsertFixedBytes splices a new slot at index i.
func (a *Array) InsertFixedBytes(i int, v []byte) error {
	a.checkMultiply()
	if i < 0 || i > a.size {
		return errors.New("coredb: array insert index out of range")
	}
	if err := a.copyOnWrite(); err != nil {
		return err
	}

	rw, err := requiredMultiplyWidth(len(v))
	if err != nil {
		return err
	}
	width := a.width
	if rw > width {
		width = rw
	}

	newSize := a.size + 1
	needed := headerSize + multiplyPayloadBytes(newSize, width)
	if err := a.ensureCapacity(needed); err != nil {
		return err
	}
	if width != a.width {
		if err := a.widenMultiply(width); err != nil {
			return err
		}
	}

	p := a.payload()
	// shift slots [i, size) up by one slot to open a hole at i.
	copy(p[(i+1)*width:(newSize)*width], p[i*width:a.size*width])
	hole := p[i*width : (i+1)*width]
	for j := range hole {
		hole[j] = 0
	}
	copy(hole, v)

	a.size = newSize
	a.commitHeader()
	return nil
}

// EraseFixedBytes removes the slot at index i.
func (a *Array) EraseFixedBytes(i int) error {
	a.checkMultiply()
	if i < 0 || i >= a.size {
		return errors.New("coredb: array erase index out of range")
	}
	if err := a.copyOnWrite(); err != nil {
		return err
	}

	p := a.payload()
	w := a.width
	copy(p[i*w:(a.size-1)*w], p[(i+1)*w:a.size*w])
	a.size--
	a.commitHeader()
	return nil
}

// widenMultiply repacks every existing slot into a new, wider slot size.
func (a *Array) widenMultiply(newWidth int) error {
	old := make([][]byte, a.size)
	p := a.payload()
	for i := range old {
		slot := p[i*a.width : (i+1)*a.width]
		old[i] = append([]byte(nil), slot...)
	}

	needed := headerSize + multiplyPayloadBytes(a.size, newWidth)
	if err := a.ensureCapacity(needed); err != nil {
		return err
	}

	a.width = newWidth
	np := a.payload()
	for i := range np {
		np[i] = 0
	}
	for i, slot := range old {
		copy(np[i*newWidth:(i+1)*newWidth], slot)
	}
	a.commitHeader()
	return nil
}
