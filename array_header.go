package coredb

// Array header layout (spec.md §3.1, §4.2):
//
//	byte 0:     flags — bit7 is-inner-node, bit6 has-refs,
//	            bits4..3 width-type, bits2..0 stored width.
//	bytes 1..3: element count, big-endian 24-bit.
//	bytes 4..6: allocated capacity in bytes, big-endian 24-bit.
//	byte 7:     reserved.
const headerSize = 8

// Width-type values (spec.md §3.1): top-level payload layout mode.
const (
	widthTypeBits     = 0 // tightly bit-packed signed integers / refs
	widthTypeMultiply = 1 // fixed N-byte slots (short strings)
	widthTypeIgnore   = 2 // opaque byte blob (long-string/binary payload)
)

// widthTable maps a 3-bit stored width code to its actual width, per the
// formula in spec.md §4.2: width = (1 << stored) >> 1.
var widthTable = [8]int{0, 1, 2, 4, 8, 16, 32, 64}

func storedToWidth(stored int) int { return widthTable[stored&0x7] }

func widthToStored(width int) int {
	switch width {
	case 0:
		return 0
	case 1:
		return 1
	case 2:
		return 2
	case 4:
		return 3
	case 8:
		return 4
	case 16:
		return 5
	case 32:
		return 6
	case 64:
		return 7
	default:
		panic("coredb: invalid array width")
	}
}

func encodeHeader(buf []byte, isInner, hasRefs bool, widthType, width, size, capacity int) {
	var b0 byte
	if isInner {
		b0 |= 1 << 7
	}
	if hasRefs {
		b0 |= 1 << 6
	}
	b0 |= byte(widthType&0x3) << 3
	b0 |= byte(widthToStored(width) & 0x7)
	buf[0] = b0

	buf[1] = byte(size >> 16)
	buf[2] = byte(size >> 8)
	buf[3] = byte(size)

	buf[4] = byte(capacity >> 16)
	buf[5] = byte(capacity >> 8)
	buf[6] = byte(capacity)

	buf[7] = 0
}

type arrayHeader struct {
	isInner  bool
	hasRefs  bool
	widthType int
	width    int
	size     int
	capacity int
}

func decodeHeader(buf []byte) arrayHeader {
	b0 := buf[0]
	return arrayHeader{
		isInner:   b0&(1<<7) != 0,
		hasRefs:   b0&(1<<6) != 0,
		widthType: int((b0 >> 3) & 0x3),
		width:     storedToWidth(int(b0 & 0x7)),
		size:      int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3]),
		capacity:  int(buf[4])<<16 | int(buf[5])<<8 | int(buf[6]),
	}
}

func setHeaderSize(buf []byte, size int) {
	buf[1] = byte(size >> 16)
	buf[2] = byte(size >> 8)
	buf[3] = byte(size)
}

func setHeaderCapacity(buf []byte, capacity int) {
	buf[4] = byte(capacity >> 16)
	buf[5] = byte(capacity >> 8)
	buf[6] = byte(capacity)
}

func setHeaderWidth(buf []byte, width int) {
	b0 := buf[0]
	b0 = b0&^0x7 | byte(widthToStored(width)&0x7)
	buf[0] = b0
}

// bitsPayloadBytes returns the payload length, in bytes, of n elements
// packed at the given bit width.
func bitsPayloadBytes(n, width int) int {
	if width == 0 {
		return 0
	}
	bits := n * width
	return (bits + 7) / 8
}

// multiplyPayloadBytes returns the payload length, in bytes, of n
// fixed-width-byte elements.
func multiplyPayloadBytes(n, width int) int { return n * width }

func roundUp8(n int) int { return (n + 7) &^ 7 }
