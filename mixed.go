package coredb

// MixedType tags the dynamic type carried by a Mixed cell (spec.md
// §3.1, §4.4).
type MixedType int

const (
	MixedInt MixedType = iota
	MixedBool
	MixedDate
	MixedString
	MixedBinary
	MixedSubtable
)

// Mixed is the dynamically typed value a mixed column cell exposes to
// callers. Exactly one of the typed fields is meaningful, selected by
// Type.
type Mixed struct {
	Type    MixedType
	Int     int64
	Bool    bool
	Date    int64 // Unix seconds, mirroring the reference's date representation
	Str     string
	Bin     []byte
	Subtable Ref
}

func NewMixedInt(v int64) Mixed    { return Mixed{Type: MixedInt, Int: v} }
func NewMixedBool(v bool) Mixed    { return Mixed{Type: MixedBool, Bool: v} }
func NewMixedDate(v int64) Mixed   { return Mixed{Type: MixedDate, Date: v} }
func NewMixedString(v string) Mixed { return Mixed{Type: MixedString, Str: v} }
func NewMixedBinary(v []byte) Mixed { return Mixed{Type: MixedBinary, Bin: v} }
func NewMixedSubtable(ref Ref) Mixed { return Mixed{Type: MixedSubtable, Subtable: ref} }
