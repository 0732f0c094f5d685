package tally

// CounterKind selects one of the fixed cells inside a cluster.
type CounterKind uint8

const (
	Dropped CounterKind = iota
	Processed
	Stored
	Suppressed
	Stamp

	// NumCounterKinds sizes the per-cluster cell array.
	NumCounterKinds = 5
)

var counterKindNames = [NumCounterKinds]string{
	Dropped:    "dropped",
	Processed:  "processed",
	Stored:     "stored",
	Suppressed: "suppressed",
	Stamp:      "stamp",
}

// Valid reports whether k names an existing cell slot.
func (k CounterKind) Valid() bool {
	return k < NumCounterKinds
}

// String returns the canonical tag name used in published statistics.
func (k CounterKind) String() string {
	if !k.Valid() {
		return "unknown"
	}
	return counterKindNames[k]
}
