package model

type RecordKind int

const (
	KindData RecordKind = iota
	KindDeletion
)

// Record is one entry produced by splitting a segment file. Data records
// carry a payload for a single (device, slot); deletion records carry a
// slot range and apply to every replica set the load has touched so far.
// Records are immutable once produced.
type Record struct {
	Kind   RecordKind
	Device string
	Slot   int64

	// Payload is set for data records only.
	Payload []byte

	// StartSlot and EndSlot are set for deletion records only.
	StartSlot int64
	EndSlot   int64

	// Size is the record's footprint in the source file in bytes.
	Size int64
}

func (r Record) IsDeletion() bool {
	return r.Kind == KindDeletion
}

func (r Record) DataSize() int64 {
	return r.Size
}
