package model

// Piece is the unit of data dispatched to one replica set in one RPC call.
// A piece belongs to exactly one replica set for its lifetime; after a
// successful dispatch it is replaced by a fresh empty piece for the same
// target, never removed, so later deletion records still reach the target.
type Piece struct {
	ReplicaSetID int
	File         string
	Records      []Record
	DataSize     int64
}

func NewPiece(replicaSetID int, file string) *Piece {
	return &Piece{
		ReplicaSetID: replicaSetID,
		File:         file,
	}
}

func (p *Piece) Append(r Record) {
	p.Records = append(p.Records, r)
	p.DataSize += r.DataSize()
}
