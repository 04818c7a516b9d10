package model

import "github.com/google/uuid"

type Node struct {
	ID      uuid.UUID
	Address string
}

// ReplicaSet is a named consensus group: the ordered list of nodes jointly
// responsible for one storage shard.
type ReplicaSet struct {
	ID    int
	Nodes []Node
}
