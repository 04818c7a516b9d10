package load

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolExhausted means every candidate node of a replica set failed.
	ErrPoolExhausted = errors.New("no node in replica set accepted the dispatch")
)

// RejectionError is an explicit application-level rejection from a node. It
// is fatal for the current piece or command: no retry, no further node.
type RejectionError struct {
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("rejected by node: status %d: %s", e.StatusCode, e.Message)
}

func IsRejection(err error) bool {
	var rejection *RejectionError

	return errors.As(err, &rejection)
}
