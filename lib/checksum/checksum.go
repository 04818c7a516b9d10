package checksum

import (
	"crypto/sha256"
	"encoding/binary"
)

// CalculateCheckSum folds the first bytes of a sha256 digest into an int so
// it travels as a plain scalar in RPC args.
func CalculateCheckSum(data []byte) int {
	digest := sha256.Sum256(data)

	return int(binary.BigEndian.Uint32(digest[:4]))
}
