package merkle

import (
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/common"
)

const (
	leafPrefix = 0x00
	nodePrefix = 0x01
)

// EmptyRoot is the root hash of a tree holding zero leaves: H("").
func EmptyRoot() common.Hash {
	return sha256.Sum256(nil)
}

// leafHash computes the domain-separated leaf hash H(0x00 || data).
func leafHash(data []byte) common.Hash {
	h := getHasher()
	defer putHasher(h)
	h.Write([]byte{leafPrefix})
	h.Write(data)
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// interiorHash computes the domain-separated interior hash
// H(0x01 || left || right).
func interiorHash(left, right common.Hash) common.Hash {
	h := getHasher()
	defer putHasher(h)
	h.Write([]byte{nodePrefix})
	h.Write(left[:])
	h.Write(right[:])
	var out common.Hash
	h.Sum(out[:0])
	return out
}
