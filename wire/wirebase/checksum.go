package wirebase

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// CHECKSUM_SIZE is the byte size of a chunk digest.
const CHECKSUM_SIZE = 16

// CHECKSUM_HEX_SIZE is the character length of a hex encoded chunk digest.
const CHECKSUM_HEX_SIZE = CHECKSUM_SIZE * 2

// ChecksumHex returns the hex encoded BLAKE2b-128 digest of data.
// The same input always yields the same digest, a receiver recomputes it
// per chunk and compares against the digest carried in the chunk header.
func ChecksumHex(data []byte) string {
	// New only fails on an invalid digest size or an oversized key.
	h, _ := blake2b.New(CHECKSUM_SIZE, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
