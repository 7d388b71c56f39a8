// Package varint provides the small binary-encoding primitives the rest of
// the engine is built on: SHA-1 digests, unsigned varint encoding (the same
// base-128 scheme used by the revision-tree codec), and the big-endian
// helpers needed for the tree blob's fixed-width fields.
package varint

import (
	"crypto/sha1"
	"encoding/binary"
)

// DigestSize is the length in bytes of a SHA-1 digest.
const DigestSize = sha1.Size

// Digest computes the SHA-1 digest of data.
func Digest(data []byte) [DigestSize]byte {
	return sha1.Sum(data)
}

// PutUvarint appends the base-128 varint encoding of v to buf and returns
// the extended slice.
func PutUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// SizeUvarint returns the number of bytes PutUvarint would write for v.
func SizeUvarint(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// Uvarint reads a varint from the front of buf, returning the value and the
// number of bytes consumed. It returns n <= 0 if buf is too short or the
// encoding overflows, matching encoding/binary.Uvarint.
func Uvarint(buf []byte) (uint64, int) {
	return binary.Uvarint(buf)
}

// PutUint32 appends the big-endian encoding of v to buf.
func PutUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// Uint32 reads a big-endian uint32 from the front of buf.
func Uint32(buf []byte) uint32 {
	return binary.BigEndian.Uint32(buf)
}

// PutUint16 appends the big-endian encoding of v to buf.
func PutUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

// Uint16 reads a big-endian uint16 from the front of buf.
func Uint16(buf []byte) uint16 {
	return binary.BigEndian.Uint16(buf)
}
