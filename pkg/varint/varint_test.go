package varint

import (
	"bytes"
	"testing"
)

func TestDigest(t *testing.T) {
	d := Digest([]byte("hello"))
	if len(d) != DigestSize {
		t.Fatalf("Digest() length = %d, want %d", len(d), DigestSize)
	}
	// sha1("hello") = aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d
	want := []byte{0xaa, 0xf4, 0xc6, 0x1d, 0xdc, 0xc5, 0xe8, 0xa2, 0xda, 0xbe,
		0xde, 0x0f, 0x3b, 0x48, 0x2c, 0xd9, 0xae, 0xa9, 0x43, 0x4d}
	if !bytes.Equal(d[:], want) {
		t.Errorf("Digest(%q) = %x, want %x", "hello", d, want)
	}
}

func TestUvarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40}
	for _, v := range values {
		buf := PutUvarint(nil, v)
		if len(buf) != SizeUvarint(v) {
			t.Errorf("SizeUvarint(%d) = %d, encoded length = %d", v, SizeUvarint(v), len(buf))
		}
		got, n := Uvarint(buf)
		if n != len(buf) || got != v {
			t.Errorf("Uvarint(PutUvarint(%d)) = (%d, %d), want (%d, %d)", v, got, n, v, len(buf))
		}
	}
}

func TestBigEndianRoundTrip(t *testing.T) {
	buf := PutUint32(nil, 0xDEADBEEF)
	if Uint32(buf) != 0xDEADBEEF {
		t.Errorf("Uint32/PutUint32 round trip failed")
	}

	buf16 := PutUint16(nil, 0xBEEF)
	if Uint16(buf16) != 0xBEEF {
		t.Errorf("Uint16/PutUint16 round trip failed")
	}
}
