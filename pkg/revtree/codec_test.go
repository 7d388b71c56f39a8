package revtree

import (
	"bytes"
	"testing"
)

func threeRevTree() []Rev {
	return []Rev{
		{RevID: []byte("1-a"), ParentIndex: NoParent, Sequence: 1, Flags: 0, Body: []byte("x")},
		{RevID: []byte("2-b"), ParentIndex: 0, Sequence: 2, Flags: Leaf, Body: []byte("y")},
		{RevID: []byte("2-c"), ParentIndex: 0, Sequence: 3, Flags: Leaf | Deleted, Body: nil},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	revs := threeRevTree()
	blob := EncodeTree(revs)

	// terminator: trailing 4 zero bytes
	if len(blob) < 4 || !bytes.Equal(blob[len(blob)-4:], []byte{0, 0, 0, 0}) {
		t.Fatalf("EncodeTree() missing terminator, got tail %x", blob[max(0, len(blob)-4):])
	}

	decoded, derr := DecodeTree(blob, 99)
	if derr != nil {
		t.Fatalf("DecodeTree() error: %v", derr)
	}
	if len(decoded) != len(revs) {
		t.Fatalf("DecodeTree() got %d revs, want %d", len(decoded), len(revs))
	}
	for i, want := range revs {
		got := decoded[i]
		if !bytes.Equal(got.RevID, want.RevID) {
			t.Errorf("rev[%d].RevID = %q, want %q", i, got.RevID, want.RevID)
		}
		if got.ParentIndex != want.ParentIndex {
			t.Errorf("rev[%d].ParentIndex = %d, want %d", i, got.ParentIndex, want.ParentIndex)
		}
		if got.Sequence != want.Sequence {
			t.Errorf("rev[%d].Sequence = %d, want %d", i, got.Sequence, want.Sequence)
		}
		if got.Flags != want.Flags {
			t.Errorf("rev[%d].Flags = %v, want %v", i, got.Flags, want.Flags)
		}
		if !bytes.Equal(got.Body, want.Body) {
			t.Errorf("rev[%d].Body = %q, want %q", i, got.Body, want.Body)
		}
	}
}

func TestDecodeAssignsCurSeqWhenZero(t *testing.T) {
	revs := []Rev{{RevID: []byte("1-a"), ParentIndex: NoParent, Sequence: 0, Body: []byte("z")}}
	blob := EncodeTree(revs)

	decoded, derr := DecodeTree(blob, 42)
	if derr != nil {
		t.Fatalf("DecodeTree() error: %v", derr)
	}
	if decoded[0].Sequence != 42 {
		t.Errorf("Sequence = %d, want 42 (curSeq)", decoded[0].Sequence)
	}
}

func TestDecodeTruncatedIsCorrupt(t *testing.T) {
	blob := EncodeTree(threeRevTree())
	truncated := blob[:len(blob)-6] // chop into the middle of the last record

	if _, derr := DecodeTree(truncated, 1); derr == nil {
		t.Fatal("DecodeTree() on truncated blob should fail")
	}
}

func TestCurrentRevBody(t *testing.T) {
	revs := threeRevTree()
	blob := EncodeTree(revs)

	body, derr := CurrentRevBody(blob)
	if derr != nil {
		t.Fatalf("CurrentRevBody() error: %v", derr)
	}
	if !bytes.Equal(body, []byte("x")) {
		t.Errorf("CurrentRevBody() = %q, want %q", body, "x")
	}
}
