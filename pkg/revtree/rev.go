// Package revtree implements the per-document revision history: the
// compact on-disk encoding of a tree of revisions (§4.2 of the design),
// and the tree operations (insert, prune, current-revision selection,
// conflict detection) layered on top of it.
package revtree

import "bytes"

// Flags is a bit field on a Rev. Only Deleted, Leaf, HasAttachments, and
// KeepBody are persisted to disk; NewRev and Foreign are transient,
// in-memory-only markers used while building a tree before it's saved.
type Flags uint8

const (
	Deleted Flags = 1 << iota
	Leaf
	NewRev
	HasAttachments
	KeepBody
	Foreign
)

// persistentFlags is the mask of bits written to the tree blob; NewRev and
// Foreign never survive a save.
const persistentFlags = Deleted | Leaf | HasAttachments | KeepBody

// NoParent marks a root revision: it has no parent within the tree.
const NoParent = 0xFFFF

// Rev is one node in a document's revision history.
type Rev struct {
	RevID       []byte // opaque, sorts lexicographically; conventionally "<gen>-<hash>"
	ParentIndex uint16 // index into the owning Tree's Revs, or NoParent
	Sequence    uint64
	Flags       Flags
	Body        []byte
}

func (r *Rev) isDeleted() bool { return r.Flags&Deleted != 0 }
func (r *Rev) isLeaf() bool    { return r.Flags&Leaf != 0 }
func (r *Rev) hasParent() bool { return r.ParentIndex != NoParent }

// Generation returns the numeric prefix of a conventional "<gen>-<hash>"
// revID, or 0 if the revID doesn't start with digits followed by '-'.
func Generation(revID []byte) int {
	dash := bytes.IndexByte(revID, '-')
	if dash <= 0 {
		return 0
	}
	gen := 0
	for _, c := range revID[:dash] {
		if c < '0' || c > '9' {
			return 0
		}
		gen = gen*10 + int(c-'0')
	}
	return gen
}

// compareRevIDs orders two revIDs the way current-revision selection
// requires: first by generation (descending gives "latest wins"), then
// lexicographically by the remainder of the ID.
func compareRevIDs(a, b []byte) int {
	ga, gb := Generation(a), Generation(b)
	if ga != gb {
		if ga < gb {
			return -1
		}
		return 1
	}
	return bytes.Compare(a, b)
}
