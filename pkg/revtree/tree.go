package revtree

import "sort"

// Tree is an ordered vector of Revs; ParentIndex refers by position
// within the same vector, so tree operations never store a back-pointer
// to an owning document (per the design's "avoid cyclic structures"
// note) — callers that need the owning docID pass it explicitly.
type Tree struct {
	Revs []Rev
}

// New wraps an already-decoded rev vector (e.g. from DecodeTree).
func New(revs []Rev) *Tree {
	return &Tree{Revs: revs}
}

// Leaves returns the indices of every rev with no children.
func (t *Tree) Leaves() []int {
	hasChild := make([]bool, len(t.Revs))
	for _, r := range t.Revs {
		if r.hasParent() {
			hasChild[r.ParentIndex] = true
		}
	}
	var leaves []int
	for i, has := range hasChild {
		if !has {
			leaves = append(leaves, i)
		}
	}
	return leaves
}

// InsertChild appends a new Rev as a child of parentIndex (or as a new
// root if parentIndex is NoParent), clearing the parent's Leaf bit and
// setting the child's.
func (t *Tree) InsertChild(parentIndex uint16, revID []byte, body []byte, deleted, hasAttachments bool) uint16 {
	if parentIndex != NoParent {
		t.Revs[parentIndex].Flags &^= Leaf
	}
	flags := Leaf
	if deleted {
		flags |= Deleted
	}
	if hasAttachments {
		flags |= HasAttachments
	}
	t.Revs = append(t.Revs, Rev{
		RevID:       revID,
		ParentIndex: parentIndex,
		Flags:       flags,
		Body:        body,
	})
	return uint16(len(t.Revs) - 1)
}

// CurrentIndex picks the leaf to treat as the document's current
// revision: the highest-sorted non-deleted leaf, or (if every leaf is
// deleted) the highest-sorted leaf overall.
func (t *Tree) CurrentIndex() (int, bool) {
	leaves := t.Leaves()
	if len(leaves) == 0 {
		return 0, false
	}

	best := -1
	bestAllDeleted := -1
	for _, i := range leaves {
		if !t.Revs[i].isDeleted() {
			if best == -1 || compareRevIDs(t.Revs[i].RevID, t.Revs[best].RevID) > 0 {
				best = i
			}
		}
		if bestAllDeleted == -1 || compareRevIDs(t.Revs[i].RevID, t.Revs[bestAllDeleted].RevID) > 0 {
			bestAllDeleted = i
		}
	}
	if best != -1 {
		return best, true
	}
	return bestAllDeleted, true
}

// IsConflicted reports whether the document has more than one
// non-deleted leaf.
func (t *Tree) IsConflicted() bool {
	count := 0
	for _, i := range t.Leaves() {
		if !t.Revs[i].isDeleted() {
			count++
			if count > 1 {
				return true
			}
		}
	}
	return false
}

// Prune removes revs that fall deeper than maxDepth generations behind
// any leaf, keeping the tree's invariants (acyclic, indices renumbered).
// When more than one unreferenced rev would be removed in the same pass,
// they're dropped oldest-non-leaf-first, deterministic by ascending
// sequence (the design's resolution of the open question on tie-break
// order).
func (t *Tree) Prune(maxDepth int) int {
	if maxDepth <= 0 || len(t.Revs) == 0 {
		return 0
	}

	reached := make([]bool, len(t.Revs))
	for _, leaf := range t.Leaves() {
		idx := leaf
		for depth := 0; depth < maxDepth && idx != NoParent; depth++ {
			if reached[idx] {
				break
			}
			reached[idx] = true
			parent := t.Revs[idx].ParentIndex
			if parent == NoParent {
				break
			}
			idx = int(parent)
		}
	}

	var toRemove []int
	for i, keep := range reached {
		if !keep {
			toRemove = append(toRemove, i)
		}
	}
	if len(toRemove) == 0 {
		return 0
	}

	sort.Slice(toRemove, func(a, b int) bool {
		return t.Revs[toRemove[a]].Sequence < t.Revs[toRemove[b]].Sequence
	})

	remove := make(map[int]bool, len(toRemove))
	for _, i := range toRemove {
		remove[i] = true
	}

	// Build the renumbering map old-index -> new-index for kept revs.
	newIndex := make([]int, len(t.Revs))
	kept := make([]Rev, 0, len(t.Revs)-len(toRemove))
	for i, r := range t.Revs {
		if remove[i] {
			newIndex[i] = -1
			continue
		}
		newIndex[i] = len(kept)
		kept = append(kept, r)
	}
	for i := range kept {
		if kept[i].hasParent() {
			kept[i].ParentIndex = uint16(newIndex[kept[i].ParentIndex])
		}
	}
	t.Revs = kept
	return len(toRemove)
}
