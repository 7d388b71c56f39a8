// Package types holds the data-model structs shared across the storage,
// revision-tree, blob, and database packages: the Record a key-store
// returns, the capability flags that shape what a given store can do, and
// the small value types (BlobKey, CloseReason) that show up at several
// package boundaries.
package types

import (
	"encoding/base64"
	"fmt"
)

// ContentOptions selects how much of a Record's columns get fetched.
type ContentOptions int

const (
	// ContentDefault fetches meta and body.
	ContentDefault ContentOptions = iota
	// ContentMetaOnly omits the body column to save I/O.
	ContentMetaOnly
)

// Record is a single row of a KeyStore: an opaque key, opaque meta and
// body blobs, the sequence assigned at write time, and a deletion flag.
//
// Invariant: Sequence == 0 iff the record does not exist in a sequenced
// store.
type Record struct {
	Key      []byte
	Meta     []byte
	Body     []byte
	Sequence uint64
	Deleted  bool
	Offset   uint64 // valid iff the owning store has GetByOffset
	Exists   bool   // set by bulk lookups to distinguish "not found" from a hit
}

// Capabilities are decided per-store at creation time and are immutable
// afterward; they select which columns/indexes exist and which operations
// are legal against the store.
type Capabilities struct {
	Sequences   bool // assigns and indexes a monotonic sequence column
	SoftDeletes bool // del() marks deleted=1 and advances sequence instead of removing the row
	GetByOffset bool // supports fetching a record by raw row offset
}

// BlobKey is the 20-byte SHA-1 digest addressing a blob.
type BlobKey [20]byte

// String renders a BlobKey as the unpadded base64url text used in blob
// file names.
func (k BlobKey) String() string {
	return base64.RawURLEncoding.EncodeToString(k[:])
}

// CloseReasonKind classifies why a replication socket closed.
type CloseReasonKind int

const (
	CloseWebSocket CloseReasonKind = iota
	ClosePOSIX
	CloseDNS
)

// CloseReason is the outward report of why a replicator's socket closed.
// Normal and GoingAway WebSocket codes are clean closes; anything else
// surfaces as an error on the replicator's state.
type CloseReason struct {
	Kind    CloseReasonKind
	Code    int
	Message string
}

func (r CloseReason) String() string {
	return fmt.Sprintf("%v(%d): %s", r.Kind, r.Code, r.Message)
}

// IsClean reports whether the close code is one of the two codes the
// protocol considers a normal shutdown rather than a failure.
func (r CloseReason) IsClean() bool {
	const (
		wsNormal    = 1000
		wsGoingAway = 1001
	)
	return r.Kind == CloseWebSocket && (r.Code == wsNormal || r.Code == wsGoingAway)
}
