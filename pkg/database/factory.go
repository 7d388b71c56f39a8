package database

import (
	"github.com/cuemby/veyradb/pkg/dberr"
	"github.com/cuemby/veyradb/pkg/revtree"
)

// Document is a single record's versioned view: its current revision
// body plus enough of its history to detect conflicts and build the
// `rev` history list the replication protocol sends.
type Document struct {
	DocID    string
	RevID    []byte
	Body     []byte
	Deleted  bool
	Sequence uint64
	Conflict bool
}

// FleeceAccessor decodes a record body and returns the raw encoded value
// of a named property. The body's columnar encoding is an external
// collaborator this package never needs to understand directly — callers
// (principally pkg/store's query compiler) register their own accessor.
type FleeceAccessor func(body []byte, property string) ([]byte, error)

// DocumentFactory is the small capability interface replacing the deep
// inheritance hierarchy a C++ rendition would use for revision-history
// strategy: exactly the three operations a database needs from whichever
// versioning scheme is configured.
type DocumentFactory interface {
	// NewDocument builds a Document view from a record's raw meta bytes
	// (the encoded revision tree or version vector) and ID.
	NewDocument(docID string, meta []byte) (*Document, *dberr.Error)
	// RevIDFromMeta extracts just the current revision ID, without
	// decoding the rest of the history.
	RevIDFromMeta(meta []byte) ([]byte, *dberr.Error)
	// FleeceAccessor returns the property accessor this factory's body
	// encoding supports, for registering with pkg/store's query compiler.
	FleeceAccessor() FleeceAccessor
}

// revTreeFactory is the only fully implemented DocumentFactory: meta
// bytes are an encoded revtree.Tree (§4.2).
type revTreeFactory struct {
	accessor FleeceAccessor
}

// NewRevTreeFactory builds a DocumentFactory backed by pkg/revtree. Pass
// a non-nil accessor once the caller has a real body-dictionary decoder;
// nil disables query property-access until one is registered.
func NewRevTreeFactory(accessor FleeceAccessor) DocumentFactory {
	return &revTreeFactory{accessor: accessor}
}

func (f *revTreeFactory) NewDocument(docID string, meta []byte) (*Document, *dberr.Error) {
	revs, derr := revtree.DecodeTree(meta, 0)
	if derr != nil {
		return nil, derr
	}
	tree := revtree.New(revs)
	idx, ok := tree.CurrentIndex()
	if !ok {
		return nil, dberr.New(dberr.CorruptRevisionData, "revision tree has no current revision")
	}
	cur := tree.Revs[idx]
	return &Document{
		DocID:    docID,
		RevID:    cur.RevID,
		Body:     cur.Body,
		Deleted:  cur.Flags&revtree.Deleted != 0,
		Sequence: cur.Sequence,
		Conflict: tree.IsConflicted(),
	}, nil
}

func (f *revTreeFactory) RevIDFromMeta(meta []byte) ([]byte, *dberr.Error) {
	revs, derr := revtree.DecodeTree(meta, 0)
	if derr != nil {
		return nil, derr
	}
	tree := revtree.New(revs)
	idx, ok := tree.CurrentIndex()
	if !ok {
		return nil, dberr.New(dberr.CorruptRevisionData, "revision tree has no current revision")
	}
	return tree.Revs[idx].RevID, nil
}

func (f *revTreeFactory) FleeceAccessor() FleeceAccessor { return f.accessor }

// versionVectorFactory exists so config.Versioning is a real tagged
// choice rather than a single hardcoded path; version vectors are not
// implemented.
type versionVectorFactory struct{}

// NewVersionVectorFactory returns a DocumentFactory stub for the
// not-yet-implemented version-vector scheme.
func NewVersionVectorFactory() DocumentFactory { return &versionVectorFactory{} }

func (f *versionVectorFactory) NewDocument(docID string, meta []byte) (*Document, *dberr.Error) {
	return nil, dberr.New(dberr.Unimplemented, "version-vector versioning is not implemented")
}

func (f *versionVectorFactory) RevIDFromMeta(meta []byte) ([]byte, *dberr.Error) {
	return nil, dberr.New(dberr.Unimplemented, "version-vector versioning is not implemented")
}

func (f *versionVectorFactory) FleeceAccessor() FleeceAccessor { return nil }
