package database

import (
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/veyradb/pkg/dberr"
)

// rawStore is the reserved raw-document store: an un-versioned
// storeName/key/value slot used internally for UUIDs and replication
// checkpoints, and exposed externally via getRawDocument/putRawDocument.
// It is a separate bbolt file rather than a table in the main SQL file
// because its contents (UUIDs, checkpoints) are never part of a
// document's revision history and never need SQL's query surface — a
// small embedded KV file is all this needs, the same role bbolt plays as
// the reserved state store elsewhere in the pack.
type rawStore struct {
	db *bolt.DB
}

func openRawStore(dataDir string) (*rawStore, *dberr.Error) {
	path := filepath.Join(dataDir, "raw.bolt")
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, dberr.Wrap(dberr.CantOpenFile, err, "opening raw document store")
	}
	return &rawStore{db: db}, nil
}

func (r *rawStore) close() error {
	return r.db.Close()
}

func bucketFor(storeName string) []byte { return []byte("raw_" + storeName) }

// RawDocument is the un-versioned get/put surface the facade exposes
// directly: a raw key/meta/body slot in a named reserved store.
type RawDocument struct {
	StoreName string
	Key       string
	Meta      []byte
	Body      []byte
}

func (r *rawStore) get(storeName, key string) (RawDocument, *dberr.Error) {
	doc := RawDocument{StoreName: storeName, Key: key}
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFor(storeName))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			doc.Body = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return RawDocument{}, dberr.Wrap(dberr.Unexpected, err, "reading raw document")
	}
	return doc, nil
}

func (r *rawStore) put(storeName, key string, body []byte) *dberr.Error {
	err := r.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketFor(storeName))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), body)
	})
	if err != nil {
		return dberr.Wrap(dberr.Unexpected, err, "writing raw document")
	}
	return nil
}

func (r *rawStore) delete(storeName, key string) *dberr.Error {
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFor(storeName))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return dberr.Wrap(dberr.Unexpected, err, fmt.Sprintf("deleting raw document %s/%s", storeName, key))
	}
	return nil
}
