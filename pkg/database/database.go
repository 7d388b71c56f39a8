// Package database implements the top-level database facade: the single
// type an embedding application opens, that binds the record-store
// engine (pkg/store), the blob store (pkg/blob), the sequence tracker
// (pkg/feed), and a versioning-scheme DocumentFactory (pkg/revtree today,
// a version-vector stub reserved for later) behind one transaction
// discipline.
package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/cuemby/veyradb/pkg/blob"
	"github.com/cuemby/veyradb/pkg/config"
	"github.com/cuemby/veyradb/pkg/dberr"
	"github.com/cuemby/veyradb/pkg/feed"
	"github.com/cuemby/veyradb/pkg/log"
	"github.com/cuemby/veyradb/pkg/revtree"
	"github.com/cuemby/veyradb/pkg/store"
	"github.com/cuemby/veyradb/pkg/types"
)

const defaultStoreName = "_default"
const attachmentsDirName = "Attachments"
const sqlFileName = "db.sqlite3"

// Database is the engine's top-level facade: one open bundle directory
// containing the SQL record-store file, the blob-store directory, and the
// reserved raw-document file.
type Database struct {
	dir  string
	cfg  config.Config
	sql  *store.DB
	blob *blob.Store
	raw  *rawStore

	stores  map[string]*store.KeyStore
	tracker *feed.Tracker
	factory DocumentFactory

	txDepth int
	txn     *store.Txn
}

// Open opens (creating if cfg.Create) the bundle directory at dir.
//
// Transaction discipline mirrors the design's `_transactionMutex`/`_mutex`
// ordering: BeginTransaction/EndTransaction nest (reentrant, counted) and
// only the outermost call touches the SQL transaction; callers are
// expected to serialize access themselves (in this engine, the single
// DBActor goroutine is the only caller — see pkg/actor), so Database
// itself does not attempt a cross-goroutine recursive lock.
func Open(dir string, cfg config.Config) (*Database, *dberr.Error) {
	if derr := cfg.Validate(); derr != nil {
		return nil, derr
	}
	if !cfg.Create {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, dberr.Newf(dberr.CantOpenFile, "database bundle %s does not exist", dir)
		}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, dberr.Wrap(dberr.CantOpenFile, err, "creating database bundle directory")
	}

	sqlDB, derr := store.Open(filepath.Join(dir, sqlFileName), store.OpenOptions{
		Create:    cfg.Create,
		Writeable: cfg.Writeable,
	})
	if derr != nil {
		return nil, derr
	}

	blobOpts := blob.Options{Create: cfg.Create, Writeable: cfg.Writeable}
	if cfg.EncryptionAlgorithm == config.EncryptionAES256 {
		blobOpts.EncryptionAlgorithm = blob.AES256
		blobOpts.EncryptionKey = cfg.ResolvedEncryptionKey()
	}
	blobStore, derr := blob.Open(filepath.Join(dir, attachmentsDirName), blobOpts)
	if derr != nil {
		sqlDB.Close()
		return nil, derr
	}

	raw, derr := openRawStore(dir)
	if derr != nil {
		sqlDB.Close()
		return nil, derr
	}

	db := &Database{
		dir:     dir,
		cfg:     cfg,
		sql:     sqlDB,
		blob:    blobStore,
		raw:     raw,
		stores:  make(map[string]*store.KeyStore),
		tracker: feed.NewTracker(),
	}

	switch cfg.Versioning {
	case config.VersionVectors:
		db.factory = NewVersionVectorFactory()
	default:
		db.factory = NewRevTreeFactory(nil)
	}

	if _, derr := db.getKeyStoreLocked(defaultStoreName); derr != nil {
		sqlDB.Close()
		raw.close()
		return nil, derr
	}

	log.WithDatabase(dir).Info().Msg("database opened")
	return db, nil
}

// Close closes every backing file. Refuses while a transaction is open.
func (d *Database) Close() *dberr.Error {
	if d.txDepth > 0 {
		return dberr.New(dberr.TransactionNotClosed, "cannot close database with an open transaction")
	}
	d.tracker.Close()
	if err := d.sql.Close(); err != nil {
		return dberr.Wrap(dberr.Unexpected, err, "closing sql store")
	}
	if err := d.raw.close(); err != nil {
		return dberr.Wrap(dberr.Unexpected, err, "closing raw document store")
	}
	log.WithDatabase(d.dir).Info().Msg("database closed")
	return nil
}

// Delete closes the database and removes the entire bundle directory.
func (d *Database) Delete() *dberr.Error {
	if derr := d.Close(); derr != nil {
		return derr
	}
	if err := os.RemoveAll(d.dir); err != nil {
		return dberr.Wrap(dberr.Unexpected, err, "deleting database bundle")
	}
	return nil
}

// Compact removes soft-deleted rows from every key store opened so far and
// reclaims their space; the blob store is not compacted.
func (d *Database) Compact() *dberr.Error {
	for _, ks := range d.stores {
		if _, derr := ks.Compact(); derr != nil {
			return derr
		}
	}
	return nil
}

// Rekey re-encrypts every blob in the store under a new key, replacing
// the blob store's encryption configuration in place. A target algorithm
// of config.EncryptionNone removes encryption entirely.
func (d *Database) Rekey(newAlgorithm config.EncryptionAlgorithm, newKey []byte) *dberr.Error {
	keys, derr := d.blob.Keys()
	if derr != nil {
		return derr
	}

	newDir := filepath.Join(d.dir, attachmentsDirName+".rekey")
	os.RemoveAll(newDir)
	blobOpts := blob.Options{Create: true, Writeable: true}
	if newAlgorithm == config.EncryptionAES256 {
		blobOpts.EncryptionAlgorithm = blob.AES256
		blobOpts.EncryptionKey = newKey
	}
	newStore, derr := blob.Open(newDir, blobOpts)
	if derr != nil {
		return derr
	}

	for _, key := range keys {
		contents, derr := d.blob.Get(key).Contents()
		if derr != nil {
			os.RemoveAll(newDir)
			return derr
		}
		if _, derr := newStore.Put(contents); derr != nil {
			os.RemoveAll(newDir)
			return derr
		}
	}

	oldDir := filepath.Join(d.dir, attachmentsDirName)
	if err := os.RemoveAll(oldDir); err != nil {
		return dberr.Wrap(dberr.Unexpected, err, "removing old attachments directory")
	}
	if err := os.Rename(newDir, oldDir); err != nil {
		return dberr.Wrap(dberr.Unexpected, err, "installing rekeyed attachments directory")
	}

	reopened, derr := blob.Open(oldDir, blobOpts)
	if derr != nil {
		return derr
	}
	d.blob = reopened
	d.cfg.EncryptionAlgorithm = newAlgorithm
	d.cfg.EncryptionKey = newKey
	return nil
}

// BeginTransaction starts (or, if already inside one, extends) a
// transaction. Only the outermost call actually begins a SQL transaction.
func (d *Database) BeginTransaction() *dberr.Error {
	if d.txDepth == 0 {
		txn, derr := d.sql.BeginTxn()
		if derr != nil {
			return derr
		}
		d.txn = txn
	}
	d.txDepth++
	return nil
}

// EndTransaction ends the innermost nesting level; only when depth
// reaches zero does it actually commit or roll back.
func (d *Database) EndTransaction(commit bool) *dberr.Error {
	if d.txDepth == 0 {
		return dberr.New(dberr.TransactionNotClosed, "endTransaction called with no open transaction")
	}
	d.txDepth--
	if d.txDepth > 0 {
		return nil
	}
	txn := d.txn
	d.txn = nil
	if commit {
		return txn.Commit()
	}
	return txn.Rollback()
}

// InTransaction reports whether a transaction is currently open.
func (d *Database) InTransaction() bool { return d.txDepth > 0 }

func (d *Database) currentTxn() *store.Txn { return d.txn }

// GetKeyStore opens (creating if necessary) a named key store with the
// engine's standard capabilities (sequenced, soft-deleting).
func (d *Database) GetKeyStore(name string) (*store.KeyStore, *dberr.Error) {
	return d.getKeyStoreLocked(name)
}

func (d *Database) getKeyStoreLocked(name string) (*store.KeyStore, *dberr.Error) {
	if ks, ok := d.stores[name]; ok {
		return ks, nil
	}
	ks, derr := store.OpenKeyStore(d.sql, name, types.Capabilities{Sequences: true, SoftDeletes: true})
	if derr != nil {
		return nil, derr
	}
	d.stores[name] = ks
	return ks, nil
}

// DefaultKeyStore returns the database's default document collection.
func (d *Database) DefaultKeyStore() (*store.KeyStore, *dberr.Error) {
	return d.getKeyStoreLocked(defaultStoreName)
}

// CountDocuments returns the live document count in the default store.
func (d *Database) CountDocuments() (uint64, *dberr.Error) {
	ks, derr := d.DefaultKeyStore()
	if derr != nil {
		return 0, derr
	}
	return ks.RecordCount()
}

// LastSequence returns the default store's most recently assigned sequence.
func (d *Database) LastSequence() (uint64, *dberr.Error) {
	ks, derr := d.DefaultKeyStore()
	if derr != nil {
		return 0, derr
	}
	return ks.LastSequence()
}

// PutDocument writes a document's meta (encoded revision history) and
// body into the default store, notifying the sequence tracker on success.
// When MaxRevTreeDepth is set, the revision tree in meta is pruned to that
// depth before it is saved.
func (d *Database) PutDocument(docID string, meta, body []byte, deleted bool) (uint64, *dberr.Error) {
	ks, derr := d.DefaultKeyStore()
	if derr != nil {
		return 0, derr
	}
	if depth := d.cfg.MaxRevTreeDepth; depth > 0 && d.cfg.Versioning != config.VersionVectors {
		revs, derr := revtree.DecodeTree(meta, 0)
		if derr != nil {
			return 0, derr
		}
		if tree := revtree.New(revs); tree.Prune(depth) > 0 {
			meta = revtree.EncodeTree(tree.Revs)
		}
	}
	seq, derr := ks.Set(d.currentTxn(), []byte(docID), meta, body)
	if derr != nil {
		return 0, derr
	}
	d.tracker.Saved(seq, docID, deleted)
	return seq, nil
}

// GetDocument fetches a document's factory-decoded current revision.
func (d *Database) GetDocument(docID string) (*Document, *dberr.Error) {
	ks, derr := d.DefaultKeyStore()
	if derr != nil {
		return nil, derr
	}
	rec, derr := ks.Get([]byte(docID), types.ContentDefault)
	if derr != nil {
		return nil, derr
	}
	if !rec.Exists {
		return nil, dberr.New(dberr.NotFound, "document "+docID+" not found")
	}
	return d.factory.NewDocument(docID, rec.Meta)
}

// PurgeDocument entirely removes a document, leaving no tombstone, and
// does not notify the sequence tracker (a purge is invisible to
// replication, unlike a soft delete).
func (d *Database) PurgeDocument(docID string) (bool, *dberr.Error) {
	ks, derr := d.DefaultKeyStore()
	if derr != nil {
		return false, derr
	}
	return ks.Purge(d.currentTxn(), []byte(docID))
}

// GetRawDocument reads from the reserved raw-document store.
func (d *Database) GetRawDocument(storeName, key string) (RawDocument, *dberr.Error) {
	return d.raw.get(storeName, key)
}

// PutRawDocument writes to the reserved raw-document store.
func (d *Database) PutRawDocument(storeName, key string, body []byte) *dberr.Error {
	return d.raw.put(storeName, key, body)
}

const uuidsStoreName = "_uuids"

// GetUUID returns the database's public or private 32-byte identifier,
// generating and persisting it on first read.
func (d *Database) GetUUID(public bool) ([]byte, *dberr.Error) {
	key := "public"
	if !public {
		key = "private"
	}
	doc, derr := d.GetRawDocument(uuidsStoreName, key)
	if derr != nil {
		return nil, derr
	}
	if doc.Body != nil {
		return doc.Body, nil
	}

	id1 := uuid.New()
	id2 := uuid.New()
	combined := make([]byte, 0, 32)
	combined = append(combined, id1[:]...)
	combined = append(combined, id2[:]...)

	if derr := d.PutRawDocument(uuidsStoreName, key, combined); derr != nil {
		return nil, derr
	}
	return combined, nil
}

// Blobs exposes the underlying blob store for attachment access.
func (d *Database) Blobs() *blob.Store { return d.blob }

// Factory exposes the configured DocumentFactory.
func (d *Database) Factory() DocumentFactory { return d.factory }

// Tracker exposes the sequence tracker for replicator pushers and
// application-level change observers.
func (d *Database) Tracker() *feed.Tracker { return d.tracker }

// Path returns the bundle directory.
func (d *Database) Path() string { return d.dir }

// String implements fmt.Stringer for diagnostics and log fields.
func (d *Database) String() string { return fmt.Sprintf("Database(%s)", d.dir) }
