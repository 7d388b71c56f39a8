package store

import (
	"database/sql"
	"fmt"
	"regexp"

	"github.com/cuemby/veyradb/pkg/dberr"
	"github.com/cuemby/veyradb/pkg/types"
)

var validStoreName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// KeyStore is a named collection of records within a database, backed by
// one kv_<name> table. Capabilities are fixed at creation time.
type KeyStore struct {
	db   *DB
	name string
	caps types.Capabilities
}

func tableName(name string) string {
	return "kv_" + name
}

// OpenKeyStore opens (creating if necessary) the named key-store table.
func OpenKeyStore(db *DB, name string, caps types.Capabilities) (*KeyStore, *dberr.Error) {
	if !validStoreName.MatchString(name) {
		return nil, dberr.Newf(dberr.InvalidParameter, "invalid key store name %q", name)
	}
	ks := &KeyStore{db: db, name: name, caps: caps}
	if derr := ks.ensureTable(); derr != nil {
		return nil, derr
	}
	return ks, nil
}

func (ks *KeyStore) ensureTable() *dberr.Error {
	tbl := tableName(ks.name)
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key BLOB PRIMARY KEY,
		meta BLOB,
		body BLOB,
		sequence INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0
	)`, tbl)
	if _, err := ks.db.sql.Exec(schema); err != nil {
		return dberr.Wrap(dberr.CantOpenFile, err, "creating key store table "+ks.name)
	}
	if _, err := ks.db.sql.Exec(
		fmt.Sprintf(`INSERT OR IGNORE INTO kvmeta (name, lastSeq) VALUES (?, 0)`), ks.name); err != nil {
		return dberr.Wrap(dberr.CantOpenFile, err, "initializing kvmeta row for "+ks.name)
	}
	return nil
}

// Name returns the key store's name.
func (ks *KeyStore) Name() string { return ks.name }

// Capabilities returns the immutable capability set this store was opened with.
func (ks *KeyStore) Capabilities() types.Capabilities { return ks.caps }

func rowToRecord(key, meta, body sql.RawBytes, seq int64, deleted int64) types.Record {
	r := types.Record{
		Key:      append([]byte(nil), key...),
		Sequence: uint64(seq),
		Deleted:  deleted != 0,
		Exists:   true,
	}
	if meta != nil {
		r.Meta = append([]byte(nil), meta...)
	}
	if body != nil {
		r.Body = append([]byte(nil), body...)
	}
	return r
}

// Get fetches a record by key. Returns a Record with Exists==false and no
// error if the key isn't present.
func (ks *KeyStore) Get(key []byte, opts types.ContentOptions) (types.Record, *dberr.Error) {
	cols := "key, meta, body, sequence, deleted"
	if opts == types.ContentMetaOnly {
		cols = "key, meta, NULL, sequence, deleted"
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE key = ?`, cols, tableName(ks.name))
	row := ks.db.sql.QueryRow(q, key)
	return scanRecord(row)
}

// GetBySequence fetches a record by its assigned sequence number. Only
// valid for sequenced stores.
func (ks *KeyStore) GetBySequence(seq uint64, opts types.ContentOptions) (types.Record, *dberr.Error) {
	if !ks.caps.Sequences {
		return types.Record{}, dberr.New(dberr.NotSequenced, "key store is not sequenced")
	}
	cols := "key, meta, body, sequence, deleted"
	if opts == types.ContentMetaOnly {
		cols = "key, meta, NULL, sequence, deleted"
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE sequence = ?`, cols, tableName(ks.name))
	row := ks.db.sql.QueryRow(q, seq)
	return scanRecord(row)
}

func scanRecord(row *sql.Row) (types.Record, *dberr.Error) {
	var key, meta, body sql.RawBytes
	var seq, deleted int64
	if err := row.Scan(&key, &meta, &body, &seq, &deleted); err != nil {
		if err == sql.ErrNoRows {
			return types.Record{Exists: false}, nil
		}
		return types.Record{}, dberr.Wrap(dberr.Unexpected, err, "scanning record")
	}
	return rowToRecord(key, meta, body, seq, deleted), nil
}

// Set writes (inserting or overwriting) a record's meta and body, assigning
// a new sequence if the store is sequenced. Runs inside txn.
func (ks *KeyStore) Set(txn *Txn, key, meta, body []byte) (seq uint64, derr *dberr.Error) {
	q := ks.querierFor(txn)

	if ks.caps.Sequences {
		seq, derr = ks.nextSequence(q)
		if derr != nil {
			return 0, derr
		}
	}

	tbl := tableName(ks.name)
	_, err := q.Exec(fmt.Sprintf(
		`INSERT INTO %s (key, meta, body, sequence, deleted) VALUES (?, ?, ?, ?, 0)
		 ON CONFLICT(key) DO UPDATE SET meta=excluded.meta, body=excluded.body, sequence=excluded.sequence, deleted=0`, tbl),
		key, meta, body, seq)
	if err != nil {
		return 0, dberr.Wrap(dberr.Unexpected, err, "writing record")
	}
	return seq, nil
}

// Write stores a fully formed Record, keeping rec.Sequence when it is
// non-zero and assigning the next sequence otherwise.
func (ks *KeyStore) Write(txn *Txn, rec types.Record) *dberr.Error {
	q := ks.querierFor(txn)
	seq := rec.Sequence
	if ks.caps.Sequences && seq == 0 {
		var derr *dberr.Error
		seq, derr = ks.nextSequence(q)
		if derr != nil {
			return derr
		}
	}
	deletedFlag := 0
	if rec.Deleted {
		deletedFlag = 1
	}
	tbl := tableName(ks.name)
	_, err := q.Exec(fmt.Sprintf(
		`INSERT INTO %s (key, meta, body, sequence, deleted) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET meta=excluded.meta, body=excluded.body, sequence=excluded.sequence, deleted=excluded.deleted`, tbl),
		rec.Key, rec.Meta, rec.Body, seq, deletedFlag)
	if err != nil {
		return dberr.Wrap(dberr.Unexpected, err, "writing record")
	}
	return nil
}

// Del removes a record. If the store has soft-deletes enabled, the row is
// kept with deleted=1, meta/body nulled, and a fresh sequence assigned so
// replicators observe the tombstone (P5); otherwise the row is removed.
// Returns false if the key didn't exist.
func (ks *KeyStore) Del(txn *Txn, key []byte) (bool, *dberr.Error) {
	q := ks.querierFor(txn)
	tbl := tableName(ks.name)

	if ks.caps.SoftDeletes {
		var seq uint64
		var derr *dberr.Error
		if ks.caps.Sequences {
			seq, derr = ks.nextSequence(q)
			if derr != nil {
				return false, derr
			}
		}
		res, err := q.Exec(fmt.Sprintf(
			`UPDATE %s SET deleted=1, meta=NULL, body=NULL, sequence=? WHERE key=?`, tbl), seq, key)
		if err != nil {
			return false, dberr.Wrap(dberr.Unexpected, err, "soft-deleting record")
		}
		n, _ := res.RowsAffected()
		return n > 0, nil
	}

	res, err := q.Exec(fmt.Sprintf(`DELETE FROM %s WHERE key=?`, tbl), key)
	if err != nil {
		return false, dberr.Wrap(dberr.Unexpected, err, "deleting record")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Purge unconditionally removes a row, regardless of the store's
// soft-delete capability — unlike Del, it leaves no tombstone and does
// not advance the sequence counter. Used by database.purgeDocument(),
// which discards a document entirely rather than recording its deletion
// for replication.
func (ks *KeyStore) Purge(txn *Txn, key []byte) (bool, *dberr.Error) {
	q := ks.querierFor(txn)
	res, err := q.Exec(fmt.Sprintf(`DELETE FROM %s WHERE key=?`, tableName(ks.name)), key)
	if err != nil {
		return false, dberr.Wrap(dberr.Unexpected, err, "purging record")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Erase drops every row in the store without dropping the table itself.
func (ks *KeyStore) Erase(txn *Txn) *dberr.Error {
	q := ks.querierFor(txn)
	if _, err := q.Exec(fmt.Sprintf(`DELETE FROM %s`, tableName(ks.name))); err != nil {
		return dberr.Wrap(dberr.Unexpected, err, "erasing key store")
	}
	return nil
}

// LastSequence returns the most recently assigned sequence for this store.
func (ks *KeyStore) LastSequence() (uint64, *dberr.Error) {
	var seq int64
	err := ks.db.sql.QueryRow(`SELECT lastSeq FROM kvmeta WHERE name=?`, ks.name).Scan(&seq)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, dberr.Wrap(dberr.Unexpected, err, "reading lastSeq")
	}
	return uint64(seq), nil
}

// RecordCount returns the number of live (non-deleted) records.
func (ks *KeyStore) RecordCount() (uint64, *dberr.Error) {
	where := ""
	if ks.caps.SoftDeletes {
		where = " WHERE deleted=0"
	}
	var n int64
	err := ks.db.sql.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, tableName(ks.name), where)).Scan(&n)
	if err != nil {
		return 0, dberr.Wrap(dberr.Unexpected, err, "counting records")
	}
	return uint64(n), nil
}

// nextSequence increments this store's lastSeq in kvmeta and returns the
// new value, within the
// same querier so a concurrent committer can't observe a skipped value
// (P1: strict monotonicity, assigned atomically with the row write).
func (ks *KeyStore) nextSequence(q querier) (uint64, *dberr.Error) {
	_, err := q.Exec(`UPDATE kvmeta SET lastSeq = lastSeq + 1 WHERE name = ?`, ks.name)
	if err != nil {
		return 0, dberr.Wrap(dberr.Unexpected, err, "advancing sequence")
	}
	var seq int64
	if err := q.QueryRow(`SELECT lastSeq FROM kvmeta WHERE name = ?`, ks.name).Scan(&seq); err != nil {
		return 0, dberr.Wrap(dberr.Unexpected, err, "reading advanced sequence")
	}
	return uint64(seq), nil
}

func (ks *KeyStore) querierFor(txn *Txn) querier {
	if txn != nil {
		return txn.querier()
	}
	return dbQuerier{ks.db.sql}
}

// dbQuerier adapts *sql.DB to the querier interface for non-transactional
// calls (e.g. the facade running Set/Write outside an explicit Txn, which
// SQLite still treats as its own implicit transaction per statement).
type dbQuerier struct{ db *sql.DB }

func (d dbQuerier) Exec(query string, args ...any) (sql.Result, error) { return d.db.Exec(query, args...) }
func (d dbQuerier) Query(query string, args ...any) (*sql.Rows, error) { return d.db.Query(query, args...) }
func (d dbQuerier) QueryRow(query string, args ...any) *sql.Row        { return d.db.QueryRow(query, args...) }
