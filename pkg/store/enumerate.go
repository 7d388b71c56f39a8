package store

import (
	"database/sql"
	"fmt"

	"github.com/cuemby/veyradb/pkg/dberr"
	"github.com/cuemby/veyradb/pkg/types"
)

// EnumerateOptions control a range enumeration.
type EnumerateOptions struct {
	Descending     bool
	IncludeDeleted bool
	Limit          int64 // 0 means unbounded
	Skip           int64
}

// Enumerator iterates a result set one row at a time. seek() has no
// natural implementation over a SQL cursor without a second indexed query
// per call, so it is intentionally unsupported (§9 Open Questions).
type Enumerator struct {
	rows *sql.Rows
	err  *dberr.Error
	cur  types.Record
}

// Next advances to the next row, returning false at end of results or on error.
func (e *Enumerator) Next() bool {
	if e.err != nil || !e.rows.Next() {
		return false
	}
	var key, meta, body sql.RawBytes
	var seq, deleted int64
	if err := e.rows.Scan(&key, &meta, &body, &seq, &deleted); err != nil {
		e.err = dberr.Wrap(dberr.Unexpected, err, "scanning enumerator row")
		return false
	}
	e.cur = rowToRecord(key, meta, body, seq, deleted)
	return true
}

// Record returns the current row. Valid only between a true Next() and the
// following call to Next() or Close().
func (e *Enumerator) Record() types.Record { return e.cur }

// Err returns any error encountered during iteration.
func (e *Enumerator) Err() *dberr.Error { return e.err }

// Close releases the underlying rows.
func (e *Enumerator) Close() error { return e.rows.Close() }

// Seek is unsupported by the SQL-backed enumerator.
func (e *Enumerator) Seek(key []byte) *dberr.Error {
	return dberr.New(dberr.Unimplemented, "seek is not supported on the SQL-backed enumerator")
}

// EnumerateKeys returns rows with min <= key <= max (either bound may be
// nil to mean unbounded), in key order (reversed if Descending).
func (ks *KeyStore) EnumerateKeys(min, max []byte, opts EnumerateOptions) (*Enumerator, *dberr.Error) {
	tbl := tableName(ks.name)
	where := []string{}
	args := []any{}
	if min != nil {
		where = append(where, "key >= ?")
		args = append(args, min)
	}
	if max != nil {
		where = append(where, "key <= ?")
		args = append(args, max)
	}
	if ks.caps.SoftDeletes && !opts.IncludeDeleted {
		where = append(where, "deleted = 0")
	}
	return ks.runEnumeration(tbl, "key", where, args, opts)
}

// EnumerateSequences returns rows with sequence > since, ordered by
// sequence (reversed if Descending).
func (ks *KeyStore) EnumerateSequences(since uint64, opts EnumerateOptions) (*Enumerator, *dberr.Error) {
	if !ks.caps.Sequences {
		return nil, dberr.New(dberr.NotSequenced, "key store is not sequenced")
	}
	tbl := tableName(ks.name)
	where := []string{"sequence > ?"}
	args := []any{since}
	if ks.caps.SoftDeletes && !opts.IncludeDeleted {
		where = append(where, "deleted = 0")
	}
	return ks.runEnumeration(tbl, "sequence", where, args, opts)
}

func (ks *KeyStore) runEnumeration(tbl, orderCol string, where []string, args []any, opts EnumerateOptions) (*Enumerator, *dberr.Error) {
	if derr := ks.ensureStandardIndexes(); derr != nil {
		return nil, derr
	}
	q := fmt.Sprintf(`SELECT key, meta, body, sequence, deleted FROM %s`, tbl)
	if len(where) > 0 {
		q += " WHERE " + joinAnd(where)
	}
	order := "ASC"
	if opts.Descending {
		order = "DESC"
	}
	q += fmt.Sprintf(" ORDER BY %s %s", orderCol, order)
	if opts.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", opts.Limit)
		if opts.Skip > 0 {
			q += fmt.Sprintf(" OFFSET %d", opts.Skip)
		}
	} else if opts.Skip > 0 {
		q += fmt.Sprintf(" LIMIT -1 OFFSET %d", opts.Skip)
	}

	rows, err := ks.db.sql.Query(q, args...)
	if err != nil {
		return nil, dberr.Wrap(dberr.Unexpected, err, "running enumeration query")
	}
	return &Enumerator{rows: rows}, nil
}

func joinAnd(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += " AND " + c
	}
	return out
}

// GetMulti looks up each docID in order, preserving that order in the
// result. Each Record reports Exists=false if the key wasn't found.
func (ks *KeyStore) GetMulti(keys [][]byte, opts types.ContentOptions) ([]types.Record, *dberr.Error) {
	results := make([]types.Record, len(keys))
	for i, k := range keys {
		rec, derr := ks.Get(k, opts)
		if derr != nil {
			return nil, derr
		}
		rec.Key = k
		results[i] = rec
	}
	return results, nil
}
