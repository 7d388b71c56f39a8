package store

import (
	"database/sql"

	"github.com/cuemby/veyradb/pkg/dberr"
)

// Txn wraps a *sql.Tx. The database facade owns transaction nesting
// (§4.4's reentrant transaction discipline); this package only executes
// statements against whichever *sql.Tx or *sql.DB it's handed.
type Txn struct {
	tx *sql.Tx
}

// BeginTxn starts a new SQL transaction.
func (db *DB) BeginTxn() (*Txn, *dberr.Error) {
	tx, err := db.sql.Begin()
	if err != nil {
		return nil, dberr.Wrap(dberr.Unexpected, err, "beginning transaction")
	}
	return &Txn{tx: tx}, nil
}

// Commit commits the transaction.
func (t *Txn) Commit() *dberr.Error {
	if err := t.tx.Commit(); err != nil {
		return dberr.Wrap(dberr.Unexpected, err, "committing transaction")
	}
	return nil
}

// Rollback aborts the transaction.
func (t *Txn) Rollback() *dberr.Error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return dberr.Wrap(dberr.Unexpected, err, "rolling back transaction")
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting KeyStore
// methods run either inside an explicit transaction or directly against
// the pool for non-transactional reads.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func (t *Txn) querier() querier {
	return t.tx
}
