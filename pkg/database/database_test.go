package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/veyradb/pkg/config"
	"github.com/cuemby/veyradb/pkg/revtree"
)

// encodeSingleRevTree builds a one-revision tree blob, the simplest input
// DocumentFactory.NewDocument accepts.
func encodeSingleRevTree(t *testing.T, revID, body []byte, seq uint64, deleted bool) []byte {
	t.Helper()
	flags := revtree.Leaf
	if deleted {
		flags |= revtree.Deleted
	}
	return revtree.EncodeTree([]revtree.Rev{{
		RevID:       revID,
		ParentIndex: revtree.NoParent,
		Sequence:    seq,
		Flags:       flags,
		Body:        body,
	}})
}

func openTestDatabase(t *testing.T) *Database {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "bundle")
	cfg := config.Default()
	db, derr := Open(dir, cfg)
	require.NoError(t, derr, "Open()")
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenCreatesBundleDirectory(t *testing.T) {
	db := openTestDatabase(t)
	assert.NotEmpty(t, db.Path(), "expected non-empty bundle path")
}

func TestOpenNonexistentWithoutCreateFails(t *testing.T) {
	cfg := config.Default()
	cfg.Create = false
	dir := filepath.Join(t.TempDir(), "missing")
	_, derr := Open(dir, cfg)
	assert.Error(t, derr, "expected error opening nonexistent bundle with Create=false")
}

func TestCloseRefusesWithOpenTransaction(t *testing.T) {
	db := openTestDatabase(t)
	require.NoError(t, db.BeginTransaction(), "BeginTransaction()")
	assert.Error(t, db.Close(), "Close() should refuse while a transaction is open")
	require.NoError(t, db.EndTransaction(false), "EndTransaction()")
}

func TestPutAndGetDocumentRoundTrips(t *testing.T) {
	db := openTestDatabase(t)

	meta := encodeSingleRevTree(t, []byte("1-abcd"), []byte(`{"hello":"world"}`), 0, false)
	_, derr := db.PutDocument("doc1", meta, []byte(`{"hello":"world"}`), false)
	require.NoError(t, derr, "PutDocument()")

	doc, derr := db.GetDocument("doc1")
	require.NoError(t, derr, "GetDocument()")
	assert.Equal(t, "doc1", doc.DocID)
	assert.Equal(t, `{"hello":"world"}`, string(doc.Body))
	assert.False(t, doc.Conflict, "single-revision document should not be conflicted")
}

func TestGetDocumentNotFound(t *testing.T) {
	db := openTestDatabase(t)
	_, derr := db.GetDocument("missing")
	assert.Error(t, derr, "expected NotFound error")
}

func TestTransactionNestingOnlyCommitsOnOutermostEnd(t *testing.T) {
	db := openTestDatabase(t)

	require.NoError(t, db.BeginTransaction())
	require.NoError(t, db.BeginTransaction())
	require.True(t, db.InTransaction())

	meta := encodeSingleRevTree(t, []byte("1-abcd"), []byte("body"), 0, false)
	_, derr := db.PutDocument("doc1", meta, []byte("body"), false)
	require.NoError(t, derr)

	require.NoError(t, db.EndTransaction(true), "inner EndTransaction()")
	require.True(t, db.InTransaction(), "expected still in transaction after inner EndTransaction")

	require.NoError(t, db.EndTransaction(true), "outer EndTransaction()")
	assert.False(t, db.InTransaction(), "expected transaction closed after outer EndTransaction")

	_, derr = db.GetDocument("doc1")
	assert.NoError(t, derr, "document should be visible after commit")
}

func TestEndTransactionWithoutBeginFails(t *testing.T) {
	db := openTestDatabase(t)
	assert.Error(t, db.EndTransaction(true), "expected error ending a transaction that was never begun")
}

func TestPurgeDocumentRemovesIt(t *testing.T) {
	db := openTestDatabase(t)
	meta := encodeSingleRevTree(t, []byte("1-abcd"), []byte("body"), 0, false)
	_, derr := db.PutDocument("doc1", meta, []byte("body"), false)
	require.NoError(t, derr)

	existed, derr := db.PurgeDocument("doc1")
	require.NoError(t, derr, "PurgeDocument()")
	assert.True(t, existed, "PurgeDocument() should report the document existed")

	_, derr = db.GetDocument("doc1")
	assert.Error(t, derr, "purged document should no longer be retrievable")
}

func TestRawDocumentRoundTrip(t *testing.T) {
	db := openTestDatabase(t)
	require.NoError(t, db.PutRawDocument("checkpoints", "remote1", []byte("seq:42")), "PutRawDocument()")
	doc, derr := db.GetRawDocument("checkpoints", "remote1")
	require.NoError(t, derr, "GetRawDocument()")
	assert.Equal(t, "seq:42", string(doc.Body))
}

func TestRawDocumentMissingReturnsNilBody(t *testing.T) {
	db := openTestDatabase(t)
	doc, derr := db.GetRawDocument("checkpoints", "missing")
	require.NoError(t, derr)
	assert.Nil(t, doc.Body, "expected nil body for missing raw document")
}

func TestGetUUIDIsStableAfterFirstGeneration(t *testing.T) {
	db := openTestDatabase(t)

	id1, derr := db.GetUUID(true)
	require.NoError(t, derr, "GetUUID()")
	require.Len(t, id1, 32)

	id2, derr := db.GetUUID(true)
	require.NoError(t, derr)
	assert.Equal(t, string(id1), string(id2), "GetUUID() should be stable across calls")

	privateID, derr := db.GetUUID(false)
	require.NoError(t, derr)
	assert.NotEqual(t, string(id1), string(privateID), "public and private UUIDs should differ")
}

func TestCompactRunsWithoutError(t *testing.T) {
	db := openTestDatabase(t)
	meta := encodeSingleRevTree(t, []byte("1-abcd"), []byte("body"), 0, false)
	_, derr := db.PutDocument("doc1", meta, []byte("body"), false)
	require.NoError(t, derr)
	_, derr = db.PurgeDocument("doc1")
	require.NoError(t, derr)
	assert.NoError(t, db.Compact(), "Compact()")
}

func TestDeleteRemovesBundle(t *testing.T) {
	db := openTestDatabase(t)
	dir := db.Path()
	require.NoError(t, db.Delete(), "Delete()")
	_, err := os.Stat(dir)
	assert.Error(t, err, "bundle directory should be removed after Delete()")
}

func TestStatsSourceReportsCounts(t *testing.T) {
	db := openTestDatabase(t)
	meta := encodeSingleRevTree(t, []byte("1-abcd"), []byte("body"), 0, false)
	_, derr := db.PutDocument("doc1", meta, []byte("body"), false)
	require.NoError(t, derr)

	stats := NewStats(db)
	assert.Equal(t, defaultStoreName, stats.StoreName())

	n, err := stats.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	_, err = stats.LastSequence()
	assert.NoError(t, err)
	_, err = stats.BlobCount()
	assert.NoError(t, err)
	_, err = stats.BlobBytes()
	assert.NoError(t, err)
}
