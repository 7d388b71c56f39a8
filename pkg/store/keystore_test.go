package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/veyradb/pkg/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite3")
	db, derr := Open(path, OpenOptions{Create: true, Writeable: true})
	require.NoError(t, derr, "Open()")
	t.Cleanup(func() { db.Close() })
	return db
}

func openTestStore(t *testing.T, caps types.Capabilities) *KeyStore {
	t.Helper()
	db := openTestDB(t)
	ks, derr := OpenKeyStore(db, "docs", caps)
	require.NoError(t, derr, "OpenKeyStore()")
	return ks
}

func fullCaps() types.Capabilities {
	return types.Capabilities{Sequences: true, SoftDeletes: true}
}

func TestSetThenGet(t *testing.T) {
	ks := openTestStore(t, fullCaps())

	seq, derr := ks.Set(nil, []byte("doc1"), []byte("meta1"), []byte("body1"))
	require.NoError(t, derr, "Set()")
	assert.Equal(t, uint64(1), seq, "Set() sequence")

	rec, derr := ks.Get([]byte("doc1"), types.ContentDefault)
	require.NoError(t, derr, "Get()")
	require.True(t, rec.Exists, "Get() record should exist")
	assert.Equal(t, "meta1", string(rec.Meta))
	assert.Equal(t, "body1", string(rec.Body))
	assert.Equal(t, uint64(1), rec.Sequence)
}

func TestGetNotFound(t *testing.T) {
	ks := openTestStore(t, fullCaps())
	rec, derr := ks.Get([]byte("missing"), types.ContentDefault)
	require.NoError(t, derr, "Get()")
	assert.False(t, rec.Exists, "Get() should report Exists=false for a missing key")
}

// P1: sequence monotonicity.
func TestSequenceMonotonicity(t *testing.T) {
	ks := openTestStore(t, fullCaps())

	var lastSeq uint64
	for i := 0; i < 5; i++ {
		seq, derr := ks.Set(nil, []byte{byte(i)}, []byte("m"), []byte("b"))
		require.NoError(t, derr, "Set()")
		require.Greater(t, seq, lastSeq, "sequence did not strictly increase")
		lastSeq = seq
	}

	got, derr := ks.LastSequence()
	require.NoError(t, derr, "LastSequence()")
	assert.Equal(t, lastSeq, got)
}

// P5: soft-delete advances sequence.
func TestSoftDeleteAdvancesSequence(t *testing.T) {
	ks := openTestStore(t, fullCaps())

	seq1, derr := ks.Set(nil, []byte("doc1"), []byte("m"), []byte("b"))
	require.NoError(t, derr)

	existed, derr := ks.Del(nil, []byte("doc1"))
	require.NoError(t, derr, "Del()")
	require.True(t, existed, "Del() should report the key existed")

	last, derr := ks.LastSequence()
	require.NoError(t, derr)
	assert.Equal(t, seq1+1, last, "LastSequence() after delete")

	rec, derr := ks.Get([]byte("doc1"), types.ContentDefault)
	require.NoError(t, derr)
	assert.True(t, rec.Exists && rec.Deleted, "soft-deleted record should still exist with Deleted=true: %+v", rec)
	assert.Nil(t, rec.Body, "soft-deleted record should have nil body")
	assert.Nil(t, rec.Meta, "soft-deleted record should have nil meta")
}

func TestHardDeleteRemovesRow(t *testing.T) {
	ks := openTestStore(t, types.Capabilities{Sequences: true, SoftDeletes: false})

	_, derr := ks.Set(nil, []byte("doc1"), []byte("m"), []byte("b"))
	require.NoError(t, derr)
	existed, derr := ks.Del(nil, []byte("doc1"))
	require.NoError(t, derr)
	require.True(t, existed, "Del() should report the key existed")

	rec, derr := ks.Get([]byte("doc1"), types.ContentDefault)
	require.NoError(t, derr)
	assert.False(t, rec.Exists, "hard-deleted record should no longer exist")
}

func TestRecordCountExcludesSoftDeleted(t *testing.T) {
	ks := openTestStore(t, fullCaps())

	ks.Set(nil, []byte("a"), []byte("m"), []byte("b"))
	ks.Set(nil, []byte("b"), []byte("m"), []byte("b"))
	ks.Del(nil, []byte("a"))

	count, derr := ks.RecordCount()
	require.NoError(t, derr)
	assert.Equal(t, uint64(1), count)
}

// P6: enumeration closure.
func TestEnumerateKeysRange(t *testing.T) {
	ks := openTestStore(t, fullCaps())
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		_, derr := ks.Set(nil, []byte(k), nil, []byte("v"))
		require.NoError(t, derr)
	}

	enum, derr := ks.EnumerateKeys([]byte("b"), []byte("d"), EnumerateOptions{})
	require.NoError(t, derr)
	defer enum.Close()

	var got []string
	for enum.Next() {
		got = append(got, string(enum.Record().Key))
	}
	assert.Equal(t, []string{"b", "c", "d"}, got)
}

func TestEnumerateKeysDescending(t *testing.T) {
	ks := openTestStore(t, fullCaps())
	for _, k := range []string{"a", "b", "c"} {
		ks.Set(nil, []byte(k), nil, []byte("v"))
	}

	enum, derr := ks.EnumerateKeys(nil, nil, EnumerateOptions{Descending: true})
	require.NoError(t, derr)
	defer enum.Close()

	var got []string
	for enum.Next() {
		got = append(got, string(enum.Record().Key))
	}
	assert.Equal(t, []string{"c", "b", "a"}, got)
}

func TestEnumerateSequences(t *testing.T) {
	ks := openTestStore(t, fullCaps())
	ks.Set(nil, []byte("a"), nil, []byte("1"))
	seqB, _ := ks.Set(nil, []byte("b"), nil, []byte("2"))
	ks.Set(nil, []byte("c"), nil, []byte("3"))

	enum, derr := ks.EnumerateSequences(seqB-1, EnumerateOptions{})
	require.NoError(t, derr)
	defer enum.Close()

	var keys []string
	for enum.Next() {
		keys = append(keys, string(enum.Record().Key))
	}
	assert.Equal(t, []string{"b", "c"}, keys, "EnumerateSequences(since=%d)", seqB-1)
}

func TestGetMultiPreservesOrderAndReportsMissing(t *testing.T) {
	ks := openTestStore(t, fullCaps())
	ks.Set(nil, []byte("a"), nil, []byte("1"))
	ks.Set(nil, []byte("c"), nil, []byte("3"))

	recs, derr := ks.GetMulti([][]byte{[]byte("a"), []byte("b"), []byte("c")}, types.ContentDefault)
	require.NoError(t, derr)
	require.Len(t, recs, 3)
	assert.True(t, recs[0].Exists)
	assert.False(t, recs[1].Exists)
	assert.True(t, recs[2].Exists)
}

func TestSeekUnimplemented(t *testing.T) {
	ks := openTestStore(t, fullCaps())
	enum, derr := ks.EnumerateKeys(nil, nil, EnumerateOptions{})
	require.NoError(t, derr)
	defer enum.Close()

	assert.Error(t, enum.Seek([]byte("x")), "Seek() should return an error")
}

func TestPurgeRemovesTombstoneEntirely(t *testing.T) {
	ks := openTestStore(t, fullCaps())
	ks.Set(nil, []byte("a"), []byte("m"), []byte("b"))
	ks.Del(nil, []byte("a"))

	existed, derr := ks.Purge(nil, []byte("a"))
	require.NoError(t, derr, "Purge()")
	require.True(t, existed, "Purge() should report the key existed")

	rec, derr := ks.Get([]byte("a"), types.ContentDefault)
	require.NoError(t, derr)
	assert.False(t, rec.Exists, "purged record should be gone, tombstone included")
}

func TestCompactReclaimsSoftDeletedRows(t *testing.T) {
	ks := openTestStore(t, fullCaps())
	ks.Set(nil, []byte("a"), []byte("m"), []byte("b"))
	ks.Del(nil, []byte("a"))

	purged, derr := ks.Compact()
	require.NoError(t, derr, "Compact()")
	assert.Equal(t, uint64(1), purged)

	rec, derr := ks.Get([]byte("a"), types.ContentDefault)
	require.NoError(t, derr)
	assert.False(t, rec.Exists, "record should be gone after compaction")
}
