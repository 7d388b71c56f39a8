package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateValueIndex(t *testing.T) {
	ks := openTestStore(t, fullCaps())
	ks.Set(nil, []byte("a"), nil, []byte("hello"))

	require.NoError(t, ks.CreateIndex("byBody", ValueIndex, FullTextOptions{}), "CreateIndex()")
	// Creating it again should be idempotent.
	require.NoError(t, ks.CreateIndex("byBody", ValueIndex, FullTextOptions{}), "CreateIndex() second call")
}

func TestFullTextIndexAndMatch(t *testing.T) {
	ks := openTestStore(t, fullCaps())
	ks.Set(nil, []byte("doc1"), nil, []byte("the quick brown fox jumps over the lazy dog"))
	ks.Set(nil, []byte("doc2"), nil, []byte("a completely unrelated sentence about cars"))
	ks.Set(nil, []byte("doc3"), nil, []byte("another fox sighting in the city"))

	require.NoError(t, ks.CreateIndex("body", FullTextIndex, FullTextOptions{Stemming: true}), "CreateIndex()")

	results, derr := ks.Match("body", "fox", 10)
	require.NoError(t, derr, "Match()")
	require.Len(t, results, 2)

	seen := map[string]bool{}
	for _, r := range results {
		seen[string(r.Key)] = true
		assert.NotEmpty(t, r.Offsets, "expected term offsets for a matched row")
	}
	assert.True(t, seen["doc1"] && seen["doc3"], "Match() results = %v, want doc1 and doc3", results)
}

func TestFullTextIndexExcludesDeletedRows(t *testing.T) {
	ks := openTestStore(t, fullCaps())
	ks.Set(nil, []byte("a"), nil, []byte("searchable content"))
	ks.Set(nil, []byte("b"), nil, []byte("searchable content too"))
	ks.Del(nil, []byte("b"))

	require.NoError(t, ks.CreateIndex("body", FullTextIndex, FullTextOptions{}), "CreateIndex()")

	results, derr := ks.Match("body", "searchable", 10)
	require.NoError(t, derr)
	require.Len(t, results, 1)
	assert.Equal(t, "a", string(results[0].Key))
}

func TestCreateIndexInvalidName(t *testing.T) {
	ks := openTestStore(t, fullCaps())
	assert.Error(t, ks.CreateIndex("bad name!", ValueIndex, FullTextOptions{}),
		"CreateIndex() with an invalid name should fail")
}

func TestEnsureStandardIndexesIdempotent(t *testing.T) {
	ks := openTestStore(t, fullCaps())
	require.NoError(t, ks.ensureStandardIndexes(), "ensureStandardIndexes()")
	require.NoError(t, ks.ensureStandardIndexes(), "ensureStandardIndexes() second call")
}

func TestParseOffsetsDecodesFTS5Output(t *testing.T) {
	got := parseOffsets("0 0 10 3 0 1 25 3")
	want := []TermOffset{{Term: 0, Position: 10, Size: 3}, {Term: 1, Position: 25, Size: 3}}
	assert.Equal(t, want, got)
}

func TestParseOffsetsEmptyInput(t *testing.T) {
	assert.Empty(t, parseOffsets(""))
}
