package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/veyradb/pkg/dberr"
)

// IndexKind selects what kind of index createIndex materializes.
type IndexKind int

const (
	ValueIndex IndexKind = iota
	FullTextIndex
)

// FullTextOptions configure a FullTextIndex.
type FullTextOptions struct {
	Language string // not used: the tokenizer is unicode61, or "porter unicode61" when Stemming is set
	Stemming bool
}

// keyIndexName and seqIndexName are the lazily-created indexes every
// sequenced/keyed store gets on first enumeration; value and full-text
// indexes are additional, explicitly requested ones.
func keyIndexName(store string) string { return fmt.Sprintf("kv_%s_keys", store) }
func seqIndexName(store string) string { return fmt.Sprintf("kv_%s_seqs", store) }

// ensureStandardIndexes lazily creates the key and sequence indexes the
// first time a range enumeration needs them.
func (ks *KeyStore) ensureStandardIndexes() *dberr.Error {
	tbl := tableName(ks.name)
	if _, err := ks.db.sql.Exec(fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON %s(key)`, keyIndexName(ks.name), tbl)); err != nil {
		return dberr.Wrap(dberr.Unexpected, err, "creating key index")
	}
	if ks.caps.Sequences {
		if _, err := ks.db.sql.Exec(fmt.Sprintf(
			`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s(sequence)`, seqIndexName(ks.name), tbl)); err != nil {
			return dberr.Wrap(dberr.Unexpected, err, "creating sequence index")
		}
	}
	return nil
}

// CreateIndex materializes a secondary index. For ValueIndex this is a
// best-effort expression index over the raw body column (true property
// indexing would require pushing the body decoder into SQL, which this
// engine deliberately doesn't do — see query.go); for FullTextIndex it
// creates an FTS5 virtual table filled from the store's live rows at
// creation time. Later writes to the store are not added to that table.
func (ks *KeyStore) CreateIndex(name string, kind IndexKind, opts FullTextOptions) *dberr.Error {
	if !validStoreName.MatchString(name) {
		return dberr.Newf(dberr.InvalidParameter, "invalid index name %q", name)
	}
	tbl := tableName(ks.name)

	switch kind {
	case ValueIndex:
		idx := fmt.Sprintf("idx_%s_%s", ks.name, name)
		if _, err := ks.db.sql.Exec(fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s ON %s(body)`, idx, tbl)); err != nil {
			return dberr.Wrap(dberr.Unexpected, err, "creating value index")
		}
		return nil

	case FullTextIndex:
		ftsTable := fmt.Sprintf("fts_%s_%s", ks.name, name)
		tokenizer := "unicode61"
		if opts.Stemming {
			tokenizer = "porter unicode61"
		}
		schema := fmt.Sprintf(
			`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts5(key UNINDEXED, body, tokenize="%s")`,
			ftsTable, tokenizer)
		if _, err := ks.db.sql.Exec(schema); err != nil {
			return dberr.Wrap(dberr.Unexpected, err, "creating full-text index")
		}
		if _, err := ks.db.sql.Exec(fmt.Sprintf(
			`INSERT INTO %s (key, body) SELECT key, body FROM %s WHERE deleted=0`, ftsTable, tbl)); err != nil {
			return dberr.Wrap(dberr.Unexpected, err, "populating full-text index")
		}
		return nil

	default:
		return dberr.New(dberr.InvalidParameter, "unknown index kind")
	}
}

// TermOffset is one matched term's position within the indexed body
// column, as reported by FTS5's offsets(): which term (by index in the
// query) matched, and its byte offset and length within body, for
// building a highlighted snippet around the hit.
type TermOffset struct {
	Term     int
	Position int
	Size     int
}

// MatchResult is one hit from a full-text search: the matching key, a
// relevance rank (lower is better, matching SQLite FTS5's bm25()), and the
// byte offsets of matched terms for snippet extraction.
type MatchResult struct {
	Key     []byte
	Rank    float64
	Offsets []TermOffset
}

// Match runs a MATCH query against a previously created full-text index,
// most relevant first.
func (ks *KeyStore) Match(indexName, query string, limit int64) ([]MatchResult, *dberr.Error) {
	ftsTable := fmt.Sprintf("fts_%s_%s", ks.name, indexName)
	q := fmt.Sprintf(
		`SELECT key, bm25(%s) AS rank, offsets(%s) AS offs FROM %s WHERE %s MATCH ? ORDER BY rank LIMIT ?`,
		ftsTable, ftsTable, ftsTable, ftsTable)
	if limit <= 0 {
		limit = -1
	}
	rows, err := ks.db.sql.Query(q, query, limit)
	if err != nil {
		return nil, dberr.Wrap(dberr.Unexpected, err, "running full-text query")
	}
	defer rows.Close()

	var results []MatchResult
	for rows.Next() {
		var key []byte
		var rank float64
		var offs string
		if err := rows.Scan(&key, &rank, &offs); err != nil {
			return nil, dberr.Wrap(dberr.Unexpected, err, "scanning match result")
		}
		results = append(results, MatchResult{Key: key, Rank: rank, Offsets: parseOffsets(offs)})
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(dberr.Unexpected, err, "iterating match results")
	}
	return results, nil
}

// parseOffsets decodes FTS5's offsets() output: groups of four
// whitespace-separated integers (column, term, byte offset, byte size)
// per match. The body column is the only one indexed, so the column
// number is dropped.
func parseOffsets(s string) []TermOffset {
	fields := strings.Fields(s)
	offsets := make([]TermOffset, 0, len(fields)/4)
	for i := 0; i+3 < len(fields); i += 4 {
		term, err1 := strconv.Atoi(fields[i+1])
		pos, err2 := strconv.Atoi(fields[i+2])
		size, err3 := strconv.Atoi(fields[i+3])
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		offsets = append(offsets, TermOffset{Term: term, Position: pos, Size: size})
	}
	return offsets
}
