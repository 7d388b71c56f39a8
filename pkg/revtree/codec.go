package revtree

import (
	"github.com/cuemby/veyradb/pkg/dberr"
	"github.com/cuemby/veyradb/pkg/varint"
)

// record on disk:
//
//	size:u32 be        -- total bytes of this record incl. the size field
//	flags:u8
//	revIDLen:u8
//	parentIndex:u16 be -- 0xFFFF = NONE
//	sequence:uvarint
//	revID: revIDLen bytes
//	body: remaining bytes of record (present iff flags & hasData)
//
// terminated by a trailing size == 0.
const hasData Flags = 0x80 // derived, never stored in a Rev.Flags value the caller sees

const (
	sizeFieldLen  = 4
	flagsFieldLen = 1
	revIDLenLen   = 1
	parentLen     = 2
)

// headerLen is the number of fixed bytes preceding the varint sequence
// field (size, flags, revIDLen, parentIndex).
const headerLen = sizeFieldLen + flagsFieldLen + revIDLenLen + parentLen

// EncodeTree serializes revs in input order, terminated by a trailing
// zero-size marker. A rev's body is written iff it is non-empty.
func EncodeTree(revs []Rev) []byte {
	out := make([]byte, 0, 256)
	for _, r := range revs {
		recLen := headerLen + len(r.RevID) + varint.SizeUvarint(r.Sequence) + len(r.Body)

		out = varint.PutUint32(out, uint32(recLen))

		flags := r.Flags & persistentFlags
		if len(r.Body) > 0 {
			flags |= hasData
		}
		out = append(out, byte(flags))
		out = append(out, byte(len(r.RevID)))
		out = varint.PutUint16(out, r.ParentIndex)
		out = varint.PutUvarint(out, r.Sequence)
		out = append(out, r.RevID...)
		out = append(out, r.Body...)
	}
	out = varint.PutUint32(out, 0) // terminator
	return out
}

// DecodeTree parses a tree blob produced by EncodeTree. Any rev whose
// stored sequence is 0 is assigned curSeq (the sequence of the write that
// is saving this tree). Returns CorruptRevisionData if the record walk
// doesn't consume exactly len(blob)-4 bytes, or if there are more than
// 65535 revs.
func DecodeTree(blob []byte, curSeq uint64) ([]Rev, *dberr.Error) {
	var revs []Rev
	pos := 0
	for {
		if pos+sizeFieldLen > len(blob) {
			return nil, dberr.New(dberr.CorruptRevisionData, "truncated tree blob: missing record size")
		}
		recLen := varint.Uint32(blob[pos:])
		if recLen == 0 {
			break
		}
		if pos+int(recLen) > len(blob) {
			return nil, dberr.New(dberr.CorruptRevisionData, "truncated tree blob: record overruns buffer")
		}
		rec := blob[pos : pos+int(recLen)]
		rev, derr := decodeRecord(rec, curSeq)
		if derr != nil {
			return nil, derr
		}
		revs = append(revs, rev)
		pos += int(recLen)

		if len(revs) > 65535 {
			return nil, dberr.New(dberr.CorruptRevisionData, "tree has more than 65535 revisions")
		}
	}
	if pos != len(blob)-sizeFieldLen {
		return nil, dberr.New(dberr.CorruptRevisionData, "tree blob has trailing garbage after terminator")
	}
	return revs, nil
}

func decodeRecord(rec []byte, curSeq uint64) (Rev, *dberr.Error) {
	if len(rec) < headerLen {
		return Rev{}, dberr.New(dberr.CorruptRevisionData, "record shorter than fixed header")
	}
	flags := Flags(rec[sizeFieldLen])
	revIDLen := int(rec[sizeFieldLen+flagsFieldLen])
	parentIndex := varint.Uint16(rec[sizeFieldLen+flagsFieldLen+revIDLenLen:])

	rest := rec[headerLen:]
	seq, n := varint.Uvarint(rest)
	if n <= 0 {
		return Rev{}, dberr.New(dberr.CorruptRevisionData, "malformed sequence varint")
	}
	rest = rest[n:]

	if revIDLen > len(rest) {
		return Rev{}, dberr.New(dberr.CorruptRevisionData, "revID overruns record")
	}
	revID := append([]byte(nil), rest[:revIDLen]...)
	rest = rest[revIDLen:]

	var body []byte
	if flags&hasData != 0 {
		body = append([]byte(nil), rest...)
	}

	if seq == 0 {
		seq = curSeq
	}

	return Rev{
		RevID:       revID,
		ParentIndex: parentIndex,
		Sequence:    seq,
		Flags:       flags & persistentFlags,
		Body:        body,
	}, nil
}

// CurrentRevBody returns the first record's body without decoding the
// whole tree; the first record in the blob is always the current
// revision (the caller is responsible for maintaining that invariant at
// encode time, matching the C++ source's assumption).
func CurrentRevBody(blob []byte) ([]byte, *dberr.Error) {
	if len(blob) < sizeFieldLen {
		return nil, dberr.New(dberr.CorruptRevisionData, "tree blob shorter than a size field")
	}
	recLen := varint.Uint32(blob)
	if recLen == 0 {
		return nil, nil // empty tree
	}
	if int(recLen) > len(blob) {
		return nil, dberr.New(dberr.CorruptRevisionData, "first record overruns buffer")
	}
	rev, derr := decodeRecord(blob[:recLen], 0)
	if derr != nil {
		return nil, derr
	}
	return rev.Body, nil
}
