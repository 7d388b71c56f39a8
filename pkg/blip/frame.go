package blip

import (
	"bytes"
	"compress/flate"
	"io"
	"sort"

	"github.com/cuemby/veyradb/pkg/dberr"
	"github.com/cuemby/veyradb/pkg/varint"
)

// frameMaxBody caps how much of a message's body a single frame carries;
// larger bodies are split across frames with MoreComing set on every
// frame but the last.
const frameMaxBody = 16 * 1024

// frame is one wire unit: messageNo, flags, and a slice of this
// message's body (properties are only present on the first frame).
type frame struct {
	messageNo uint64
	flags     Flags
	payload   []byte // properties-blob (first frame only) + body chunk
}

// writeFrame serializes one frame as: messageNo:uvarint, flags:u8,
// length:uvarint, payload. There is no magic number or checksum — the
// transport (a persistent, reliable stream) is trusted, matching the
// teacher's own assumption that framing rides on a connection TCP/TLS
// already protects.
func writeFrame(w io.Writer, f frame) error {
	buf := varint.PutUvarint(nil, f.messageNo)
	buf = append(buf, byte(f.flags))
	buf = varint.PutUvarint(buf, uint64(len(f.payload)))
	buf = append(buf, f.payload...)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) (frame, error) {
	messageNo, err := readUvarint(r)
	if err != nil {
		return frame{}, err
	}
	var flagByte [1]byte
	if _, err := io.ReadFull(r, flagByte[:]); err != nil {
		return frame{}, err
	}
	length, err := readUvarint(r)
	if err != nil {
		return frame{}, err
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return frame{}, err
	}
	return frame{messageNo: messageNo, flags: Flags(flagByte[0]), payload: payload}, nil
}

// readUvarint reads a base-128 varint one byte at a time from an
// io.Reader; pkg/varint's Uvarint only parses from an already-buffered
// slice, so the wire reader accumulates bytes itself.
func readUvarint(r io.Reader) (uint64, error) {
	var buf []byte
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		buf = append(buf, b[0])
		if b[0] < 0x80 {
			break
		}
	}
	v, n := varint.Uvarint(buf)
	if n <= 0 {
		return 0, dberr.New(dberr.Unexpected, "malformed varint on wire")
	}
	return v, nil
}

// encodeProperties serializes a name/value map as alternating
// NUL-terminated strings, sorted by key for a deterministic encoding
// (matters for reproducible wire captures in tests).
func encodeProperties(props map[string]string) []byte {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteByte(0)
		buf.WriteString(props[k])
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func decodeProperties(data []byte) (map[string]string, error) {
	props := make(map[string]string)
	for len(data) > 0 {
		keyEnd := bytes.IndexByte(data, 0)
		if keyEnd < 0 {
			return nil, dberr.New(dberr.Unexpected, "truncated property key")
		}
		key := string(data[:keyEnd])
		data = data[keyEnd+1:]

		valEnd := bytes.IndexByte(data, 0)
		if valEnd < 0 {
			return nil, dberr.New(dberr.Unexpected, "truncated property value")
		}
		props[key] = string(data[:valEnd])
		data = data[valEnd+1:]
	}
	return props, nil
}

// compressBody runs DEFLATE over body; used when Compressed is set on
// an outgoing message. There is no third-party compression library
// anywhere in the pack's full example repos to ground this on, so it
// uses the standard library's compress/flate rather than inventing a
// dependency.
func compressBody(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressBody(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	return io.ReadAll(r)
}
