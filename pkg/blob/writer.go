package blob

import (
	"crypto/sha1"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/cuemby/veyradb/pkg/dberr"
	"github.com/cuemby/veyradb/pkg/types"
)

// Writer implements the store's write protocol: open a temp file, feed it
// bytes (any number of times), derive the key from the accumulated
// digest, then install the file under its content address.
type Writer struct {
	store       *Store
	tmpPath     string
	file        *os.File
	out         io.Writer // file, or an encrypting wrapper around it
	digest      hash.Hash
	key         types.BlobKey
	keyComputed bool
	installed   bool
}

// NewWriter opens a new temp file in the store's directory and begins a
// streaming write.
func (s *Store) NewWriter() (*Writer, *dberr.Error) {
	if !s.options.Writeable {
		return nil, dberr.New(dberr.NotWriteable, "blob store is read-only")
	}

	tmpPath := filepath.Join(s.dir, randomTmpName())
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, dberr.Wrap(dberr.CantOpenFile, err, "creating blob temp file")
	}

	w := &Writer{store: s, tmpPath: tmpPath, file: f, digest: sha1.New(), out: f}
	if s.IsEncrypted() {
		enc, derr := newEncryptWriter(f, s.options.EncryptionKey)
		if derr != nil {
			f.Close()
			os.Remove(tmpPath)
			return nil, derr
		}
		w.out = enc
	}
	return w, nil
}

// Write appends bytes to the temp file and feeds the running digest. It
// may be called any number of times before ComputeKey/Install.
func (w *Writer) Write(data []byte) *dberr.Error {
	if w.keyComputed {
		return dberr.New(dberr.InvalidParameter, "blob writer: write after ComputeKey")
	}
	w.digest.Write(data)
	if _, err := w.out.Write(data); err != nil {
		return dberr.Wrap(dberr.Unexpected, err, "writing blob temp file")
	}
	return nil
}

// ComputeKey finalizes the digest and returns the blob's content key.
// No further writes are accepted after this call.
func (w *Writer) ComputeKey() types.BlobKey {
	if !w.keyComputed {
		copy(w.key[:], w.digest.Sum(nil))
		w.keyComputed = true
	}
	return w.key
}

// Install finalizes the write (computing the key if not already done),
// closes the temp file, and atomically renames it into place under its
// content-address name. If a blob with that key already exists, the temp
// file is discarded instead (content-addressed dedup). Idempotent.
func (w *Writer) Install() (*Blob, *dberr.Error) {
	key := w.ComputeKey()
	finalPath := w.store.pathFor(key)

	if w.installed {
		return &Blob{store: w.store, key: key, path: finalPath}, nil
	}

	if closer, ok := w.out.(io.Closer); ok && w.out != io.Writer(w.file) {
		if err := closer.Close(); err != nil {
			return nil, dberr.Wrap(dberr.Unexpected, err, "finalizing encrypted blob stream")
		}
	}
	if err := w.file.Close(); err != nil {
		return nil, dberr.Wrap(dberr.Unexpected, err, "closing blob temp file")
	}

	if _, err := os.Stat(finalPath); err == nil {
		// Another writer already produced this content; discard ours.
		os.Remove(w.tmpPath)
	} else if err := os.Rename(w.tmpPath, finalPath); err != nil {
		return nil, dberr.Wrap(dberr.Unexpected, err, "installing blob")
	}
	w.installed = true

	return &Blob{store: w.store, key: key, path: finalPath}, nil
}
