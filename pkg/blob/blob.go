package blob

import (
	"io"
	"os"

	"github.com/cuemby/veyradb/pkg/dberr"
	"github.com/cuemby/veyradb/pkg/types"
)

// Blob is a handle to a (possibly nonexistent) blob in a Store.
type Blob struct {
	store *Store
	key   types.BlobKey
	path  string
}

// Key returns the blob's content-address.
func (b *Blob) Key() types.BlobKey { return b.key }

// Path returns the blob's file path.
func (b *Blob) Path() string { return b.path }

// Exists stats the backing file.
func (b *Blob) Exists() bool {
	_, err := os.Stat(b.path)
	return err == nil
}

// ContentLength returns the on-disk file size. For an encrypted store
// this overestimates the plaintext size by the nonce and authentication
// tag overhead — callers must treat it as an upper bound, per §4.3.
func (b *Blob) ContentLength() (int64, *dberr.Error) {
	info, err := os.Stat(b.path)
	if err != nil {
		return 0, dberr.Wrap(dberr.NotFound, err, "statting blob")
	}
	return info.Size(), nil
}

// Read opens a stream over the blob's plaintext contents, transparently
// decrypting if the store is encrypted.
func (b *Blob) Read() (io.ReadCloser, *dberr.Error) {
	f, err := os.Open(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dberr.Wrap(dberr.NotFound, err, "blob not found")
		}
		return nil, dberr.Wrap(dberr.Unexpected, err, "opening blob")
	}
	if !b.store.IsEncrypted() {
		return f, nil
	}
	r, derr := newDecryptReader(f, b.store.options.EncryptionKey)
	if derr != nil {
		f.Close()
		return nil, derr
	}
	return r, nil
}

// Contents reads the entire blob into memory.
func (b *Blob) Contents() ([]byte, *dberr.Error) {
	r, derr := b.Read()
	if derr != nil {
		return nil, derr
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, dberr.Wrap(dberr.Unexpected, err, "reading blob")
	}
	return data, nil
}

// Delete removes the blob's backing file.
func (b *Blob) Delete() error {
	return os.Remove(b.path)
}
