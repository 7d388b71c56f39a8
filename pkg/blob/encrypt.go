package blob

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/cuemby/veyradb/pkg/dberr"
	"github.com/cuemby/veyradb/pkg/varint"
)

// kdfIterations is the PBKDF2 work factor for passphrase-derived keys.
const kdfIterations = 100_000

// DeriveKey turns an operator-supplied passphrase and a stored salt into
// the 32-byte key newGCM requires, via PBKDF2-HMAC-SHA256, so a database
// can be configured with a memorable passphrase instead of managing raw
// key bytes.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, kdfIterations, 32, sha256.New)
}

// Blob-at-rest encryption reuses the teacher's AES-256-GCM scheme for
// secrets (nonce-prepended ciphertext, 32-byte key) rather than inventing
// a new one; it's adapted here to whole-file framing suited to streaming
// blob writes instead of a single in-memory secret value.

// encryptWriter seals each Write() call as its own GCM-sealed chunk,
// length-prefixed so the reader can find chunk boundaries again. This
// keeps the writer streaming (no need to buffer the whole blob to pick a
// single nonce) at the cost of per-chunk nonce/tag overhead, which is
// exactly the overestimate ContentLength() documents.
type encryptWriter struct {
	w   io.Writer
	gcm cipher.AEAD
}

func newEncryptWriter(w io.Writer, key []byte) (*encryptWriter, *dberr.Error) {
	gcm, derr := newGCM(key)
	if derr != nil {
		return nil, derr
	}
	return &encryptWriter{w: w, gcm: gcm}, nil
}

func (e *encryptWriter) Write(p []byte) (int, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return 0, err
	}
	sealed := e.gcm.Seal(nonce, nonce, p, nil)

	lenBuf := varint.PutUint32(nil, uint32(len(sealed)))
	if _, err := e.w.Write(lenBuf); err != nil {
		return 0, err
	}
	if _, err := e.w.Write(sealed); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (e *encryptWriter) Close() error { return nil }

type decryptReader struct {
	r    io.ReadCloser
	gcm  cipher.AEAD
	pend []byte // plaintext not yet consumed from the current chunk
}

var _ io.ReadCloser = (*decryptReader)(nil)

func newDecryptReader(r io.ReadCloser, key []byte) (*decryptReader, *dberr.Error) {
	gcm, derr := newGCM(key)
	if derr != nil {
		return nil, derr
	}
	return &decryptReader{r: r, gcm: gcm}, nil
}

func (d *decryptReader) Read(p []byte) (int, error) {
	for len(d.pend) == 0 {
		var lenBuf [4]byte
		if _, err := io.ReadFull(d.r, lenBuf[:]); err != nil {
			if err == io.ErrUnexpectedEOF {
				err = io.EOF
			}
			return 0, err
		}
		chunkLen := varint.Uint32(lenBuf[:])
		chunk := make([]byte, chunkLen)
		if _, err := io.ReadFull(d.r, chunk); err != nil {
			return 0, err
		}

		nonceSize := d.gcm.NonceSize()
		if len(chunk) < nonceSize {
			return 0, dberr.New(dberr.CorruptIndexData, "encrypted blob chunk shorter than nonce")
		}
		nonce, ciphertext := chunk[:nonceSize], chunk[nonceSize:]
		plain, err := d.gcm.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return 0, dberr.Wrap(dberr.CorruptIndexData, err, "decrypting blob chunk")
		}
		d.pend = plain
	}

	n := copy(p, d.pend)
	d.pend = d.pend[n:]
	return n, nil
}

func (d *decryptReader) Close() error { return d.r.Close() }

func newGCM(key []byte) (cipher.AEAD, *dberr.Error) {
	if len(key) != 32 {
		return nil, dberr.New(dberr.InvalidParameter, "blob encryption key must be 32 bytes for AES-256")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, dberr.Wrap(dberr.Unexpected, err, "creating AES cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, dberr.Wrap(dberr.Unexpected, err, "creating GCM mode")
	}
	return gcm, nil
}
