package blob

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/cuemby/veyradb/pkg/types"
	"github.com/cuemby/veyradb/pkg/varint"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, derr := Open(t.TempDir(), Options{Create: true, Writeable: true})
	if derr != nil {
		t.Fatalf("Open() error: %v", derr)
	}
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	data := make([]byte, 1<<20) // 1 MB of random bytes
	if _, err := rand.Read(data); err != nil {
		t.Fatal(err)
	}

	blb, derr := s.Put(data)
	if derr != nil {
		t.Fatalf("Put() error: %v", derr)
	}

	got, derr := s.Get(blb.Key()).Contents()
	if derr != nil {
		t.Fatalf("Contents() error: %v", derr)
	}
	if !bytes.Equal(got, data) {
		t.Error("Contents() did not return the original bytes")
	}

	digest := varint.Digest(data)
	wantKey := types.BlobKey(digest)
	if blb.Key() != wantKey {
		t.Errorf("Key() = %x, want %x (sha1 of contents)", blb.Key(), wantKey)
	}
}

func TestPutDedup(t *testing.T) {
	s := openTestStore(t)
	data := []byte("duplicate content")

	b1, derr := s.Put(data)
	if derr != nil {
		t.Fatalf("Put() #1 error: %v", derr)
	}
	b2, derr := s.Put(data)
	if derr != nil {
		t.Fatalf("Put() #2 error: %v", derr)
	}
	if b1.Path() != b2.Path() {
		t.Errorf("two puts of identical content produced different paths: %q vs %q", b1.Path(), b2.Path())
	}

	count, derr := s.Count()
	if derr != nil {
		t.Fatalf("Count() error: %v", derr)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1 (deduped)", count)
	}
}

func TestHasAndNotFound(t *testing.T) {
	s := openTestStore(t)
	var missing types.BlobKey
	if s.Has(missing) {
		t.Error("Has() should be false for a key never written")
	}

	b, derr := s.Put([]byte("hi"))
	if derr != nil {
		t.Fatal(derr)
	}
	if !s.Has(b.Key()) {
		t.Error("Has() should be true right after Put()")
	}
}

func TestEncryptedRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	s, derr := Open(t.TempDir(), Options{Create: true, Writeable: true,
		EncryptionAlgorithm: AES256, EncryptionKey: key})
	if derr != nil {
		t.Fatalf("Open() error: %v", derr)
	}

	data := []byte("secret attachment contents, encrypted at rest")
	blb, derr := s.Put(data)
	if derr != nil {
		t.Fatalf("Put() error: %v", derr)
	}

	got, derr := s.Get(blb.Key()).Contents()
	if derr != nil {
		t.Fatalf("Contents() error: %v", derr)
	}
	if !bytes.Equal(got, data) {
		t.Error("encrypted round trip did not return original plaintext")
	}

	length, derr := blb.ContentLength()
	if derr != nil {
		t.Fatal(derr)
	}
	if length <= int64(len(data)) {
		t.Error("ContentLength() for an encrypted blob should overestimate due to nonce/tag overhead")
	}
}

func TestDeriveKeyIsDeterministicAndSaltSensitive(t *testing.T) {
	salt := []byte("fixed-salt-value")

	k1 := DeriveKey("hunter2", salt)
	k2 := DeriveKey("hunter2", salt)
	if len(k1) != 32 {
		t.Fatalf("DeriveKey() returned %d bytes, want 32", len(k1))
	}
	if !bytes.Equal(k1, k2) {
		t.Error("DeriveKey() should be deterministic for the same passphrase and salt")
	}

	k3 := DeriveKey("hunter2", []byte("different-salt-value"))
	if bytes.Equal(k1, k3) {
		t.Error("DeriveKey() should differ when the salt differs")
	}
}

func TestDerivedKeyEncryptsAndDecrypts(t *testing.T) {
	key := DeriveKey("correct horse battery staple", []byte("a-stored-salt"))
	s, derr := Open(t.TempDir(), Options{Create: true, Writeable: true,
		EncryptionAlgorithm: AES256, EncryptionKey: key})
	if derr != nil {
		t.Fatalf("Open() error: %v", derr)
	}

	data := []byte("derived-key attachment contents")
	blb, derr := s.Put(data)
	if derr != nil {
		t.Fatalf("Put() error: %v", derr)
	}
	got, derr := s.Get(blb.Key()).Contents()
	if derr != nil {
		t.Fatalf("Contents() error: %v", derr)
	}
	if !bytes.Equal(got, data) {
		t.Error("round trip with a passphrase-derived key did not return original plaintext")
	}
}

func TestKeysListsAllBlobs(t *testing.T) {
	s := openTestStore(t)
	b1, derr := s.Put([]byte("first"))
	if derr != nil {
		t.Fatal(derr)
	}
	b2, derr := s.Put([]byte("second"))
	if derr != nil {
		t.Fatal(derr)
	}

	keys, derr := s.Keys()
	if derr != nil {
		t.Fatalf("Keys() error: %v", derr)
	}
	if len(keys) != 2 {
		t.Fatalf("Keys() returned %d keys, want 2", len(keys))
	}
	seen := map[types.BlobKey]bool{}
	for _, k := range keys {
		seen[k] = true
	}
	if !seen[b1.Key()] || !seen[b2.Key()] {
		t.Errorf("Keys() = %v, want to include both put blobs", keys)
	}
}

func TestFilenameMatchesBase64Digest(t *testing.T) {
	s := openTestStore(t)
	data := []byte("filename check")
	blb, derr := s.Put(data)
	if derr != nil {
		t.Fatal(derr)
	}

	wantSuffix := blb.Key().String() + ".blob"
	if got := blb.Path(); len(got) < len(wantSuffix) || got[len(got)-len(wantSuffix):] != wantSuffix {
		t.Errorf("Path() = %q, want suffix %q", got, wantSuffix)
	}
}
