package download

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"strings"
)

// digests feeds every chunk to both hashes in a single write.
type digests struct {
	md5    hash.Hash
	sha256 hash.Hash
	w      io.Writer
}

func newDigests() *digests {
	d := digests{
		md5:    md5.New(),
		sha256: sha256.New(),
	}
	d.w = io.MultiWriter(d.md5, d.sha256)

	return &d
}

func (d *digests) Write(p []byte) (int, error) {
	return d.w.Write(p)
}

func (d *digests) sums() (md5Sum, sha256Sum string) {
	return hex.EncodeToString(d.md5.Sum(nil)), hex.EncodeToString(d.sha256.Sum(nil))
}

// checksumVerifier compares a computed digest with the expected hex value,
// ignoring case. An empty expectation always passes.
type checksumVerifier struct {
	algorithm string
	expected  string
}

func (v checksumVerifier) Verify(actual string) error {
	if v.expected == "" || strings.EqualFold(v.expected, actual) {
		return nil
	}

	return &ChecksumError{
		Algorithm: v.algorithm,
		Expected:  v.expected,
		Actual:    actual,
	}
}
