package fs

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/lbliii/bengal/internal/core/domain"
	"github.com/lbliii/bengal/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Fingerprinter = (*Fingerprinter)(nil)

// Fingerprinter computes content fingerprints using XXHash64.
type Fingerprinter struct{}

// NewFingerprinter creates a new Fingerprinter.
func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{}
}

// Fingerprint hashes the raw bytes of the file at path. The result depends
// on content only; touching a file without editing it yields the same hash.
func (f *Fingerprinter) Fingerprint(path string) (domain.Hash, error) {
	file, err := os.Open(path) //nolint:gosec // Path comes from discovery
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrDiscovery, err.Error()), "path", path)
	}
	defer file.Close() //nolint:errcheck // Best effort close in defer

	h := xxhash.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrDiscovery, err.Error()), "path", path)
	}

	return domain.Hash(fmt.Sprintf("%016x", h.Sum64())), nil
}

// FingerprintBytes hashes an in-memory rendered body.
func (f *Fingerprinter) FingerprintBytes(data []byte) domain.Hash {
	return domain.Hash(fmt.Sprintf("%016x", xxhash.Sum64(data)))
}

// HasChanged reports whether the file at path no longer matches prev.
func (f *Fingerprinter) HasChanged(prev domain.Hash, path string) (bool, error) {
	if prev.IsZero() {
		return true, nil
	}
	cur, err := f.Fingerprint(path)
	if err != nil {
		return true, err
	}
	return cur != prev, nil
}
