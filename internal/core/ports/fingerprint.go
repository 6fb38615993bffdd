// Package ports defines the core interfaces for the build engine.
package ports

import "github.com/lbliii/bengal/internal/core/domain"

// Fingerprinter computes content-hash fingerprints for source artifacts.
// A fingerprint is a pure function of file bytes: mtime and size never
// participate, so byte-identical content always hashes identically.
//
//go:generate go run go.uber.org/mock/mockgen -source=fingerprint.go -destination=mocks/mock_fingerprint.go -package=mocks
type Fingerprinter interface {
	// Fingerprint hashes the file at path.
	Fingerprint(path string) (domain.Hash, error)

	// FingerprintBytes hashes an in-memory rendered body.
	FingerprintBytes(data []byte) domain.Hash

	// HasChanged reports whether the file at path no longer matches prev.
	// A zero prev always reports true.
	HasChanged(prev domain.Hash, path string) (bool, error)
}
