// Start-document fingerprints.
//
// Each indexed run carries a 16 hex character hash of its raw start
// document. Two files declaring the same uid are either copies of one run
// (same fingerprint) or a genuine conflict (different fingerprint); the
// index reports which when it logs the duplicate. Three algorithms are
// supported, selectable via Config.HashAlgorithm.
package runlog

import (
	"fmt"
	"hash/fnv"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// Hash algorithm constants.
const (
	AlgXXHash3 = 1 // Default, fastest
	AlgFNV1a   = 2 // No external dependencies
	AlgBlake2b = 3 // Best distribution
)

// fingerprint returns a 16 hex character hash of data.
func fingerprint(data []byte, alg int) string {
	switch alg {
	case AlgXXHash3:
		return fmt.Sprintf("%016x", xxh3.Hash(data))
	case AlgFNV1a:
		h := fnv.New64a()
		h.Write(data)
		return fmt.Sprintf("%016x", h.Sum64())
	case AlgBlake2b:
		h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
		h.Write(data)
		return fmt.Sprintf("%016x", h.Sum(nil))
	default:
		return ""
	}
}
