// Package diff implements the patch codec: suffix-array-based bsdiff,
// producing a compact binary patch from an (old, new) byte pair and
// reconstructing new from (old, patch). apply(old, diff(old, new)) must
// equal new byte-for-byte; the encoder itself need not be deterministic.
package diff

import (
	"os"

	"github.com/gabstv/go-bsdiff/pkg/bsdiff"
	"github.com/gabstv/go-bsdiff/pkg/bspatch"

	"github.com/danbrakeley/dromos/lib/dromoserr"
)

// Create produces a patch transforming old into new and writes it to
// diffPath, returning the patch size in bytes.
func Create(old, new []byte, diffPath string) (int64, error) {
	patch, err := bsdiff.Bytes(old, new)
	if err != nil {
		return 0, &dromoserr.DiffCreation{Msg: err.Error()}
	}
	if err := os.WriteFile(diffPath, patch, 0o644); err != nil {
		return 0, err
	}
	return int64(len(patch)), nil
}

// Apply reads the patch at diffPath and applies it to old, returning new.
func Apply(old []byte, diffPath string) ([]byte, error) {
	patch, err := os.ReadFile(diffPath)
	if err != nil {
		return nil, err
	}
	return ApplyBytes(old, patch)
}

// ApplyBytes applies an in-memory patch to old, returning new. Exposed
// separately from Apply so callers that already hold the patch bytes (such
// as tests) don't need a round trip through the filesystem.
func ApplyBytes(old, patch []byte) ([]byte, error) {
	out, err := bspatch.Bytes(old, patch)
	if err != nil {
		return nil, &dromoserr.DiffApplication{Msg: err.Error()}
	}
	return out, nil
}
