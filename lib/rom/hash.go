package rom

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danbrakeley/dromos/lib/dromoserr"
)

// HashBody computes the SHA-256 of body bytes. Pure and deterministic:
// the same bytes always produce the same hash, independent of filename,
// headers, or metadata.
func HashBody(body []byte) [32]byte {
	return sha256.Sum256(body)
}

// FormatHash renders a body hash as lowercase hex.
func FormatHash(h [32]byte) string {
	return hex.EncodeToString(h[:])
}

// ParseHash parses a 64-character hex string into a body hash. Returns
// false if the string isn't exactly 64 valid hex characters.
func ParseHash(s string) ([32]byte, bool) {
	var out [32]byte
	if len(s) != 64 {
		return out, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, false
	}
	copy(out[:], b)
	return out, true
}

// ReadFile opens path, detects its ROM family from the extension, and
// extracts a Metadata plus its body bytes. Files whose extension isn't
// recognized fail with *dromoserr.UnsupportedRomType.
func ReadFile(path string) (Metadata, []byte, error) {
	typ, ok := DetectType(path)
	if !ok {
		ext := filepath.Ext(path)
		if ext == "" {
			ext = "none"
		}
		return Metadata{}, nil, &dromoserr.UnsupportedRomType{Extension: ext}
	}

	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	switch typ {
	case NES:
		body, header, rawHeader, err := ReadNES(f, path)
		if err != nil {
			return Metadata{}, nil, err
		}
		return Metadata{
			Type:           NES,
			SHA256:         HashBody(body),
			Filename:       filepath.Base(path),
			Header:         header,
			RawHeaderBytes: rawHeader,
		}, body, nil
	default:
		// unreachable: DetectType only ever returns NES today.
		ext := filepath.Ext(path)
		return Metadata{}, nil, &dromoserr.UnsupportedRomType{Extension: ext}
	}
}

// ReadBody returns just the body bytes of a ROM file. It goes through
// ReadFile, so the header is still parsed and the hash computed; only the
// body is handed back. Used by link and build, which need the body to
// diff/patch but already have the metadata.
func ReadBody(path string) ([]byte, error) {
	_, body, err := ReadFile(path)
	return body, err
}
