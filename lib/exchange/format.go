// Package exchange implements the connected-component export/import
// protocol: a self-contained folder carrying an index.json manifest plus
// copies of the patch files it references, with field-level conflict
// detection on import.
package exchange

import (
	"encoding/base64"
	"encoding/json"

	"github.com/danbrakeley/dromos/lib/db"
	"github.com/danbrakeley/dromos/lib/dromoserr"
	"github.com/danbrakeley/dromos/lib/rom"
)

// ManifestVersion is the exchange format's own version, independent of
// the data revision it was produced under.
const ManifestVersion = 1

// Manifest is the full contents of an exchange folder's index.json.
type Manifest struct {
	Header Header       `json:"dromos_export"`
	Files  []ExportNode `json:"files"`
	Diffs  []ExportEdge `json:"diffs"`
}

// Header identifies the producer's format and data revisions.
type Header struct {
	Version      uint32 `json:"version"`
	DataRevision uint32 `json:"data_revision"`
	ExportedAt   string `json:"exported_at"`
}

// ExportNode is one node's full user-visible metadata, serialized
// hash-addressed rather than id-addressed so it imports cleanly into any
// other store.
type ExportNode struct {
	SHA256           string   `json:"sha256"`
	Filename         string   `json:"filename,omitempty"`
	Title            string   `json:"title"`
	RomType          string   `json:"rom_type"`
	Version          string   `json:"version,omitempty"`
	SourceURL        string   `json:"source_url,omitempty"`
	ReleaseDate      string   `json:"release_date,omitempty"`
	Tags             []string `json:"tags"`
	Description      string   `json:"description,omitempty"`
	SourceFileHeader string   `json:"source_file_header,omitempty"` // base64
}

// ExportEdge is one edge, addressed by its endpoints' hashes rather than
// database ids, plus a checksum of the patch file it references.
type ExportEdge struct {
	SourceSHA256 string `json:"source_sha256"`
	TargetSHA256 string `json:"target_sha256"`
	DiffPath     string `json:"diff_path"`
	DiffSize     int64  `json:"diff_size"`
	SHA256       string `json:"sha256"`
}

// nodeRowToExportNode converts a repository row into its exchange
// representation.
func nodeRowToExportNode(n db.NodeRow) ExportNode {
	var headerB64 string
	if len(n.SourceFileHeader) > 0 {
		headerB64 = base64.StdEncoding.EncodeToString(n.SourceFileHeader)
	}
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return ExportNode{
		SHA256:           rom.FormatHash(n.SHA256),
		Filename:         n.Filename,
		Title:            n.Title,
		RomType:          string(n.RomType),
		Version:          n.Version,
		SourceURL:        n.SourceURL,
		ReleaseDate:      n.ReleaseDate,
		Tags:             tags,
		Description:      n.Description,
		SourceFileHeader: headerB64,
	}
}

func edgeRowToExportEdge(e db.EdgeRow, sourceHash, targetHash, diffSHA256 string) ExportEdge {
	return ExportEdge{
		SourceSHA256: sourceHash,
		TargetSHA256: targetHash,
		DiffPath:     e.DiffPath,
		DiffSize:     e.DiffSize,
		SHA256:       diffSHA256,
	}
}

func marshalManifest(m Manifest) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func unmarshalManifest(data []byte) (Manifest, error) {
	var m Manifest
	err := json.Unmarshal(data, &m)
	return m, err
}

// userMetadataFromExportNode extracts the six user-editable fields from an
// imported node, the shape update_node_metadata and insert_node expect.
func userMetadataFromExportNode(n ExportNode) db.UserMetadata {
	return db.UserMetadata{
		Title:       n.Title,
		SourceURL:   n.SourceURL,
		Version:     n.Version,
		ReleaseDate: n.ReleaseDate,
		Tags:        n.Tags,
		Description: n.Description,
	}
}

func romMetadataFromExportNode(n ExportNode) (rom.Metadata, error) {
	hash, ok := rom.ParseHash(n.SHA256)
	if !ok {
		return rom.Metadata{}, &dromoserr.Import{Msg: "invalid hash in import: " + n.SHA256}
	}

	var headerBytes []byte
	if n.SourceFileHeader != "" {
		decoded, err := base64.StdEncoding.DecodeString(n.SourceFileHeader)
		if err == nil {
			headerBytes = decoded
		}
	}

	return rom.Metadata{
		Type:           rom.Type(n.RomType),
		SHA256:         hash,
		Filename:       n.Filename,
		RawHeaderBytes: headerBytes,
	}, nil
}
