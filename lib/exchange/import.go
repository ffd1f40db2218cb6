package exchange

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/danbrakeley/dromos/lib/db"
	"github.com/danbrakeley/dromos/lib/dromoserr"
	"github.com/danbrakeley/dromos/lib/graph"
	"github.com/danbrakeley/dromos/lib/rom"
)

// FieldDiff describes a single user-metadata field that differs between a
// local node and its counterpart in an import manifest.
type FieldDiff struct {
	Field       string
	LocalValue  string
	ImportValue string
}

// NodeConflict is a node that exists locally but whose metadata disagrees
// with the version in the manifest being imported.
type NodeConflict struct {
	SHA256 string
	Title  string
	Diffs  []FieldDiff
}

// Result summarizes a completed import.
type Result struct {
	NodesAdded       int
	NodesSkipped     int
	NodesOverwritten int
	EdgesAdded       int
	EdgesSkipped     int
	DiffsCopied      int
}

// AnalyzeImport is phase 1: parse index.json, reject a data-revision
// mismatch, and collect field-level conflicts for nodes that already
// exist locally. No state is mutated.
func AnalyzeImport(folderPath string, repo *db.Repository) (Manifest, []NodeConflict, error) {
	indexPath := filepath.Join(folderPath, "index.json")
	raw, err := os.ReadFile(indexPath)
	if err != nil {
		return Manifest{}, nil, &dromoserr.Import{Msg: "failed to read " + indexPath + ": " + err.Error()}
	}

	manifest, err := unmarshalManifest(raw)
	if err != nil {
		return Manifest{}, nil, &dromoserr.Import{Msg: "malformed manifest: " + err.Error()}
	}

	if manifest.Header.DataRevision != db.DataRevision {
		return Manifest{}, nil, &dromoserr.Import{Msg: "data revision mismatch: import has a different revision than local"}
	}

	var conflicts []NodeConflict
	for _, importNode := range manifest.Files {
		hash, ok := rom.ParseHash(importNode.SHA256)
		if !ok {
			return Manifest{}, nil, &dromoserr.Import{Msg: "invalid hash in import: " + importNode.SHA256}
		}

		local, err := repo.GetNodeByHash(hash)
		if err != nil {
			return Manifest{}, nil, err
		}
		if local == nil {
			continue
		}

		var diffs []FieldDiff
		diffs = compareField(diffs, "title", local.Title, importNode.Title)
		diffs = compareField(diffs, "version", local.Version, importNode.Version)
		diffs = compareField(diffs, "source_url", local.SourceURL, importNode.SourceURL)
		diffs = compareField(diffs, "release_date", local.ReleaseDate, importNode.ReleaseDate)
		diffs = compareField(diffs, "description", local.Description, importNode.Description)

		localTags := strings.Join(local.Tags, ", ")
		importTags := strings.Join(importNode.Tags, ", ")
		diffs = compareField(diffs, "tags", localTags, importTags)

		if len(diffs) > 0 {
			conflicts = append(conflicts, NodeConflict{SHA256: importNode.SHA256, Title: importNode.Title, Diffs: diffs})
		}
	}

	return manifest, conflicts, nil
}

func compareField(diffs []FieldDiff, field, local, importValue string) []FieldDiff {
	if local == importValue {
		return diffs
	}
	return append(diffs, FieldDiff{Field: field, LocalValue: local, ImportValue: importValue})
}

// ExecuteImport is phase 2: insert new nodes, optionally overwrite
// conflicting ones, link edges whose endpoints resolve, and copy patch
// files not already present locally.
func ExecuteImport(folderPath string, manifest Manifest, overwrite bool, repo *db.Repository, g *graph.Graph, diffsDir string) (Result, error) {
	var result Result
	hashToDBID := make(map[string]int64)

	for _, importNode := range manifest.Files {
		hash, ok := rom.ParseHash(importNode.SHA256)
		if !ok {
			return Result{}, &dromoserr.Import{Msg: "invalid hash: " + importNode.SHA256}
		}

		existing, err := repo.GetNodeByHash(hash)
		if err != nil {
			return Result{}, err
		}

		if existing != nil {
			if overwrite {
				user := userMetadataFromExportNode(importNode)
				if err := repo.UpdateNodeMetadata(existing.ID, user); err != nil {
					return Result{}, err
				}
				if handle, ok := g.GetNodeByHash(hash); ok {
					node, _ := g.GetNode(handle)
					node.Title = user.Title
					node.Version = user.Version
					g.UpdateNode(handle, node)
				}
				result.NodesOverwritten++
			} else {
				result.NodesSkipped++
			}
			hashToDBID[importNode.SHA256] = existing.ID
			continue
		}

		romMeta, err := romMetadataFromExportNode(importNode)
		if err != nil {
			return Result{}, err
		}
		user := userMetadataFromExportNode(importNode)

		dbID, err := repo.InsertNode(romMeta, user.Title, user)
		if err != nil {
			return Result{}, err
		}

		g.AddNode(graph.Node{
			DBID:     dbID,
			SHA256:   hash,
			Filename: importNode.Filename,
			Title:    user.Title,
			Version:  user.Version,
			RomType:  importNode.RomType,
		})

		hashToDBID[importNode.SHA256] = dbID
		result.NodesAdded++
	}

	for _, importEdge := range manifest.Diffs {
		sourceID, ok := resolveID(importEdge.SourceSHA256, hashToDBID, repo)
		if !ok {
			continue
		}
		targetID, ok := resolveID(importEdge.TargetSHA256, hashToDBID, repo)
		if !ok {
			continue
		}

		edgeID, err := repo.InsertEdge(sourceID, targetID, importEdge.DiffPath, importEdge.DiffSize)
		if err != nil {
			if isDiffAlreadyExists(err) {
				result.EdgesSkipped++
				continue
			}
			return Result{}, err
		}

		sourceHash, _ := rom.ParseHash(importEdge.SourceSHA256)
		targetHash, _ := rom.ParseHash(importEdge.TargetSHA256)
		srcHandle, srcOK := g.GetNodeByHash(sourceHash)
		tgtHandle, tgtOK := g.GetNodeByHash(targetHash)
		if srcOK && tgtOK {
			g.AddEdge(srcHandle, tgtHandle, graph.Edge{DBID: edgeID, DiffPath: importEdge.DiffPath, DiffSize: importEdge.DiffSize})
		}

		result.EdgesAdded++
	}

	importDiffsDir := filepath.Join(folderPath, "diffs")
	for _, importEdge := range manifest.Diffs {
		localPath := filepath.Join(diffsDir, importEdge.DiffPath)
		if _, err := os.Stat(localPath); err == nil {
			continue // already present locally, assumed correct
		}

		sourcePath := filepath.Join(importDiffsDir, importEdge.DiffPath)
		data, err := os.ReadFile(sourcePath)
		if err != nil {
			continue // not present in the exchange folder either
		}

		if importEdge.SHA256 != "" {
			sum := sha256.Sum256(data)
			computed := hex.EncodeToString(sum[:])
			if computed != importEdge.SHA256 {
				return Result{}, &dromoserr.Import{Msg: "SHA-256 mismatch for " + importEdge.DiffPath}
			}
		}

		if err := os.WriteFile(localPath, data, 0o644); err != nil {
			return Result{}, err
		}
		result.DiffsCopied++
	}

	return result, nil
}

func resolveID(hashHex string, hashToDBID map[string]int64, repo *db.Repository) (int64, bool) {
	if id, ok := hashToDBID[hashHex]; ok {
		return id, true
	}
	hash, ok := rom.ParseHash(hashHex)
	if !ok {
		return 0, false
	}
	row, err := repo.GetNodeByHash(hash)
	if err != nil || row == nil {
		return 0, false
	}
	return row.ID, true
}

func isDiffAlreadyExists(err error) bool {
	_, ok := err.(*dromoserr.DiffAlreadyExists)
	return ok
}
