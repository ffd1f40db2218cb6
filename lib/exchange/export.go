package exchange

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/danbrakeley/dromos/lib/db"
	"github.com/danbrakeley/dromos/lib/dromoserr"
	"github.com/danbrakeley/dromos/lib/graph"
	"github.com/danbrakeley/dromos/lib/rom"
)

// OverwriteAction is the caller's answer to a destination-file conflict
// during export.
type OverwriteAction int

const (
	Overwrite OverwriteAction = iota
	Skip
	Abort
)

// ConflictFunc decides what to do when a destination file already exists.
type ConflictFunc func(path string) (OverwriteAction, error)

// Stats summarizes a completed (or aborted) export.
type Stats struct {
	Nodes   int
	Edges   int
	Aborted bool
}

// WriteFolder exports nodes (and the patches between exported nodes) to
// outputPath. If componentHash is non-nil, only the undirected connected
// component containing that node is exported; otherwise every node is.
// An edge is exported iff both endpoints are exported.
func WriteFolder(
	outputPath string,
	repo *db.Repository,
	g *graph.Graph,
	diffsDir string,
	componentHash *[32]byte,
	onConflict ConflictFunc,
) (Stats, error) {
	selectedHashes, err := selectNodeHashes(g, componentHash)
	if err != nil {
		return Stats{}, err
	}

	allNodes, err := repo.LoadAllNodes()
	if err != nil {
		return Stats{}, err
	}
	var selectedNodes []db.NodeRow
	selectedIDs := make(map[int64]bool)
	idToHash := make(map[int64]string)
	for _, n := range allNodes {
		if !selectedHashes[n.SHA256] {
			continue
		}
		selectedNodes = append(selectedNodes, n)
		selectedIDs[n.ID] = true
		idToHash[n.ID] = rom.FormatHash(n.SHA256)
	}

	allEdges, err := repo.LoadAllEdges()
	if err != nil {
		return Stats{}, err
	}

	var exportEdges []ExportEdge
	type diffFile struct {
		name  string
		bytes []byte
	}
	var diffFiles []diffFile
	for _, e := range allEdges {
		if !selectedIDs[e.SourceID] || !selectedIDs[e.TargetID] {
			continue
		}

		diffPath := filepath.Join(diffsDir, e.DiffPath)
		var checksum string
		if data, err := os.ReadFile(diffPath); err == nil {
			sum := sha256.Sum256(data)
			checksum = hex.EncodeToString(sum[:])
			diffFiles = append(diffFiles, diffFile{name: e.DiffPath, bytes: data})
		}

		exportEdges = append(exportEdges, edgeRowToExportEdge(e, idToHash[e.SourceID], idToHash[e.TargetID], checksum))
	}

	exportNodes := make([]ExportNode, 0, len(selectedNodes))
	for _, n := range selectedNodes {
		exportNodes = append(exportNodes, nodeRowToExportNode(n))
	}

	manifest := Manifest{
		Header: Header{
			Version:      ManifestVersion,
			DataRevision: db.DataRevision,
			ExportedAt:   time.Now().UTC().Format(time.RFC3339),
		},
		Files: exportNodes,
		Diffs: exportEdges,
	}

	nodeCount := len(manifest.Files)
	edgeCount := len(manifest.Diffs)

	jsonBytes, err := marshalManifest(manifest)
	if err != nil {
		return Stats{}, &dromoserr.Export{Msg: err.Error()}
	}

	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return Stats{}, &dromoserr.Export{Msg: "failed to create output directory: " + err.Error()}
	}
	outputDiffsDir := filepath.Join(outputPath, "diffs")
	if err := os.MkdirAll(outputDiffsDir, 0o755); err != nil {
		return Stats{}, &dromoserr.Export{Msg: "failed to create diffs directory: " + err.Error()}
	}

	indexPath := filepath.Join(outputPath, "index.json")
	result, err := writeWithConflictCheck(indexPath, jsonBytes, onConflict)
	if err != nil {
		return Stats{}, err
	}
	if result == writeAborted {
		return Stats{Nodes: nodeCount, Edges: edgeCount, Aborted: true}, nil
	}

	for _, f := range diffFiles {
		dest := filepath.Join(outputDiffsDir, f.name)
		result, err := writeWithConflictCheck(dest, f.bytes, onConflict)
		if err != nil {
			return Stats{}, err
		}
		if result == writeAborted {
			return Stats{Nodes: nodeCount, Edges: edgeCount, Aborted: true}, nil
		}
	}

	return Stats{Nodes: nodeCount, Edges: edgeCount}, nil
}

func selectNodeHashes(g *graph.Graph, componentHash *[32]byte) (map[[32]byte]bool, error) {
	selected := make(map[[32]byte]bool)

	if componentHash == nil {
		for _, entry := range g.IterNodes() {
			selected[entry.Node.SHA256] = true
		}
		return selected, nil
	}

	start, ok := g.GetNodeByHash(*componentHash)
	if !ok {
		return nil, &dromoserr.Export{Msg: "starting node not found in graph"}
	}
	for _, h := range g.ConnectedComponent(start) {
		if n, ok := g.GetNode(h); ok {
			selected[n.SHA256] = true
		}
	}
	return selected, nil
}

type writeResult int

const (
	writeWritten writeResult = iota
	writeSkipped
	writeAborted
)

// writeWithConflictCheck writes bytes to path, consulting onConflict if
// the destination already exists.
func writeWithConflictCheck(path string, data []byte, onConflict ConflictFunc) (writeResult, error) {
	if _, err := os.Stat(path); err == nil {
		action, err := onConflict(path)
		if err != nil {
			return 0, err
		}
		switch action {
		case Overwrite:
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return 0, err
			}
			return writeWritten, nil
		case Skip:
			return writeSkipped, nil
		default:
			return writeAborted, nil
		}
	} else if !os.IsNotExist(err) {
		return 0, err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, err
	}
	return writeWritten, nil
}
