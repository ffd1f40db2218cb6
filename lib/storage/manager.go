// Package storage is the orchestrator: it keeps the relational Repository,
// the in-memory Graph, and the diffs/ directory bi-consistent for every
// public mutation. Every operation here is synchronous and single-
// threaded; there is no internal concurrency to reason about.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danbrakeley/dromos/lib/config"
	"github.com/danbrakeley/dromos/lib/db"
	"github.com/danbrakeley/dromos/lib/diff"
	"github.com/danbrakeley/dromos/lib/dromoserr"
	"github.com/danbrakeley/dromos/lib/graph"
	"github.com/danbrakeley/dromos/lib/rom"
)

// Manager is the only component a CLI command talks to.
type Manager struct {
	repo   *db.Repository
	graph  *graph.Graph
	config config.StorageConfig
	closer func() error
}

// Open applies the revision gate, runs migrations, and loads the entire
// Repository into a fresh Graph.
func Open(cfg config.StorageConfig) (*Manager, error) {
	if err := cfg.EnsureDirsExist(); err != nil {
		return nil, err
	}

	conn, err := db.Open(cfg.DBPath, cfg.DiffsDir)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		repo:   db.NewRepository(conn),
		graph:  graph.New(),
		config: cfg,
		closer: conn.Close,
	}

	if err := m.loadGraph(); err != nil {
		conn.Close()
		return nil, err
	}
	return m, nil
}

// Close releases the underlying database connection.
func (m *Manager) Close() error {
	return m.closer()
}

func (m *Manager) loadGraph() error {
	nodes, err := m.repo.LoadAllNodes()
	if err != nil {
		return err
	}
	for _, n := range nodes {
		m.graph.AddNode(nodeRowToGraphNode(n))
	}

	edges, err := m.repo.LoadAllEdges()
	if err != nil {
		return err
	}
	for _, e := range edges {
		srcHandle, srcOK := m.graph.GetNodeByDBID(e.SourceID)
		tgtHandle, tgtOK := m.graph.GetNodeByDBID(e.TargetID)
		if !srcOK || !tgtOK {
			continue // endpoint missing: should not happen under the schema's FK
		}
		m.graph.AddEdge(srcHandle, tgtHandle, graph.Edge{DBID: e.ID, DiffPath: e.DiffPath, DiffSize: e.DiffSize})
	}
	return nil
}

func nodeRowToGraphNode(n db.NodeRow) graph.Node {
	return graph.Node{
		DBID:     n.ID,
		SHA256:   n.SHA256,
		Filename: n.Filename,
		Title:    n.Title,
		Version:  n.Version,
		RomType:  string(n.RomType),
	}
}

// Add computes (rom metadata, body) via the format adapter, inserts the
// node row, and mirrors it into the graph.
func (m *Manager) Add(path string, title string, user db.UserMetadata) (rom.Metadata, error) {
	meta, _, err := rom.ReadFile(path)
	if err != nil {
		return rom.Metadata{}, err
	}

	if title == "" {
		title = meta.Filename
	}
	if user.Title == "" {
		user.Title = title
	}

	id, err := m.repo.InsertNode(meta, title, user)
	if err != nil {
		return rom.Metadata{}, err
	}

	m.graph.AddNode(graph.Node{
		DBID:     id,
		SHA256:   meta.SHA256,
		Filename: meta.Filename,
		Title:    title,
		Version:  user.Version,
		RomType:  string(meta.Type),
	})

	return meta, nil
}

// LinkResult carries the sizes of the two patches produced by Link.
type LinkResult struct {
	SizeAB int64
	SizeBA int64
}

// Link requires both files to exist and both hashes to already be known
// Nodes. It produces two patches — A→B and B→A — writes each to
// diffs/<srcHash16>_<tgtHash16>.bsdiff, inserts both edge rows, then
// mirrors both edges into the graph. Per direction the order is: write
// file, then insert row, then update the graph.
func (m *Manager) Link(pathA, pathB string) (LinkResult, error) {
	bodyA, err := rom.ReadBody(pathA)
	if err != nil {
		return LinkResult{}, err
	}
	bodyB, err := rom.ReadBody(pathB)
	if err != nil {
		return LinkResult{}, err
	}

	hashA := rom.HashBody(bodyA)
	hashB := rom.HashBody(bodyB)

	nodeA, err := m.repo.GetNodeByHash(hashA)
	if err != nil {
		return LinkResult{}, err
	}
	if nodeA == nil {
		return LinkResult{}, &dromoserr.RomNotFound{Hash: rom.FormatHash(hashA)}
	}
	nodeB, err := m.repo.GetNodeByHash(hashB)
	if err != nil {
		return LinkResult{}, err
	}
	if nodeB == nil {
		return LinkResult{}, &dromoserr.RomNotFound{Hash: rom.FormatHash(hashB)}
	}

	sizeAB, err := m.linkDirection(nodeA, nodeB, bodyA, bodyB)
	if err != nil {
		return LinkResult{}, err
	}
	sizeBA, err := m.linkDirection(nodeB, nodeA, bodyB, bodyA)
	if err != nil {
		return LinkResult{}, err
	}

	return LinkResult{SizeAB: sizeAB, SizeBA: sizeBA}, nil
}

func (m *Manager) linkDirection(src, tgt *db.NodeRow, srcBody, tgtBody []byte) (int64, error) {
	diffName := fmt.Sprintf("%s_%s.bsdiff", rom.FormatHash(src.SHA256)[:16], rom.FormatHash(tgt.SHA256)[:16])
	diffPath := filepath.Join(m.config.DiffsDir, diffName)

	size, err := diff.Create(srcBody, tgtBody, diffPath)
	if err != nil {
		return 0, err
	}

	edgeID, err := m.repo.InsertEdge(src.ID, tgt.ID, diffName, size)
	if err != nil {
		return 0, err
	}

	srcHandle, _ := m.graph.GetNodeByDBID(src.ID)
	tgtHandle, _ := m.graph.GetNodeByDBID(tgt.ID)
	m.graph.AddEdge(srcHandle, tgtHandle, graph.Edge{DBID: edgeID, DiffPath: diffName, DiffSize: size})

	return size, nil
}

// BuildResult is everything Build hands back: the reconstructed bytes,
// the target's full row (so callers can report its metadata), and the
// number of patches applied along the way.
type BuildResult struct {
	Bytes        []byte
	Target       db.NodeRow
	StepsApplied int
}

// Build hashes sourceFile (which must be a known node), finds the
// shortest path to targetHash, and applies every patch along that path in
// order. The target's header is reattached from its stored raw header
// bytes, or rebuilt from its header descriptor when those are absent.
func (m *Manager) Build(sourceFile string, targetHash [32]byte) (BuildResult, error) {
	body, err := rom.ReadBody(sourceFile)
	if err != nil {
		return BuildResult{}, err
	}
	sourceHash := rom.HashBody(body)

	srcHandle, ok := m.graph.GetNodeByHash(sourceHash)
	if !ok {
		return BuildResult{}, &dromoserr.RomNotFound{Hash: rom.FormatHash(sourceHash)}
	}
	tgtHandle, ok := m.graph.GetNodeByHash(targetHash)
	if !ok {
		return BuildResult{}, &dromoserr.RomNotFound{Hash: rom.FormatHash(targetHash)}
	}

	path, ok := m.graph.FindShortestPath(srcHandle, tgtHandle)
	if !ok {
		return BuildResult{}, &dromoserr.NoPath{From: rom.FormatHash(sourceHash), To: rom.FormatHash(targetHash)}
	}

	current := body
	steps := 0
	for _, step := range path {
		if step.Edge == nil {
			continue // the source node itself
		}
		diffPath := filepath.Join(m.config.DiffsDir, step.Edge.DiffPath)
		next, err := diff.Apply(current, diffPath)
		if err != nil {
			return BuildResult{}, err
		}
		current = next
		steps++
	}

	targetRow, err := m.repo.GetNodeByHash(targetHash)
	if err != nil {
		return BuildResult{}, err
	}
	if targetRow == nil {
		return BuildResult{}, &dromoserr.RomNotFound{Hash: rom.FormatHash(targetHash)}
	}

	reconstructed := reattachHeader(*targetRow, current)

	return BuildResult{Bytes: reconstructed, Target: *targetRow, StepsApplied: steps}, nil
}

func reattachHeader(target db.NodeRow, body []byte) []byte {
	switch target.RomType {
	case rom.NES:
		if len(target.SourceFileHeader) == 16 {
			return rom.ReconstructNES(target.SourceFileHeader, nil, body)
		}
		if target.Header != nil {
			return rom.ReconstructNES(nil, target.Header, body)
		}
		fmt.Fprintf(os.Stderr, "dromos: warning: no header available for %s, emitting body only\n", rom.FormatHash(target.SHA256))
		return body
	default:
		return body
	}
}

// Remove deletes a node and every edge incident to it: patch files first
// (best-effort; missing or unreadable files become warnings), then the
// Repository rows, then the Graph entry.
func (m *Manager) Remove(hash [32]byte) error {
	handle, ok := m.graph.GetNodeByHash(hash)
	if !ok {
		return &dromoserr.RomNotFound{Hash: rom.FormatHash(hash)}
	}
	node, _ := m.graph.GetNode(handle)

	edges, err := m.repo.GetEdgesForNode(node.DBID)
	if err != nil {
		return err
	}
	for _, e := range edges {
		path := filepath.Join(m.config.DiffsDir, e.DiffPath)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "dromos: warning: failed to remove patch file %s: %v\n", path, err)
		} else if os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "dromos: warning: patch file %s already missing\n", path)
		}
	}

	if err := m.repo.DeleteNode(node.DBID); err != nil {
		return err
	}
	m.graph.RemoveNode(handle)
	return nil
}

// UpdateMetadata updates the six user fields in the Repository and
// mirrors title/version into the Graph's cached node.
func (m *Manager) UpdateMetadata(hash [32]byte, user db.UserMetadata) error {
	handle, ok := m.graph.GetNodeByHash(hash)
	if !ok {
		return &dromoserr.RomNotFound{Hash: rom.FormatHash(hash)}
	}
	node, _ := m.graph.GetNode(handle)

	if err := m.repo.UpdateNodeMetadata(node.DBID, user); err != nil {
		return err
	}

	node.Title = user.Title
	node.Version = user.Version
	m.graph.UpdateNode(handle, node)
	return nil
}

// FindNodeByHashPrefix does a case-insensitive linear scan for the first
// node whose hash starts with prefix, in insertion order. Callers must
// accept ambiguity: this exists purely for user convenience.
func (m *Manager) FindNodeByHashPrefix(prefix string) (graph.Node, bool) {
	prefix = strings.ToLower(prefix)
	for _, entry := range m.graph.IterNodes() {
		if strings.HasPrefix(rom.FormatHash(entry.Node.SHA256), prefix) {
			return entry.Node, true
		}
	}
	return graph.Node{}, false
}

// GetNeighbors is a thin wrapper over the Graph's outgoing-edge view.
func (m *Manager) GetNeighbors(hash [32]byte) ([]struct {
	Node graph.Node
	Edge graph.Edge
}, bool) {
	handle, ok := m.graph.GetNodeByHash(hash)
	if !ok {
		return nil, false
	}
	return m.graph.Neighbors(handle), true
}

// LinkCount is a thin wrapper over the Graph's outgoing edge count.
func (m *Manager) LinkCount(hash [32]byte) (int, bool) {
	handle, ok := m.graph.GetNodeByHash(hash)
	if !ok {
		return 0, false
	}
	return m.graph.OutgoingEdgeCount(handle), true
}

// ConnectedComponentCount is a thin wrapper over the Graph's undirected
// component traversal.
func (m *Manager) ConnectedComponentCount(hash [32]byte) (int, bool) {
	handle, ok := m.graph.GetNodeByHash(hash)
	if !ok {
		return 0, false
	}
	return len(m.graph.ConnectedComponent(handle)), true
}

// Graph exposes the underlying graph for callers (exchange, CLI listing)
// that need operations beyond this thin-wrapper set. The exchange importer
// adds and updates nodes and edges through it.
func (m *Manager) Graph() *graph.Graph {
	return m.graph
}

// Repository exposes the underlying repository for callers that need
// direct row access (exchange export/import, some CLI commands). The
// exchange importer inserts and updates rows through it.
func (m *Manager) Repository() *db.Repository {
	return m.repo
}

// Config returns the paths this manager was opened with.
func (m *Manager) Config() config.StorageConfig {
	return m.config
}
