package db

import (
	"path/filepath"
	"testing"

	"github.com/danbrakeley/dromos/lib/rom"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	dir := t.TempDir()
	diffsDir := filepath.Join(dir, "diffs")
	conn, err := Open(filepath.Join(dir, "dromos.db"), diffsDir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewRepository(conn)
}

func sampleMeta(b byte) rom.Metadata {
	var h [32]byte
	h[0] = b
	return rom.Metadata{
		Type:     rom.NES,
		SHA256:   h,
		Filename: "game.nes",
		Header: &rom.Header{
			PRGROMSize: 32 * 1024,
			CHRROMSize: 8 * 1024,
			Mapper:     4,
			Mirroring:  rom.MirroringVertical,
			HasBattery: true,
		},
	}
}

func TestInsertAndGetNode(t *testing.T) {
	repo := openTestRepo(t)
	meta := sampleMeta(0x01)

	id, err := repo.InsertNode(meta, "Some Game", UserMetadata{Title: "Some Game", Tags: []string{"action", "platformer"}})
	if err != nil {
		t.Fatalf("InsertNode() error = %v", err)
	}

	byHash, err := repo.GetNodeByHash(meta.SHA256)
	if err != nil {
		t.Fatalf("GetNodeByHash() error = %v", err)
	}
	if byHash == nil {
		t.Fatalf("expected node to be found by hash")
	}
	if byHash.ID != id {
		t.Errorf("ID = %d, want %d", byHash.ID, id)
	}
	if byHash.Header == nil || byHash.Header.Mapper != 4 {
		t.Errorf("expected header to round-trip, got %+v", byHash.Header)
	}
	if byHash.Header.Mirroring != rom.MirroringVertical {
		t.Errorf("Mirroring = %v, want Vertical", byHash.Header.Mirroring)
	}
	if len(byHash.Tags) != 2 || byHash.Tags[0] != "action" {
		t.Errorf("Tags = %v, want [action platformer]", byHash.Tags)
	}

	byID, err := repo.GetNodeByID(id)
	if err != nil {
		t.Fatalf("GetNodeByID() error = %v", err)
	}
	if byID == nil || byID.SHA256 != meta.SHA256 {
		t.Errorf("GetNodeByID did not return the same node")
	}
}

func TestInsertNode_DuplicateHashRejected(t *testing.T) {
	repo := openTestRepo(t)
	meta := sampleMeta(0x02)

	if _, err := repo.InsertNode(meta, "First", UserMetadata{}); err != nil {
		t.Fatalf("InsertNode() error = %v", err)
	}
	if _, err := repo.InsertNode(meta, "Second", UserMetadata{}); err == nil {
		t.Errorf("expected RomAlreadyExists error on duplicate hash")
	}
}

func TestInsertEdgeAndLoadAll(t *testing.T) {
	repo := openTestRepo(t)
	a, _ := repo.InsertNode(sampleMeta(0x01), "A", UserMetadata{})
	b, _ := repo.InsertNode(sampleMeta(0x02), "B", UserMetadata{})

	edgeID, err := repo.InsertEdge(a, b, "diffs/aa_bb.bsdiff", 42)
	if err != nil {
		t.Fatalf("InsertEdge() error = %v", err)
	}
	if edgeID == 0 {
		t.Errorf("expected nonzero edge id")
	}

	nodes, err := repo.LoadAllNodes()
	if err != nil {
		t.Fatalf("LoadAllNodes() error = %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("len(nodes) = %d, want 2", len(nodes))
	}

	edges, err := repo.LoadAllEdges()
	if err != nil {
		t.Fatalf("LoadAllEdges() error = %v", err)
	}
	if len(edges) != 1 || edges[0].SourceID != a || edges[0].TargetID != b {
		t.Errorf("unexpected edges: %+v", edges)
	}
}

func TestInsertEdge_DuplicateRejected(t *testing.T) {
	repo := openTestRepo(t)
	a, _ := repo.InsertNode(sampleMeta(0x01), "A", UserMetadata{})
	b, _ := repo.InsertNode(sampleMeta(0x02), "B", UserMetadata{})

	if _, err := repo.InsertEdge(a, b, "diffs/a_b.bsdiff", 1); err != nil {
		t.Fatalf("InsertEdge() error = %v", err)
	}
	if _, err := repo.InsertEdge(a, b, "diffs/a_b.bsdiff", 1); err == nil {
		t.Errorf("expected DiffAlreadyExists error on duplicate edge")
	}
}

func TestGetEdgesForNode(t *testing.T) {
	repo := openTestRepo(t)
	a, _ := repo.InsertNode(sampleMeta(0x01), "A", UserMetadata{})
	b, _ := repo.InsertNode(sampleMeta(0x02), "B", UserMetadata{})
	c, _ := repo.InsertNode(sampleMeta(0x03), "C", UserMetadata{})

	repo.InsertEdge(a, b, "diffs/a_b.bsdiff", 1)
	repo.InsertEdge(c, a, "diffs/c_a.bsdiff", 1)

	edges, err := repo.GetEdgesForNode(a)
	if err != nil {
		t.Fatalf("GetEdgesForNode() error = %v", err)
	}
	if len(edges) != 2 {
		t.Errorf("len(edges) = %d, want 2 (as both source and target)", len(edges))
	}
}

func TestDeleteNode_CascadesEdges(t *testing.T) {
	repo := openTestRepo(t)
	a, _ := repo.InsertNode(sampleMeta(0x01), "A", UserMetadata{})
	b, _ := repo.InsertNode(sampleMeta(0x02), "B", UserMetadata{})
	repo.InsertEdge(a, b, "diffs/a_b.bsdiff", 1)

	if err := repo.DeleteNode(a); err != nil {
		t.Fatalf("DeleteNode() error = %v", err)
	}

	node, err := repo.GetNodeByID(a)
	if err != nil {
		t.Fatalf("GetNodeByID() error = %v", err)
	}
	if node != nil {
		t.Errorf("expected node to be gone")
	}

	edges, err := repo.GetEdgesForNode(b)
	if err != nil {
		t.Fatalf("GetEdgesForNode() error = %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("expected incident edges to be deleted, got %+v", edges)
	}
}

func TestUpdateNodeMetadata_PreservesHashAndHeader(t *testing.T) {
	repo := openTestRepo(t)
	meta := sampleMeta(0x01)
	id, _ := repo.InsertNode(meta, "Old Title", UserMetadata{})

	err := repo.UpdateNodeMetadata(id, UserMetadata{
		Title:   "New Title",
		Version: "1.1",
		Tags:    []string{"rpg"},
	})
	if err != nil {
		t.Fatalf("UpdateNodeMetadata() error = %v", err)
	}

	updated, err := repo.GetNodeByID(id)
	if err != nil {
		t.Fatalf("GetNodeByID() error = %v", err)
	}
	if updated.Title != "New Title" {
		t.Errorf("Title = %q, want %q", updated.Title, "New Title")
	}
	if updated.Version != "1.1" {
		t.Errorf("Version = %q, want 1.1", updated.Version)
	}
	if updated.SHA256 != meta.SHA256 {
		t.Errorf("hash must remain immutable across metadata edit")
	}
	if updated.Header == nil || updated.Header.Mapper != meta.Header.Mapper {
		t.Errorf("header descriptor must remain immutable across metadata edit")
	}
}

func TestOpen_ReopenPreservesData(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "dromos.db")
	diffsDir := filepath.Join(dir, "diffs")

	conn1, err := Open(dbPath, diffsDir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	repo1 := NewRepository(conn1)
	meta := sampleMeta(0x05)
	if _, err := repo1.InsertNode(meta, "Persisted", UserMetadata{}); err != nil {
		t.Fatalf("InsertNode() error = %v", err)
	}
	conn1.Close()

	conn2, err := Open(dbPath, diffsDir)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer conn2.Close()
	repo2 := NewRepository(conn2)

	node, err := repo2.GetNodeByHash(meta.SHA256)
	if err != nil {
		t.Fatalf("GetNodeByHash() error = %v", err)
	}
	if node == nil {
		t.Errorf("expected node to survive reopen")
	}
}
