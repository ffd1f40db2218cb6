package exchange

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danbrakeley/dromos/lib/config"
	"github.com/danbrakeley/dromos/lib/db"
	"github.com/danbrakeley/dromos/lib/rom"
	"github.com/danbrakeley/dromos/lib/storage"
)

func openTestManager(t *testing.T) *storage.Manager {
	t.Helper()
	dir := t.TempDir()
	cfg := config.StorageConfig{
		DBPath:   filepath.Join(dir, "dromos.db"),
		DiffsDir: filepath.Join(dir, "diffs"),
	}
	m, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func writeNESFile(t *testing.T, dir, name string, body []byte) string {
	t.Helper()
	header := [16]byte{0x4E, 0x45, 0x53, 0x1A, 1, 1, 0, 0}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, append(header[:], body...), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func alwaysOverwrite(string) (OverwriteAction, error) { return Overwrite, nil }

func TestWriteFolder_ExportsAllNodesByDefault(t *testing.T) {
	m := openTestManager(t)
	dir := t.TempDir()
	pathA := writeNESFile(t, dir, "a.nes", []byte("alpha rom body"))
	pathB := writeNESFile(t, dir, "b.nes", []byte("bravo rom body, a bit longer"))

	if _, err := m.Add(pathA, "Alpha", db.UserMetadata{}); err != nil {
		t.Fatalf("Add(A) error = %v", err)
	}
	if _, err := m.Add(pathB, "Bravo", db.UserMetadata{}); err != nil {
		t.Fatalf("Add(B) error = %v", err)
	}
	if _, err := m.Link(pathA, pathB); err != nil {
		t.Fatalf("Link() error = %v", err)
	}

	outDir := filepath.Join(dir, "export-out")
	stats, err := WriteFolder(outDir, m.Repository(), m.Graph(), m.Config().DiffsDir, nil, alwaysOverwrite)
	if err != nil {
		t.Fatalf("WriteFolder() error = %v", err)
	}
	if stats.Nodes != 2 {
		t.Errorf("Nodes = %d, want 2", stats.Nodes)
	}
	if stats.Edges != 2 {
		t.Errorf("Edges = %d, want 2", stats.Edges)
	}
	if stats.Aborted {
		t.Errorf("Aborted = true, want false")
	}

	if _, err := os.Stat(filepath.Join(outDir, "index.json")); err != nil {
		t.Errorf("expected index.json to exist: %v", err)
	}
	diffEntries, err := os.ReadDir(filepath.Join(outDir, "diffs"))
	if err != nil {
		t.Fatalf("ReadDir(diffs) error = %v", err)
	}
	if len(diffEntries) != 2 {
		t.Errorf("len(diffEntries) = %d, want 2", len(diffEntries))
	}
}

func TestWriteFolder_ComponentScopesToConnectedSubgraph(t *testing.T) {
	m := openTestManager(t)
	dir := t.TempDir()
	pathA := writeNESFile(t, dir, "a.nes", []byte("alpha rom body"))
	pathB := writeNESFile(t, dir, "b.nes", []byte("bravo rom body, a bit longer"))
	pathC := writeNESFile(t, dir, "c.nes", []byte("charlie is isolated"))

	metaA, _ := m.Add(pathA, "Alpha", db.UserMetadata{})
	_, err := m.Add(pathB, "Bravo", db.UserMetadata{})
	if err != nil {
		t.Fatalf("Add(B) error = %v", err)
	}
	if _, err := m.Add(pathC, "Charlie", db.UserMetadata{}); err != nil {
		t.Fatalf("Add(C) error = %v", err)
	}
	if _, err := m.Link(pathA, pathB); err != nil {
		t.Fatalf("Link() error = %v", err)
	}

	outDir := filepath.Join(dir, "export-component")
	stats, err := WriteFolder(outDir, m.Repository(), m.Graph(), m.Config().DiffsDir, &metaA.SHA256, alwaysOverwrite)
	if err != nil {
		t.Fatalf("WriteFolder() error = %v", err)
	}
	if stats.Nodes != 2 {
		t.Errorf("Nodes = %d, want 2 (charlie should be excluded)", stats.Nodes)
	}
}

func TestExportThenImport_RoundTripsIntoFreshStore(t *testing.T) {
	src := openTestManager(t)
	dir := t.TempDir()
	pathA := writeNESFile(t, dir, "a.nes", []byte("alpha rom body for round trip"))
	pathB := writeNESFile(t, dir, "b.nes", []byte("bravo rom body for round trip, longer"))

	if _, err := src.Add(pathA, "Alpha", db.UserMetadata{Title: "Alpha", Tags: []string{"demo"}}); err != nil {
		t.Fatalf("Add(A) error = %v", err)
	}
	if _, err := src.Add(pathB, "Bravo", db.UserMetadata{Title: "Bravo"}); err != nil {
		t.Fatalf("Add(B) error = %v", err)
	}
	if _, err := src.Link(pathA, pathB); err != nil {
		t.Fatalf("Link() error = %v", err)
	}

	outDir := filepath.Join(dir, "export-out")
	if _, err := WriteFolder(outDir, src.Repository(), src.Graph(), src.Config().DiffsDir, nil, alwaysOverwrite); err != nil {
		t.Fatalf("WriteFolder() error = %v", err)
	}

	dst := openTestManager(t)
	manifest, conflicts, err := AnalyzeImport(outDir, dst.Repository())
	if err != nil {
		t.Fatalf("AnalyzeImport() error = %v", err)
	}
	if len(conflicts) != 0 {
		t.Errorf("expected no conflicts into an empty store, got %+v", conflicts)
	}

	result, err := ExecuteImport(outDir, manifest, false, dst.Repository(), dst.Graph(), dst.Config().DiffsDir)
	if err != nil {
		t.Fatalf("ExecuteImport() error = %v", err)
	}
	if result.NodesAdded != 2 {
		t.Errorf("NodesAdded = %d, want 2", result.NodesAdded)
	}
	if result.EdgesAdded != 2 {
		t.Errorf("EdgesAdded = %d, want 2", result.EdgesAdded)
	}
	if result.DiffsCopied != 2 {
		t.Errorf("DiffsCopied = %d, want 2", result.DiffsCopied)
	}
}

func TestAnalyzeImport_DetectsFieldConflicts(t *testing.T) {
	src := openTestManager(t)
	dir := t.TempDir()
	path := writeNESFile(t, dir, "a.nes", []byte("conflict test content"))
	meta, err := src.Add(path, "Original Title", db.UserMetadata{Title: "Original Title"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	outDir := filepath.Join(dir, "export-out")
	if _, err := WriteFolder(outDir, src.Repository(), src.Graph(), src.Config().DiffsDir, nil, alwaysOverwrite); err != nil {
		t.Fatalf("WriteFolder() error = %v", err)
	}

	dst := openTestManager(t)
	if _, err := dst.Add(path, "Different Title", db.UserMetadata{Title: "Different Title"}); err != nil {
		t.Fatalf("Add() into dst error = %v", err)
	}

	manifest, conflicts, err := AnalyzeImport(outDir, dst.Repository())
	if err != nil {
		t.Fatalf("AnalyzeImport() error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("len(conflicts) = %d, want 1", len(conflicts))
	}
	if conflicts[0].SHA256 != rom.FormatHash(meta.SHA256) {
		t.Errorf("conflict hash mismatch")
	}

	found := false
	for _, d := range conflicts[0].Diffs {
		if d.Field == "title" {
			found = true
			if d.LocalValue != "Different Title" || d.ImportValue != "Original Title" {
				t.Errorf("unexpected title diff: %+v", d)
			}
		}
	}
	if !found {
		t.Errorf("expected a title field diff, got %+v", conflicts[0].Diffs)
	}

	result, err := ExecuteImport(outDir, manifest, true, dst.Repository(), dst.Graph(), dst.Config().DiffsDir)
	if err != nil {
		t.Fatalf("ExecuteImport() error = %v", err)
	}
	if result.NodesOverwritten != 1 {
		t.Errorf("NodesOverwritten = %d, want 1", result.NodesOverwritten)
	}
}

func TestExecuteImport_OverwriteFalseLeavesLocalMetadataIntact(t *testing.T) {
	src := openTestManager(t)
	dir := t.TempDir()
	path := writeNESFile(t, dir, "a.nes", []byte("skip overwrite test content"))
	if _, err := src.Add(path, "Original Title", db.UserMetadata{Title: "Original Title"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	outDir := filepath.Join(dir, "export-out")
	if _, err := WriteFolder(outDir, src.Repository(), src.Graph(), src.Config().DiffsDir, nil, alwaysOverwrite); err != nil {
		t.Fatalf("WriteFolder() error = %v", err)
	}

	dst := openTestManager(t)
	if _, err := dst.Add(path, "Alpha", db.UserMetadata{Title: "Alpha"}); err != nil {
		t.Fatalf("Add() into dst error = %v", err)
	}

	manifest, conflicts, err := AnalyzeImport(outDir, dst.Repository())
	if err != nil {
		t.Fatalf("AnalyzeImport() error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("len(conflicts) = %d, want 1", len(conflicts))
	}

	result, err := ExecuteImport(outDir, manifest, false, dst.Repository(), dst.Graph(), dst.Config().DiffsDir)
	if err != nil {
		t.Fatalf("ExecuteImport() error = %v", err)
	}
	if result.NodesSkipped != 1 {
		t.Errorf("NodesSkipped = %d, want 1", result.NodesSkipped)
	}
	if result.NodesOverwritten != 0 {
		t.Errorf("NodesOverwritten = %d, want 0", result.NodesOverwritten)
	}

	row, err := dst.Repository().GetNodeByHash(rom.HashBody(mustReadBody(t, path)))
	if err != nil {
		t.Fatalf("GetNodeByHash() error = %v", err)
	}
	if row == nil {
		t.Fatalf("expected node to still exist")
	}
	if row.Title != "Alpha" {
		t.Errorf("Title = %q, want %q (overwrite=false must leave local metadata untouched)", row.Title, "Alpha")
	}
}

func mustReadBody(t *testing.T, path string) []byte {
	t.Helper()
	body, err := rom.ReadBody(path)
	if err != nil {
		t.Fatalf("ReadBody() error = %v", err)
	}
	return body
}

func TestAnalyzeImport_RejectsDataRevisionMismatch(t *testing.T) {
	dst := openTestManager(t)
	dir := t.TempDir()
	outDir := filepath.Join(dir, "bad-export")
	if err := os.MkdirAll(filepath.Join(outDir, "diffs"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	badManifest := `{"dromos_export":{"version":1,"data_revision":999999,"exported_at":"2020-01-01T00:00:00Z"},"files":[],"diffs":[]}`
	if err := os.WriteFile(filepath.Join(outDir, "index.json"), []byte(badManifest), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, _, err := AnalyzeImport(outDir, dst.Repository()); err == nil {
		t.Errorf("expected data revision mismatch to be rejected")
	}
}

