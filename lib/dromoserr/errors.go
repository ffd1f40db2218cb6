// Package dromoserr defines the typed error taxonomy returned by the
// storage engine. Callers branch on errors.As to recover structured
// fields; every other failure is wrapped with %w so the chain survives.
package dromoserr

import "fmt"

// NotFoundKind distinguishes the various "no such X" conditions so callers
// don't need to parse error strings.
type NotFoundKind int

const (
	// NotFoundRom means the missing entity is a ROM node, keyed by body hash.
	NotFoundRom NotFoundKind = iota
	// NotFoundEdge means the missing entity is a diff edge between two nodes.
	NotFoundEdge
)

// InvalidRomFile means the extension promised a format the file's bytes did not deliver.
type InvalidRomFile struct {
	Path string
}

func (e *InvalidRomFile) Error() string {
	return fmt.Sprintf("invalid ROM file: %s", e.Path)
}

// UnsupportedRomType means no format adapter claims the given extension.
type UnsupportedRomType struct {
	Extension string
}

func (e *UnsupportedRomType) Error() string {
	return fmt.Sprintf("unsupported ROM type: %s", e.Extension)
}

// RomNotFound means no node or edge in the graph carries the given hash.
// Kind defaults to NotFoundRom; callers looking up an edge set it to
// NotFoundEdge so the message names the right entity.
type RomNotFound struct {
	Hash string
	Kind NotFoundKind
}

func (e *RomNotFound) Error() string {
	if e.Kind == NotFoundEdge {
		return fmt.Sprintf("edge not found: %s", e.Hash)
	}
	return fmt.Sprintf("ROM not found: %s", e.Hash)
}

// RomAlreadyExists means insert_node was called with a hash already present.
type RomAlreadyExists struct {
	Hash string
}

func (e *RomAlreadyExists) Error() string {
	return fmt.Sprintf("ROM already exists: %s", e.Hash)
}

// DiffAlreadyExists means the (source, target) edge is already materialized.
type DiffAlreadyExists struct {
	Source string
	Target string
}

func (e *DiffAlreadyExists) Error() string {
	return fmt.Sprintf("diff already exists between %s and %s", e.Source, e.Target)
}

// InvalidHashFormat means a string failed to parse as 64 hex characters.
type InvalidHashFormat struct {
	Hash string
}

func (e *InvalidHashFormat) Error() string {
	return fmt.Sprintf("invalid hash format: %s", e.Hash)
}

// DiffCreation means the codec failed to produce a patch for a valid input pair.
type DiffCreation struct {
	Msg string
}

func (e *DiffCreation) Error() string {
	return fmt.Sprintf("diff creation failed: %s", e.Msg)
}

// DiffApplication means a patch was truncated, corrupt, or built against a different source.
type DiffApplication struct {
	Msg string
}

func (e *DiffApplication) Error() string {
	return fmt.Sprintf("diff application failed: %s", e.Msg)
}

// NoPath means the graph has no route from one node to another.
type NoPath struct {
	From string
	To   string
}

func (e *NoPath) Error() string {
	return fmt.Sprintf("no path from %s to %s", e.From, e.To)
}

// Export wraps a failure while serializing a subgraph to a folder.
type Export struct {
	Msg string
}

func (e *Export) Error() string {
	return fmt.Sprintf("export error: %s", e.Msg)
}

// Import wraps a failure while ingesting an exchange folder.
type Import struct {
	Msg string
}

func (e *Import) Error() string {
	return fmt.Sprintf("import error: %s", e.Msg)
}
